package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/neolink/pkg/dotdir"
)

var _ = Describe("session state", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	It("returns nil when nothing was saved", func() {
		state, err := m.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("round-trips a saved session", func() {
		saved := &dotdir.SessionState{
			ChatID:      "chat-1",
			CharacterID: "char-1",
			UpdatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		Expect(m.SaveSession(saved, tmpDir)).To(Succeed())

		loaded, err := m.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(saved))

		info, err := os.Stat(filepath.Join(tmpDir, "session.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
	})

	It("refuses to save nil", func() {
		Expect(m.SaveSession(nil, tmpDir)).To(HaveOccurred())
	})

	It("clears the session and tolerates clearing twice", func() {
		Expect(m.SaveSession(&dotdir.SessionState{ChatID: "c"}, tmpDir)).To(Succeed())
		Expect(m.ClearSession(tmpDir)).To(Succeed())
		Expect(m.ClearSession(tmpDir)).To(Succeed())

		state, err := m.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("reports a corrupt session file", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("{"), 0o600)).To(Succeed())

		_, err := m.LoadSession(tmpDir)
		Expect(err).To(HaveOccurred())
	})
})
