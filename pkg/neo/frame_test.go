package neo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/neolink/pkg/neo"
)

var _ = Describe("Decode", func() {
	It("rejects invalid JSON", func() {
		_, err := neo.Decode([]byte(`{"turn": `))
		Expect(err).To(MatchError(neo.ErrMalformedFrame))
	})

	It("classifies a neo_error frame using comment", func() {
		f, err := neo.Decode([]byte(`{"command": "neo_error", "comment": "chat not found"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Kind).To(Equal(neo.KindProtocolError))
		Expect(f.Detail).To(Equal("chat not found"))
	})

	It("falls back to payload.detail for neo_error frames", func() {
		f, err := neo.Decode([]byte(`{"command": "neo_error", "payload": {"detail": "rate limited"}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Kind).To(Equal(neo.KindProtocolError))
		Expect(f.Detail).To(Equal("rate limited"))
	})

	It("uses a default detail when the error frame has none", func() {
		f, err := neo.Decode([]byte(`{"command": "neo_error"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Detail).To(Equal("Unknown error"))
	})

	It("classifies a chat creation acknowledgement", func() {
		f, err := neo.Decode([]byte(`{"command": "create_chat_response", "chat": {"chat_id": "c-1", "creator_id": "42"}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Kind).To(Equal(neo.KindChatCreated))
		Expect(f.Chat.ChatID).To(Equal("c-1"))
	})

	It("classifies a generation fragment", func() {
		f, err := neo.Decode([]byte(`{
			"command": "update_turn",
			"turn": {
				"turn_key": {"chat_id": "c-1"},
				"author": {"author_id": "char-9", "name": "Gojo"},
				"candidates": [{"raw_content": "Yo", "is_final": true}]
			}
		}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Kind).To(Equal(neo.KindTurnUpdate))
		Expect(f.Turn.TurnKey.ChatID).To(Equal("c-1"))
		Expect(f.Turn.Author.AuthorID).To(Equal("char-9"))

		c, ok := f.Turn.Primary()
		Expect(ok).To(BeTrue())
		Expect(c.RawContent).To(Equal("Yo"))
		Expect(c.IsFinal).To(BeTrue())
	})

	It("keeps valid JSON of unknown shape as KindOther", func() {
		for _, in := range []string{`{"command": "ping"}`, `[1, 2]`, `"hello"`, `{"turn": "oops"}`, `{"chat": null}`} {
			f, err := neo.Decode([]byte(in))
			Expect(err).NotTo(HaveOccurred(), in)
			Expect(f.Kind).To(Equal(neo.KindOther), in)
			Expect(string(f.Raw)).To(Equal(in))
		}
	})

	It("prefers the error classification over a turn body", func() {
		f, err := neo.Decode([]byte(`{"command": "neo_error", "comment": "bad", "turn": {"candidates": []}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Kind).To(Equal(neo.KindProtocolError))
	})
})

var _ = Describe("Author", func() {
	DescribeTable("IsHuman",
		func(id string, human bool) {
			Expect(neo.Author{AuthorID: id}.IsHuman()).To(Equal(human))
		},
		Entry("numeric id", "3", true),
		Entry("long numeric id", "481516234", true),
		Entry("character id", "char1", false),
		Entry("mixed id", "12ab", false),
		Entry("empty id", "", false),
	)
})
