package client_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/neolink/pkg/client"
	"github.com/papercomputeco/neolink/pkg/conn"
	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/session"
	testutils "github.com/papercomputeco/neolink/pkg/utils/test"
)

type refusingDialer struct{}

func (refusingDialer) Dial(context.Context, string, http.Header) (conn.Socket, error) {
	return nil, errors.New("refused")
}

var _ = Describe("Client", func() {
	var (
		ctx    context.Context
		server *testutils.NeoServer
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if server != nil {
			server.Close()
			server = nil
		}
	})

	newClient := func(hooks client.Hooks) *client.Client {
		return client.New(client.Config{
			URL:           server.URL,
			Token:         "t",
			CharacterID:   "char-1",
			CreatorID:     "1",
			CreateTimeout: 200 * time.Millisecond,
			ReplyTimeout:  200 * time.Millisecond,
			PollInterval:  10 * time.Millisecond,
			Hooks:         hooks,
			Logger:        logger.Nop(),
		})
	}

	It("creates a session and returns the character's reply", func() {
		server = testutils.NewNeoServer(testutils.Character("Hi there!"))
		c := newClient(client.Hooks{})

		answer, err := c.Ask(ctx, "Hi", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Text).To(Equal("Hi there!"))
		Expect(answer.Final).To(BeTrue())
		Expect(answer.NewSession).To(BeTrue())
		Expect(answer.SessionID).NotTo(BeEmpty())

		received := server.Received()
		Expect(received).To(HaveLen(2))
		Expect(received[0].ChatID()).To(Equal(answer.SessionID))
		Expect(received[1].ChatID()).To(Equal(answer.SessionID))
		Expect(received[1].Text()).To(Equal("Hi"))

		By("using a dedicated connection per step")
		Expect(server.Connections()).To(Equal(2))
	})

	It("reuses a given session without creating a chat", func() {
		server = testutils.NewNeoServer(testutils.Character("welcome back"))
		c := newClient(client.Hooks{})

		answer, err := c.Ask(ctx, "again", "existing")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.SessionID).To(Equal("existing"))
		Expect(answer.NewSession).To(BeFalse())

		received := server.Received()
		Expect(received).To(HaveLen(1))
		Expect(received[0].Command).To(Equal("create_and_generate_turn"))
	})

	It("answers with the no-response text when the character is silent", func() {
		server = testutils.NewNeoServer(nil)
		c := newClient(client.Hooks{})

		answer, err := c.Ask(ctx, "hello?", "quiet")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.NoResponse).To(BeTrue())
		Expect(answer.Text).To(Equal(client.NoResponseText))
	})

	It("surfaces protocol errors as typed failures", func() {
		server = testutils.NewNeoServer(func(testutils.Inbound) [][]byte {
			return [][]byte{testutils.ErrorFrame("character unavailable")}
		})
		c := newClient(client.Hooks{})

		_, err := c.Ask(ctx, "Hi", "s")

		var terr *session.TurnError
		Expect(errors.As(err, &terr)).To(BeTrue())
		Expect(terr.Detail).To(Equal("character unavailable"))
	})

	It("surfaces connection failures", func() {
		c := client.New(client.Config{
			URL:    "ws://example.invalid/ws/",
			Dialer: refusingDialer{},
			Logger: logger.Nop(),
		})

		_, err := c.Ask(ctx, "Hi", "s")

		var cerr *conn.ConnectError
		Expect(errors.As(err, &cerr)).To(BeTrue())
	})

	It("calls the answer hook", func() {
		server = testutils.NewNeoServer(testutils.Character("pong!"))
		var (
			gotPrompt string
			gotAnswer *client.Answer
		)
		c := newClient(client.Hooks{OnAnswer: func(prompt string, a *client.Answer) {
			gotPrompt = prompt
			gotAnswer = a
		}})

		answer, err := c.Ask(ctx, "ping", "s")
		Expect(err).NotTo(HaveOccurred())
		Expect(gotPrompt).To(Equal("ping"))
		Expect(gotAnswer).To(BeIdenticalTo(answer))
	})

	It("keeps concurrent sessions apart", func() {
		server = testutils.NewNeoServer(testutils.Character("same words"))
		c := newClient(client.Hooks{})

		results := make(chan *client.Answer, 2)
		for _, id := range []string{"one", "two"} {
			go func(id string) {
				defer GinkgoRecover()
				a, err := c.Ask(ctx, "hey", id)
				Expect(err).NotTo(HaveOccurred())
				results <- a
			}(id)
		}

		ids := []string{(<-results).SessionID, (<-results).SessionID}
		Expect(ids).To(ConsistOf("one", "two"))
	})
})
