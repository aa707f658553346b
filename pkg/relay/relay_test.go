package relay_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/neolink/pkg/eventstream"
	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/relay"
	"github.com/papercomputeco/neolink/pkg/storage"
	"github.com/papercomputeco/neolink/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/neolink/pkg/utils/test"
	"github.com/papercomputeco/neolink/pkg/worker"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []*eventstream.ReplyEvent
}

func (c *capturePublisher) PublishReply(_ context.Context, e *eventstream.ReplyEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

var _ = Describe("Service", func() {
	var (
		ctx   context.Context
		asker *testutils.MockAsker
		store *storage.Store
		svc   *relay.Service
		req   relay.Request
	)

	BeforeEach(func() {
		ctx = context.Background()
		asker = testutils.NewMockAsker("*Gojo grins.* Yo.")
		store = storage.NewStore(inmemory.NewDriver())
		svc = relay.New(relay.Config{
			Asker:       asker,
			Store:       store,
			CharacterID: "char-1",
			Logger:      logger.Nop(),
		})
		req = relay.Request{UserID: "u1", ChannelID: "c1", GuildID: "g1"}
	})

	Describe("Talk", func() {
		It("starts a conversation with the introduction prompt", func() {
			resp, err := svc.Talk(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.SessionID).To(Equal("new-session"))
			Expect(resp.NewSession).To(BeTrue())
			Expect(resp.Chunks).To(Equal([]string{"*Gojo grins.* Yo."}))

			Expect(asker.Calls()).To(Equal([]testutils.AskCall{{Text: relay.IntroductionPrompt}}))

			id, ok, err := store.Session(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal("new-session"))

			channel, _, err := store.UserChannel(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(channel).To(Equal("c1"))
		})

		It("continues the stored conversation", func() {
			Expect(store.SetSession(ctx, "u1", "chat-7")).To(Succeed())
			req.Message = "  how are you?  "

			resp, err := svc.Talk(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.SessionID).To(Equal("chat-7"))
			Expect(asker.Calls()).To(Equal([]testutils.AskCall{{Text: "how are you?", SessionID: "chat-7"}}))
		})

		It("drops the stored conversation when asked for a new chat", func() {
			Expect(store.SetSession(ctx, "u1", "chat-7")).To(Succeed())
			req.NewChat = true

			resp, err := svc.Talk(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.SessionID).To(Equal("new-session"))
			Expect(asker.Calls()[0].SessionID).To(BeEmpty())
		})

		It("refuses a channel other than the user's", func() {
			Expect(store.LockUserChannel(ctx, "u1", "c9")).To(Succeed())

			_, err := svc.Talk(ctx, req)
			Expect(err).To(MatchError(relay.ErrChannelRestricted))

			var rerr *relay.RestrictedError
			Expect(errors.As(err, &rerr)).To(BeTrue())
			Expect(rerr.Target).To(Equal("c9"))
			Expect(asker.Calls()).To(BeEmpty())
		})

		It("rejects overlapping requests for the same user", func() {
			asker.Block = make(chan struct{})
			asker.Started = make(chan struct{}, 1)

			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := svc.Talk(ctx, req)
				done <- err
			}()
			Eventually(asker.Started).Should(Receive())

			_, err := svc.Talk(ctx, req)
			Expect(err).To(MatchError(relay.ErrBusy))

			other := relay.Request{UserID: "u2", ChannelID: "c1", GuildID: "g1"}
			asker.Started = nil
			close(asker.Block)
			Expect(<-done).NotTo(HaveOccurred())

			_, err = svc.Talk(ctx, other)
			Expect(err).NotTo(HaveOccurred())
		})

		It("wraps ask failures", func() {
			asker.Err = errors.New("socket gone")

			_, err := svc.Talk(ctx, req)
			Expect(err).To(MatchError(ContainSubstring("socket gone")))

			_, ok, _ := store.Session(ctx, "u1")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Relay", func() {
		It("requires a conversation", func() {
			req.Message = "hello"
			_, err := svc.Relay(ctx, req)
			Expect(err).To(MatchError(relay.ErrNoConversation))
		})

		It("rejects empty messages", func() {
			Expect(store.SetSession(ctx, "u1", "chat-1")).To(Succeed())
			req.Message = "   "

			_, err := svc.Relay(ctx, req)
			Expect(err).To(MatchError(relay.ErrEmptyMessage))
		})

		It("relays the message on the stored chat", func() {
			Expect(store.SetSession(ctx, "u1", "chat-1")).To(Succeed())
			req.Message = "hello"

			resp, err := svc.Relay(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.SessionID).To(Equal("chat-1"))
			Expect(asker.Calls()).To(Equal([]testutils.AskCall{{Text: "hello", SessionID: "chat-1"}}))
		})

		It("honors the guild's channel", func() {
			Expect(store.SetSession(ctx, "u1", "chat-1")).To(Succeed())
			Expect(svc.SetGuildChannel(ctx, "g1", "c2")).To(Succeed())
			req.Message = "hello"

			_, err := svc.Relay(ctx, req)
			Expect(err).To(MatchError(relay.ErrChannelRestricted))
		})

		It("formats a silent character as no response", func() {
			asker.Reply = ""
			Expect(store.SetSession(ctx, "u1", "chat-1")).To(Succeed())
			req.Message = "hello?"

			resp, err := svc.Relay(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.NoResponse).To(BeTrue())
			Expect(resp.Chunks).To(Equal([]string{"No response."}))
		})
	})

	Describe("NewChat", func() {
		It("forgets the old chat and says hi on a new one", func() {
			Expect(store.SetSession(ctx, "u1", "old")).To(Succeed())

			resp, err := svc.NewChat(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.SessionID).To(Equal("new-session"))
			Expect(asker.Calls()).To(Equal([]testutils.AskCall{{Text: relay.NewChatPrompt}}))

			id, _, _ := store.Session(ctx, "u1")
			Expect(id).To(Equal("new-session"))
		})
	})

	Describe("Stop and ResetMemory", func() {
		BeforeEach(func() {
			Expect(store.SetSession(ctx, "u1", "chat-1")).To(Succeed())
			Expect(store.LockUserChannel(ctx, "u1", "c1")).To(Succeed())
		})

		It("stops the conversation and unlocks the channel", func() {
			Expect(svc.Stop(ctx, "u1")).To(BeTrue())
			Expect(svc.Stop(ctx, "u1")).To(BeFalse())

			_, ok, _ := store.UserChannel(ctx, "u1")
			Expect(ok).To(BeFalse())
		})

		It("resets memory but keeps the channel lock", func() {
			Expect(svc.ResetMemory(ctx, "u1")).To(BeTrue())
			Expect(svc.ResetMemory(ctx, "u1")).To(BeFalse())

			_, ok, _ := store.UserChannel(ctx, "u1")
			Expect(ok).To(BeTrue())
		})
	})

	Describe("SetGuildChannel", func() {
		It("requires a guild", func() {
			Expect(svc.SetGuildChannel(ctx, "", "c1")).To(MatchError(relay.ErrGuildRequired))
		})
	})

	Describe("events", func() {
		It("publishes a reply event after every answer", func() {
			pub := &capturePublisher{}
			pool, err := worker.NewPool(&worker.Config{Publisher: pub, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			svc = relay.New(relay.Config{
				Asker:       asker,
				Store:       store,
				Pool:        pool,
				CharacterID: "char-1",
				Logger:      logger.Nop(),
			})
			req.Message = "hello"

			_, err = svc.Talk(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			pool.Close()

			Expect(pub.events).To(HaveLen(1))
			e := pub.events[0]
			Expect(e.Source.CharacterID).To(Equal("char-1"))
			Expect(e.Source.UserID).To(Equal("u1"))
			Expect(e.Exchange.Prompt).To(Equal("hello"))
			Expect(e.Exchange.SessionID).To(Equal("new-session"))
			Expect(e.Exchange.NewSession).To(BeTrue())
		})
	})
})
