package session_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/neolink/pkg/conn"
	"github.com/papercomputeco/neolink/pkg/framelog"
	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/neo"
	"github.com/papercomputeco/neolink/pkg/session"
	testutils "github.com/papercomputeco/neolink/pkg/utils/test"
)

// fakeConn appends scripted frames to its log on every Send.
type fakeConn struct {
	mu      sync.Mutex
	log     *framelog.Log
	sent    []neo.Envelope
	respond func(env neo.Envelope) []neo.Frame
	sendErr error
}

func newFakeConn(respond func(env neo.Envelope) []neo.Frame) *fakeConn {
	return &fakeConn{log: framelog.New(), respond: respond}
}

func (f *fakeConn) Send(_ context.Context, env neo.Envelope) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, env)
	f.mu.Unlock()
	if f.respond != nil {
		for _, fr := range f.respond(env) {
			f.log.Append(fr)
		}
	}
	return nil
}

func (f *fakeConn) Frames() *framelog.Log { return f.log }

func (f *fakeConn) Sent() []neo.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]neo.Envelope(nil), f.sent...)
}

func turn(author, text string, final bool) neo.Frame {
	return neo.Frame{
		Kind: neo.KindTurnUpdate,
		Turn: &neo.Turn{
			Author:     neo.Author{AuthorID: author},
			Candidates: []neo.Candidate{{RawContent: text, IsFinal: final}},
		},
	}
}

func newManager() *session.Manager {
	return session.NewManager(session.Config{
		CharacterID:   "char-1",
		CreatorID:     "42",
		CreateTimeout: 100 * time.Millisecond,
		ReplyTimeout:  100 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
		Logger:        logger.Nop(),
	})
}

var _ = Describe("Manager", func() {
	var (
		ctx context.Context
		mgr *session.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		mgr = newManager()
	})

	Describe("CreateSession", func() {
		It("returns the acknowledged chat id", func() {
			c := newFakeConn(func(env neo.Envelope) []neo.Frame {
				p := env.Payload.(neo.CreateChatPayload)
				return []neo.Frame{{Kind: neo.KindChatCreated, Chat: &neo.Chat{ChatID: p.Chat.ChatID}}}
			})

			id, err := mgr.CreateSession(ctx, c, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())

			p := c.Sent()[0].Payload.(neo.CreateChatPayload)
			Expect(p.Chat.ChatID).To(Equal(id))
			Expect(p.Chat.CreatorID).To(Equal("42"))
			Expect(p.Chat.CharacterID).To(Equal("char-1"))
			Expect(p.WithGreeting).To(BeTrue())
		})

		It("returns the requested id on timeout, every time", func() {
			c := newFakeConn(nil)

			first, err := mgr.CreateSession(ctx, c, "abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(Equal("abc"))

			second, err := mgr.CreateSession(ctx, c, "abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal("abc"))
		})

		It("fails with a CreateError on a protocol error", func() {
			c := newFakeConn(func(neo.Envelope) []neo.Frame {
				return []neo.Frame{{Kind: neo.KindProtocolError, Detail: "no such character"}}
			})

			_, err := mgr.CreateSession(ctx, c, "abc")

			var cerr *session.CreateError
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(cerr.ChatID).To(Equal("abc"))
			Expect(cerr.Detail).To(Equal("no such character"))
		})

		It("wraps send failures", func() {
			c := newFakeConn(nil)
			c.sendErr = conn.ErrClosed

			_, err := mgr.CreateSession(ctx, c, "abc")
			Expect(errors.Is(err, conn.ErrClosed)).To(BeTrue())
		})

		It("does not match frames received before the command was sent", func() {
			c := newFakeConn(nil)
			c.log.Append(neo.Frame{Kind: neo.KindProtocolError, Detail: "stale"})

			id, err := mgr.CreateSession(ctx, c, "abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("abc"))
		})
	})

	Describe("SendAndAwait", func() {
		It("returns the first final character text", func() {
			c := newFakeConn(func(neo.Envelope) []neo.Frame {
				return []neo.Frame{
					turn("3", "Hi", true),
					turn("char", "Hi there!", true),
				}
			})

			reply, err := mgr.SendAndAwait(ctx, c, "s-1", "Hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal(session.Reply{Text: "Hi there!", Final: true}))

			p := c.Sent()[0].Payload.(neo.GenerateTurnPayload)
			Expect(p.Turn.TurnKey.ChatID).To(Equal("s-1"))
			Expect(p.Turn.Candidates[0].RawContent).To(Equal("Hi"))
		})

		It("falls back to the latest partial on timeout", func() {
			c := newFakeConn(func(neo.Envelope) []neo.Frame {
				return []neo.Frame{
					turn("char", "Hel", false),
					turn("char", "Hello th", false),
				}
			})

			reply, err := mgr.SendAndAwait(ctx, c, "s-1", "Hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal(session.Reply{Text: "Hello th"}))
		})

		It("reports no response when nothing arrives", func() {
			reply, err := mgr.SendAndAwait(ctx, newFakeConn(nil), "s-1", "Hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.NoResponse).To(BeTrue())
			Expect(reply.Text).To(BeEmpty())
		})

		It("fails with a TurnError on a protocol error", func() {
			c := newFakeConn(func(neo.Envelope) []neo.Frame {
				return []neo.Frame{
					{Kind: neo.KindProtocolError, Detail: "filtered"},
					turn("char", "too late", true),
				}
			})

			_, err := mgr.SendAndAwait(ctx, c, "s-1", "Hi")

			var terr *session.TurnError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.ChatID).To(Equal("s-1"))
			Expect(terr.Detail).To(Equal("filtered"))
		})
	})

	Describe("against a WebSocket server", func() {
		var server *testutils.NeoServer

		BeforeEach(func() {
			server = testutils.NewNeoServer(testutils.Character("Hi there!"))
		})

		AfterEach(func() {
			server.Close()
		})

		It("creates a chat and exchanges a turn on the same chat id", func() {
			c, err := conn.Open(ctx, conn.Config{URL: server.URL, Token: "t", Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			id, err := mgr.CreateSession(ctx, c, "")
			Expect(err).NotTo(HaveOccurred())

			reply, err := mgr.SendAndAwait(ctx, c, id, "Hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("Hi there!"))
			Expect(reply.Final).To(BeTrue())

			received := server.Received()
			Expect(received).To(HaveLen(2))
			Expect(received[0].ChatID()).To(Equal(id))
			Expect(received[1].ChatID()).To(Equal(id))
		})
	})
})
