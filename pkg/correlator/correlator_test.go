package correlator_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/neolink/pkg/correlator"
	"github.com/papercomputeco/neolink/pkg/framelog"
	"github.com/papercomputeco/neolink/pkg/neo"
)

const fastPoll = 10 * time.Millisecond

func turn(chatID, author, text string, final bool) neo.Frame {
	return neo.Frame{
		Kind: neo.KindTurnUpdate,
		Turn: &neo.Turn{
			TurnKey:    neo.TurnKey{ChatID: chatID},
			Author:     neo.Author{AuthorID: author},
			Candidates: []neo.Candidate{{RawContent: text, IsFinal: final}},
		},
	}
}

func created(chatID string) neo.Frame {
	return neo.Frame{Kind: neo.KindChatCreated, Chat: &neo.Chat{ChatID: chatID}}
}

func protocolError(detail string) neo.Frame {
	return neo.Frame{Kind: neo.KindProtocolError, Detail: detail}
}

var _ = Describe("Correlator", func() {
	var (
		ctx context.Context
		log *framelog.Log
	)

	BeforeEach(func() {
		ctx = context.Background()
		log = framelog.New()
	})

	soon := func(d time.Duration) time.Time { return time.Now().Add(d) }

	Describe("Await", func() {
		It("returns the first frame the predicate accepts", func() {
			log.Append(neo.Frame{Kind: neo.KindOther})
			log.Append(created("a"))
			log.Append(created("b"))

			c := correlator.New(log, 0, correlator.WithPollInterval(fastPoll))
			f, err := c.Await(ctx, soon(time.Second), correlator.ChatCreated("b"))

			Expect(err).NotTo(HaveOccurred())
			Expect(f.Seq).To(Equal(2))
			Expect(c.Cursor()).To(Equal(3))
		})

		It("ignores frames before the cursor", func() {
			log.Append(created("a"))
			c := correlator.New(log, log.Len(), correlator.WithPollInterval(fastPoll))

			_, err := c.Await(ctx, soon(50*time.Millisecond), correlator.ChatCreated("a"))
			Expect(err).To(MatchError(correlator.ErrTimeout))
		})

		It("picks up frames appended while waiting", func() {
			c := correlator.New(log, 0, correlator.WithPollInterval(fastPoll))
			go func() {
				time.Sleep(30 * time.Millisecond)
				log.Append(created("late"))
			}()

			f, err := c.Await(ctx, soon(time.Second), correlator.ChatCreated("late"))
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Chat.ChatID).To(Equal("late"))
		})

		It("honors caller cancellation", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			c := correlator.New(log, 0, correlator.WithPollInterval(fastPoll))
			_, err := c.Await(cctx, soon(time.Second), correlator.ChatCreated("x"))
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("ChatCreated", func() {
		It("fails on a protocol error frame", func() {
			log.Append(protocolError("bad character"))
			log.Append(created("a"))

			c := correlator.New(log, 0, correlator.WithPollInterval(fastPoll))
			_, err := c.Await(ctx, soon(time.Second), correlator.ChatCreated("a"))

			var perr *neo.ProtocolError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Detail).To(Equal("bad character"))
		})
	})

	Describe("ReplyWatcher", func() {
		var w *correlator.ReplyWatcher

		BeforeEach(func() {
			w = correlator.NewReplyWatcher("s-1")
		})

		await := func(d time.Duration) (neo.Frame, error) {
			c := correlator.New(log, 0, correlator.WithPollInterval(fastPoll))
			return c.Await(ctx, soon(d), w.Match)
		}

		It("returns the first final fragment", func() {
			log.Append(turn("s-1", "char", "Hel", false))
			log.Append(turn("s-1", "char", "Hello", true))
			log.Append(turn("s-1", "char", "Hello again", true))

			f, err := await(time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Seq).To(Equal(1))
			text, _ := w.Latest()
			Expect(text).To(Equal("Hello"))
		})

		It("keeps the last partial when no final arrives", func() {
			log.Append(turn("s-1", "char", "Hel", false))
			log.Append(turn("s-1", "char", "Hello wor", false))

			_, err := await(50 * time.Millisecond)
			Expect(err).To(MatchError(correlator.ErrTimeout))

			text, ok := w.Latest()
			Expect(ok).To(BeTrue())
			Expect(text).To(Equal("Hello wor"))
		})

		It("reports no text when nothing arrives", func() {
			_, err := await(30 * time.Millisecond)
			Expect(err).To(MatchError(correlator.ErrTimeout))

			_, ok := w.Latest()
			Expect(ok).To(BeFalse())
		})

		It("excludes human authors", func() {
			log.Append(turn("s-1", "3", "Hi", true))
			log.Append(turn("s-1", "char", "Hi there!", true))

			f, err := await(time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Turn.Candidates[0].RawContent).To(Equal("Hi there!"))
		})

		It("skips a numeric author and returns the final character text", func() {
			log.Append(turn("s-1", "3", "", false))
			log.Append(turn("s-1", "char1", "Hi", false))
			log.Append(turn("s-1", "char1", "Hi there!", true))

			f, err := await(time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Turn.Candidates[0].RawContent).To(Equal("Hi there!"))
			Expect(f.Turn.Author.AuthorID).To(Equal("char1"))
		})

		It("requires text on the final fragment", func() {
			log.Append(turn("s-1", "char", "partial", false))
			log.Append(turn("s-1", "char", "", true))

			_, err := await(50 * time.Millisecond)
			Expect(err).To(MatchError(correlator.ErrTimeout))
			text, _ := w.Latest()
			Expect(text).To(Equal("partial"))
		})

		It("treats an empty author id as the character", func() {
			log.Append(turn("s-1", "", "anonymous", true))

			f, err := await(time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Seq).To(Equal(0))
		})

		It("ignores turns for other sessions", func() {
			log.Append(turn("s-2", "char", "not mine", true))

			_, err := await(50 * time.Millisecond)
			Expect(err).To(MatchError(correlator.ErrTimeout))
			_, ok := w.Latest()
			Expect(ok).To(BeFalse())
		})

		It("short-circuits on a protocol error even with later content", func() {
			log.Append(turn("s-1", "char", "Hel", false))
			log.Append(protocolError("rate limited"))
			log.Append(turn("s-1", "char", "Hello", true))

			_, err := await(time.Second)

			var perr *neo.ProtocolError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Detail).To(Equal("rate limited"))
		})
	})
})
