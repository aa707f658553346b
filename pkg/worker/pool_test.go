package worker

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/neolink/pkg/eventstream"
	"github.com/papercomputeco/neolink/pkg/logger"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.ReplyEvent
	err    error
	block  chan struct{}
}

func (r *recordingPublisher) PublishReply(_ context.Context, e *eventstream.ReplyEvent) error {
	if r.block != nil {
		<-r.block
	}
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) Events() []*eventstream.ReplyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.ReplyEvent(nil), r.events...)
}

func newEvent(session string) *eventstream.ReplyEvent {
	return eventstream.NewReplyEvent(
		eventstream.EventSource{CharacterID: "char"},
		eventstream.Exchange{SessionID: session, Prompt: "Hi", Reply: "Hello"},
	)
}

var _ = Describe("Worker Pool", func() {
	var pub *recordingPublisher

	BeforeEach(func() {
		pub = &recordingPublisher{}
	})

	It("requires a publisher", func() {
		_, err := NewPool(&Config{Logger: logger.Nop()})
		Expect(err).To(HaveOccurred())
	})

	Describe("Enqueue", func() {
		It("publishes queued events before Close returns", func() {
			wp, err := NewPool(&Config{Publisher: pub, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			Expect(wp.Enqueue(Job{Event: newEvent("a")})).To(BeTrue())
			Expect(wp.Enqueue(Job{Event: newEvent("b")})).To(BeTrue())
			wp.Close()

			sessions := []string{}
			for _, e := range pub.Events() {
				sessions = append(sessions, e.Exchange.SessionID)
			}
			Expect(sessions).To(ConsistOf("a", "b"))
		})

		It("rejects jobs without an event", func() {
			wp, err := NewPool(&Config{Publisher: pub, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			defer wp.Close()

			Expect(wp.Enqueue(Job{})).To(BeFalse())
		})

		It("drops jobs when the queue is full", func() {
			pub.block = make(chan struct{})
			wp, err := NewPool(&Config{Publisher: pub, NumWorkers: 1, QueueSize: 1, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			// The first job occupies the worker, the second fills the queue.
			Expect(wp.Enqueue(Job{Event: newEvent("1")})).To(BeTrue())
			Eventually(func() int { return len(wp.queue) }).Should(Equal(0))
			Expect(wp.Enqueue(Job{Event: newEvent("2")})).To(BeTrue())
			Expect(wp.Enqueue(Job{Event: newEvent("3")})).To(BeFalse())

			close(pub.block)
			wp.Close()
			Expect(pub.Events()).To(HaveLen(2))
		})
	})

	It("keeps running after publish failures", func() {
		pub.err = errors.New("broker down")
		wp, err := NewPool(&Config{Publisher: pub, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Enqueue(Job{Event: newEvent("x")})).To(BeTrue())
		Expect(wp.Enqueue(Job{Event: newEvent("y")})).To(BeTrue())
		wp.Close()
		Expect(pub.Events()).To(BeEmpty())
	})

	It("tolerates repeated Close", func() {
		wp, err := NewPool(&Config{Publisher: pub, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		wp.Close()
		Expect(wp.Close).NotTo(Panic())
	})
})
