package conn_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/neolink/pkg/conn"
	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/neo"
	testutils "github.com/papercomputeco/neolink/pkg/utils/test"
)

type failingDialer struct{ err error }

func (d failingDialer) Dial(context.Context, string, http.Header) (conn.Socket, error) {
	return nil, d.err
}

type blockingDialer struct{}

func (blockingDialer) Dial(ctx context.Context, _ string, _ http.Header) (conn.Socket, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

var _ = Describe("Conn", func() {
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

	open := func() *conn.Conn {
		c, err := conn.Open(ctx, conn.Config{
			URL:    server.URL,
			Token:  "secret",
			Logger: logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	Describe("Open", func() {
		It("sends the token as a cookie during the handshake", func() {
			server = testutils.NewNeoServer(nil)
			c := open()
			defer c.Close()

			Eventually(server.Headers).Should(HaveLen(1))
			Expect(server.Headers()[0].Get("Cookie")).To(Equal(`HTTP_AUTHORIZATION="Token secret"`))
		})

		It("returns a ConnectError when the dial fails", func() {
			cause := errors.New("refused")
			_, err := conn.Open(ctx, conn.Config{
				URL:    "ws://example.invalid/ws/",
				Dialer: failingDialer{err: cause},
			})

			var connectErr *conn.ConnectError
			Expect(errors.As(err, &connectErr)).To(BeTrue())
			Expect(connectErr.URL).To(Equal("ws://example.invalid/ws/"))
			Expect(errors.Is(err, cause)).To(BeTrue())
		})

		It("gives up when the handshake is not confirmed in time", func() {
			start := time.Now()
			_, err := conn.Open(ctx, conn.Config{
				URL:              "ws://example.invalid/ws/",
				HandshakeTimeout: 50 * time.Millisecond,
				Dialer:           blockingDialer{},
			})

			var connectErr *conn.ConnectError
			Expect(errors.As(err, &connectErr)).To(BeTrue())
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
		})
	})

	Describe("receive loop", func() {
		It("appends decoded frames in arrival order", func() {
			server = testutils.NewNeoServer(nil)
			server.OnConnect = [][]byte{
				testutils.ChatCreatedFrame("c-1"),
				testutils.TurnFrame("c-1", "char", "hello", true),
			}
			c := open()
			defer c.Close()

			Eventually(c.Frames().Len).Should(Equal(2))
			frames := c.Frames().Since(0)
			Expect(frames[0].Kind).To(Equal(neo.KindChatCreated))
			Expect(frames[1].Kind).To(Equal(neo.KindTurnUpdate))
			Expect(frames[1].Seq).To(Equal(1))
		})

		It("drops malformed frames and keeps receiving", func() {
			server = testutils.NewNeoServer(nil)
			server.OnConnect = [][]byte{
				[]byte("{not json"),
				testutils.ErrorFrame("boom"),
			}
			c := open()
			defer c.Close()

			Eventually(c.Frames().Len).Should(Equal(1))
			Expect(c.Frames().Since(0)[0].Kind).To(Equal(neo.KindProtocolError))
			Consistently(c.Frames().Len, 100*time.Millisecond).Should(Equal(1))
		})
	})

	Describe("Send", func() {
		It("writes the encoded envelope", func() {
			server = testutils.NewNeoServer(testutils.Character("Hi there!"))
			c := open()
			defer c.Close()

			Expect(c.Send(ctx, neo.NewCreateChat("c-9", "1", "char", true))).To(Succeed())

			Eventually(server.Received).Should(HaveLen(1))
			Expect(server.Received()[0].Command).To(Equal(neo.CommandCreateChat))
			Expect(server.Received()[0].ChatID()).To(Equal("c-9"))
			Eventually(c.Frames().Len).Should(Equal(1))
		})

		It("fails after Close", func() {
			server = testutils.NewNeoServer(nil)
			c := open()
			Expect(c.Close()).To(Succeed())
			Eventually(c.Done()).Should(BeClosed())

			Expect(c.Send(ctx, neo.NewCreateChat("c", "1", "char", true))).To(MatchError(conn.ErrClosed))
		})

		It("fails on a nil connection", func() {
			var c *conn.Conn
			Expect(c.Send(ctx, neo.NewCreateChat("c", "1", "char", true))).To(MatchError(conn.ErrClosed))
		})
	})

	Describe("Close", func() {
		It("is idempotent", func() {
			server = testutils.NewNeoServer(nil)
			c := open()

			Expect(c.Close()).To(Succeed())
			Expect(func() { _ = c.Close() }).NotTo(Panic())
		})

		It("is safe on a nil connection", func() {
			var c *conn.Conn
			Expect(c.Close()).To(Succeed())
		})
	})
})
