package rpc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RidgeA/bus-rpc/internal/logging"
	"github.com/RidgeA/bus-rpc/internal/metrics"
	"github.com/RidgeA/bus-rpc/transport"
	"github.com/RidgeA/bus-rpc/transport/inmemory"
	"github.com/RidgeA/bus-rpc/transport/mocks"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func newTestCorrelator(t *testing.T, bus transport.Bus) *replyCorrelator {
	return &replyCorrelator{bus: bus, logger: logging.NewTest(t), metrics: metrics.NewNop()}
}

// respond subscribes a fake server on subject that runs script for every request.
func respond(t *testing.T, bus *inmemory.InMemory, subject string, script func(reply string)) {
	t.Helper()

	_, err := bus.Subscribe(subject, "", func(msg *transport.Msg) {
		go script(msg.Reply)
	})
	require.NoError(t, err)
}

func TestReplyCorrelator_ReturnsResult(t *testing.T) {
	bus := inmemory.New()
	defer bus.Close()

	var replies atomic.Value
	respond(t, bus, "rpc.text.upper", func(reply string) {
		replies.Store(reply)
		_ = bus.Publish(reply, ackMessage, "")
		_ = bus.Publish(reply, []byte("HELLO"), "")
	})

	c := newTestCorrelator(t, bus)
	res, err := c.call(context.Background(), "rpc.text.upper", []byte("hello"), time.Second, time.Second)
	require.NoError(t, err)
	require.Equal(t, "HELLO", string(res))

	reply := replies.Load().(string)
	require.Equal(t, 0, bus.SubscriptionCount(reply), "reply address must be released")
}

func TestReplyCorrelator_ResultBeforeAck(t *testing.T) {
	bus := inmemory.New()
	defer bus.Close()

	respond(t, bus, "rpc.fast", func(reply string) {
		_ = bus.Publish(reply, []byte("result"), "")
		_ = bus.Publish(reply, ackMessage, "")
	})

	c := newTestCorrelator(t, bus)
	start := time.Now()
	res, err := c.call(context.Background(), "rpc.fast", nil, 500*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.Equal(t, "result", string(res))
	require.Less(t, time.Since(start), 400*time.Millisecond, "result must short-circuit the ack wait")
}

func TestReplyCorrelator_AckThenSlowResult(t *testing.T) {
	// scaled version of ack at t=2s and result at t=10s with 5s/60s bounds
	bus := inmemory.New()
	defer bus.Close()

	respond(t, bus, "rpc.slow", func(reply string) {
		time.Sleep(20 * time.Millisecond)
		_ = bus.Publish(reply, ackMessage, "")
		time.Sleep(80 * time.Millisecond)
		_ = bus.Publish(reply, []byte("done"), "")
	})

	c := newTestCorrelator(t, bus)
	res, err := c.call(context.Background(), "rpc.slow", nil, 50*time.Millisecond, 600*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "done", string(res))
}

func TestReplyCorrelator_MissingAckIsNotFatal(t *testing.T) {
	bus := inmemory.New()
	defer bus.Close()

	respond(t, bus, "rpc.noack", func(reply string) {
		time.Sleep(60 * time.Millisecond)
		_ = bus.Publish(reply, []byte("late but fine"), "")
	})

	c := newTestCorrelator(t, bus)
	res, err := c.call(context.Background(), "rpc.noack", nil, 20*time.Millisecond, 500*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "late but fine", string(res))
}

func TestReplyCorrelator_TimesOutWithoutResult(t *testing.T) {
	bus := inmemory.New()
	defer bus.Close()

	var replies atomic.Value
	respond(t, bus, "rpc.ackonly", func(reply string) {
		replies.Store(reply)
		_ = bus.Publish(reply, ackMessage, "")
	})

	c := newTestCorrelator(t, bus)
	start := time.Now()
	_, err := c.call(context.Background(), "rpc.ackonly", nil, 20*time.Millisecond, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	reply := replies.Load().(string)
	require.Equal(t, 0, bus.SubscriptionCount(reply), "reply address must be released on timeout")
}

func TestReplyCorrelator_IgnoresExtraResults(t *testing.T) {
	bus := inmemory.New()
	defer bus.Close()

	respond(t, bus, "rpc.chatty", func(reply string) {
		_ = bus.Publish(reply, ackMessage, "")
		_ = bus.Publish(reply, []byte("first"), "")
		_ = bus.Publish(reply, []byte("second"), "")
	})

	c := newTestCorrelator(t, bus)
	res, err := c.call(context.Background(), "rpc.chatty", nil, time.Second, time.Second)
	require.NoError(t, err)
	require.Equal(t, "first", string(res))
}

func TestReplyCorrelator_ContextCanceled(t *testing.T) {
	bus := inmemory.New()
	defer bus.Close()

	c := newTestCorrelator(t, bus)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.call(ctx, "rpc.nobody", nil, time.Second, time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, ErrTimeout)
}

func TestReplyCorrelator_PublishFailureReleasesReplyAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	sub := mocks.NewMockSubscription(ctrl)
	boom := errors.New("connection lost")

	gomock.InOrder(
		bus.EXPECT().NewInbox().Return("_INBOX.1"),
		bus.EXPECT().Subscribe("_INBOX.1", "", gomock.Any()).Return(sub, nil),
		bus.EXPECT().Publish("rpc.a.b", []byte("x"), "_INBOX.1").Return(boom),
		sub.EXPECT().Unsubscribe().Return(nil),
	)

	c := newTestCorrelator(t, bus)
	_, err := c.call(context.Background(), "rpc.a.b", []byte("x"), time.Second, time.Second)
	require.ErrorIs(t, err, boom)
}

func TestReplyCorrelator_SubscribeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	boom := errors.New("no permission")

	bus.EXPECT().NewInbox().Return("_INBOX.1")
	bus.EXPECT().Subscribe("_INBOX.1", "", gomock.Any()).Return(nil, boom)

	c := newTestCorrelator(t, bus)
	_, err := c.call(context.Background(), "rpc.a.b", nil, time.Second, time.Second)
	require.ErrorIs(t, err, boom)
}

func TestPendingCall_Deliver(t *testing.T) {
	pc := newPendingCall()

	pc.deliver(&transport.Msg{Data: ackMessage})
	pc.deliver(&transport.Msg{Data: ackMessage})
	pc.deliver(&transport.Msg{Data: []byte{}})
	pc.deliver(&transport.Msg{Data: []byte("late")})

	select {
	case <-pc.acked:
	default:
		t.Fatal("ack not recorded")
	}

	res := <-pc.result
	require.Empty(t, res)
	require.Empty(t, pc.result)
}

func TestAwaitResult_Boundary(t *testing.T) {
	expired := func() <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	t.Run("result delivered when the wait expires wins", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			pc := newPendingCall()
			pc.deliver(&transport.Msg{Data: []byte("just in time")})

			res, err := awaitResult(context.Background(), pc, expired(), "rpc.edge", time.Millisecond)
			require.NoError(t, err)
			require.Equal(t, "just in time", string(res))
		}
	})

	t.Run("nothing delivered is a timeout", func(t *testing.T) {
		pc := newPendingCall()

		_, err := awaitResult(context.Background(), pc, expired(), "rpc.edge", time.Millisecond)
		require.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("an ack alone is still a timeout", func(t *testing.T) {
		pc := newPendingCall()
		pc.deliver(&transport.Msg{Data: ackMessage})

		_, err := awaitResult(context.Background(), pc, expired(), "rpc.edge", time.Millisecond)
		require.ErrorIs(t, err, ErrTimeout)
	})
}
