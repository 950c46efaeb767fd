package inmemory

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RidgeA/bus-rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_PlainSubscribersAllReceive(t *testing.T) {
	bus := New()
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	for i := 0; i < 2; i++ {
		_, err := bus.Subscribe("news", "", func(msg *transport.Msg) {
			assert.Equal(t, "hello", string(msg.Data))
			assert.Equal(t, "_INBOX.x", msg.Reply)
			wg.Done()
		})
		require.NoError(t, err)
	}

	require.NoError(t, bus.Publish("news", []byte("hello"), "_INBOX.x"))
	waitGroup(t, &wg)
}

func TestInMemory_GroupDeliversToOneMember(t *testing.T) {
	bus := New()
	defer bus.Close()

	var a, b atomic.Int32
	var wg sync.WaitGroup
	wg.Add(10)

	_, err := bus.Subscribe("work", "workers", func(*transport.Msg) { a.Add(1); wg.Done() })
	require.NoError(t, err)
	_, err = bus.Subscribe("work", "workers", func(*transport.Msg) { b.Add(1); wg.Done() })
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish("work", []byte{byte(i)}, ""))
	}

	waitGroup(t, &wg)
	require.Equal(t, int32(5), a.Load())
	require.Equal(t, int32(5), b.Load())
}

func TestInMemory_PreservesOrderPerSubscriber(t *testing.T) {
	bus := New()
	defer bus.Close()

	const n = 100
	got := make(chan byte, n)
	_, err := bus.Subscribe("seq", "", func(msg *transport.Msg) { got <- msg.Data[0] })
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, bus.Publish("seq", []byte{byte(i)}, ""))
	}

	for i := 0; i < n; i++ {
		select {
		case v := <-got:
			require.Equal(t, byte(i), v)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}
}

func TestInMemory_UnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	defer bus.Close()

	var count atomic.Int32
	sub, err := bus.Subscribe("s", "", func(*transport.Msg) { count.Add(1) })
	require.NoError(t, err)
	require.Equal(t, 1, bus.SubscriptionCount("s"))

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	require.Equal(t, 0, bus.SubscriptionCount("s"))

	require.NoError(t, bus.Publish("s", nil, ""))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), count.Load())
	require.Equal(t, 1, bus.Published("s"))
}

func TestInMemory_DropPublishes(t *testing.T) {
	bus := New()
	defer bus.Close()

	var count atomic.Int32
	_, err := bus.Subscribe("s", "", func(*transport.Msg) { count.Add(1) })
	require.NoError(t, err)

	bus.SetDropPublishes(true)
	require.NoError(t, bus.Publish("s", nil, ""))
	require.NoError(t, bus.Publish("s", nil, ""))
	time.Sleep(20 * time.Millisecond)

	require.Equal(t, int32(0), count.Load())
	require.Equal(t, 2, bus.Published("s"))
}

func TestInMemory_SimulateReconnect(t *testing.T) {
	bus := New()
	defer bus.Close()

	var order []string
	bus.OnDisconnect(func(error) { order = append(order, "disconnect") })
	bus.OnReconnect(func() { order = append(order, "reconnect") })

	bus.SimulateReconnect()
	require.Equal(t, []string{"disconnect", "reconnect"}, order)
}

func TestInMemory_Closed(t *testing.T) {
	bus := New()
	_, err := bus.Subscribe("s", "", func(*transport.Msg) {})
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	require.Equal(t, 0, bus.SubscriptionCount("s"))
	require.ErrorIs(t, bus.Publish("s", nil, ""), transport.ErrClosed)

	_, err = bus.Subscribe("s", "", func(*transport.Msg) {})
	require.ErrorIs(t, err, transport.ErrClosed)
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deliveries")
	}
}
