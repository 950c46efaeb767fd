package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/RidgeA/bus-rpc/internal/gate"
	"github.com/RidgeA/bus-rpc/internal/logging"
	"github.com/RidgeA/bus-rpc/internal/metrics"
	"github.com/RidgeA/bus-rpc/transport"
	"github.com/RidgeA/bus-rpc/transport/mocks"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, bus transport.Bus, g *gate.Gate, h HandlerFunc) *dispatcher {
	return &dispatcher{
		proc:    &Procedure{Service: "Job", Method: "Run", Subject: "rpc.job.run", Handler: h},
		bus:     bus,
		gate:    g,
		logger:  logging.NewTest(t),
		metrics: metrics.NewNop(),
	}
}

func TestDispatcher_AcksBeforeRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)

	release := make(chan struct{})
	done := make(chan struct{})
	g := gate.New(1, 0)

	acked := bus.EXPECT().Publish("_INBOX.1", ackMessage, "").Return(nil)
	bus.EXPECT().Publish("_INBOX.1", []byte("result"), "").After(acked).
		DoAndReturn(func(string, []byte, string) error {
			close(done)
			return nil
		})

	d := newTestDispatcher(t, bus, g, func([]byte) ([]byte, error) {
		<-release
		return []byte("result"), nil
	})
	d.handle(&transport.Msg{Subject: "rpc.job.run", Reply: "_INBOX.1", Data: []byte("x")})

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("result not published")
	}
	require.NoError(t, g.Shutdown(context.Background()))
}

func TestDispatcher_NilResultIsEmptyPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	g := gate.New(1, 0)

	bus.EXPECT().Publish("_INBOX.1", ackMessage, "").Return(nil)
	bus.EXPECT().Publish("_INBOX.1", []byte{}, "").Return(nil)

	d := newTestDispatcher(t, bus, g, func([]byte) ([]byte, error) { return nil, nil })
	d.handle(&transport.Msg{Reply: "_INBOX.1"})

	require.NoError(t, g.Shutdown(context.Background()))
}

func TestDispatcher_NoReplyAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl) // any Publish fails the test
	g := gate.New(1, 0)

	ran := make(chan struct{})
	d := newTestDispatcher(t, bus, g, func([]byte) ([]byte, error) {
		close(ran)
		return []byte("unused"), nil
	})
	d.handle(&transport.Msg{Data: []byte("fire and forget")})

	<-ran
	require.NoError(t, g.Shutdown(context.Background()))
}

func TestDispatcher_ClosedGateDropsRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockBus(ctrl)
	g := gate.New(1, 0)
	g.Close()

	logger := logging.NewTest(t)
	d := newTestDispatcher(t, bus, g, func([]byte) ([]byte, error) {
		t.Error("procedure must not run")
		return nil, nil
	})
	d.logger = logger

	d.handle(&transport.Msg{})
	require.True(t, logger.Contains("WARN", "stopping"))
}
