package listener

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/mrzor/lwes-filter-listener/internal/lwes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopbackListener(t *testing.T, timeout time.Duration) *Listener {
	t.Helper()
	l, err := New(Config{Address: "127.0.0.1", Port: 0, ReadTimeout: timeout})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func send(t *testing.T, to net.Addr, payload []byte) {
	t.Helper()
	conn, err := net.Dial("udp4", to.String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func TestListener_ReceiveDecodesEvent(t *testing.T) {
	l := newLoopbackListener(t, 2*time.Second)

	ev := lwes.NewEvent("Login")
	ev.Set("user", lwes.String("alice"))
	ev.Set("port", lwes.UInt16(22))
	payload, err := lwes.Encode(ev)
	require.NoError(t, err)

	send(t, l.LocalAddr(), payload)

	got, err := l.Receive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ev, got)
	l.Release(got)
}

func TestListener_ReceiveTimeout(t *testing.T) {
	l := newLoopbackListener(t, 20*time.Millisecond)

	got, err := l.Receive(context.Background())
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrNoEvent)
}

func TestListener_MalformedDatagram(t *testing.T) {
	l := newLoopbackListener(t, 2*time.Second)

	send(t, l.LocalAddr(), []byte{9, 'x'})

	got, err := l.Receive(context.Background())
	require.Error(t, err)
	var decErr *lwes.DecodeError
	assert.True(t, errors.As(err, &decErr))
	assert.NotNil(t, got, "partial event is handed back for release")
	l.Release(got)
}

func TestListener_ContextCancelled(t *testing.T) {
	l := newLoopbackListener(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	got, err := l.Receive(ctx)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = l.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListener_Closed(t *testing.T) {
	l := newLoopbackListener(t, time.Second)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "second close is a no-op")

	_, err := l.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestListener_ReleaseNil(t *testing.T) {
	l := newLoopbackListener(t, time.Second)
	assert.NotPanics(t, func() { l.Release(nil) })
}

func TestListener_ReleasedEventIsReset(t *testing.T) {
	l := newLoopbackListener(t, 2*time.Second)

	first := lwes.NewEvent("First")
	first.Set("a", lwes.Int32(1))
	payload, err := lwes.Encode(first)
	require.NoError(t, err)
	send(t, l.LocalAddr(), payload)

	got, err := l.Receive(context.Background())
	require.NoError(t, err)
	l.Release(got)
	assert.Equal(t, 0, got.Len())
	assert.Empty(t, got.Name)
}

func TestNew_InvalidAddress(t *testing.T) {
	_, err := New(Config{Address: "not-an-ip", Port: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid IPv4 address")

	_, err = New(Config{Address: "::1", Port: 0})
	require.Error(t, err)
}

func TestNew_PortInUse(t *testing.T) {
	l := newLoopbackListener(t, time.Second)
	port := l.LocalAddr().(*net.UDPAddr).Port

	_, err := New(Config{Address: "127.0.0.1", Port: port})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening UDP socket")
}

func TestInterfaceByAddr(t *testing.T) {
	ifi, err := InterfaceByAddr("")
	require.NoError(t, err)
	assert.Nil(t, ifi)

	ifi, err = InterfaceByAddr("0.0.0.0")
	require.NoError(t, err)
	assert.Nil(t, ifi)

	_, err = InterfaceByAddr("203.0.113.77")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no interface has address")

	_, err = InterfaceByAddr("definitely-not-an-interface0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown interface")
}
