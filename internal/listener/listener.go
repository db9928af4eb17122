// Package listener receives LWES events from a UDP multicast group or a
// unicast address and decodes them into pooled lwes.Event values.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mrzor/lwes-filter-listener/internal/lwes"

	"golang.org/x/net/ipv4"
)

// MaxDatagramSize is the largest UDP payload accepted.
const MaxDatagramSize = 65535

var (
	// ErrNoEvent means no datagram arrived before the read deadline.
	ErrNoEvent = errors.New("no event received")
	// ErrClosed means the listener was closed.
	ErrClosed = errors.New("listener closed")
)

// Config describes where to listen.
type Config struct {
	// Address is an IPv4 multicast group or a local unicast address.
	Address string
	Port    int
	// Interface selects the interface joining the group, by address or name.
	// Empty or "0.0.0.0" lets the system choose.
	Interface string
	// ReadTimeout bounds a single Receive call. Zero waits forever.
	ReadTimeout time.Duration
	// ReadBuffer sets the socket receive buffer size when positive.
	ReadBuffer int
}

// Listener reads one event per datagram.
// Receive and Release must be called from a single goroutine.
type Listener struct {
	conn    net.PacketConn
	pconn   *ipv4.PacketConn
	group   *net.UDPAddr
	ifi     *net.Interface
	timeout time.Duration
	buf     []byte
	pool    sync.Pool
	closed  atomic.Bool
}

// New opens the socket and joins the multicast group if Address is one.
func New(cfg Config) (*Listener, error) {
	ip := net.ParseIP(cfg.Address).To4()
	if ip == nil {
		return nil, fmt.Errorf("invalid IPv4 address %q", cfg.Address)
	}

	bindAddr := ip.String()
	if ip.IsMulticast() {
		bindAddr = net.IPv4zero.String()
	}

	conn, err := net.ListenPacket("udp4", net.JoinHostPort(bindAddr, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("opening UDP socket: %w", err)
	}

	if cfg.ReadBuffer > 0 {
		if udp, ok := conn.(*net.UDPConn); ok {
			if err := udp.SetReadBuffer(cfg.ReadBuffer); err != nil {
				_ = conn.Close() //nolint:errcheck // Best-effort cleanup in error path
				return nil, fmt.Errorf("setting receive buffer: %w", err)
			}
		}
	}

	l := &Listener{
		conn:    conn,
		pconn:   ipv4.NewPacketConn(conn),
		timeout: cfg.ReadTimeout,
		buf:     make([]byte, MaxDatagramSize),
	}
	l.pool.New = func() any { return &lwes.Event{} }

	if ip.IsMulticast() {
		ifi, err := InterfaceByAddr(cfg.Interface)
		if err != nil {
			_ = conn.Close() //nolint:errcheck // Best-effort cleanup in error path
			return nil, err
		}
		group := &net.UDPAddr{IP: ip}
		if err := l.pconn.JoinGroup(ifi, group); err != nil {
			_ = conn.Close() //nolint:errcheck // Best-effort cleanup in error path
			return nil, fmt.Errorf("joining multicast group %s: %w", ip, err)
		}
		l.group = group
		l.ifi = ifi
	}

	return l, nil
}

// InterfaceByAddr finds the interface that owns the given address or has the
// given name. It returns nil for "" and "0.0.0.0".
func InterfaceByAddr(s string) (*net.Interface, error) {
	if s == "" || s == net.IPv4zero.String() {
		return nil, nil
	}

	ip := net.ParseIP(s)
	if ip == nil {
		ifi, err := net.InterfaceByName(s)
		if err != nil {
			return nil, fmt.Errorf("unknown interface %q: %w", s, err)
		}
		return ifi, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.Equal(ip) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("no interface has address %s", s)
}

// LocalAddr returns the bound socket address.
func (l *Listener) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

// Receive waits for one datagram and decodes it.
//
// It returns ErrNoEvent when the read deadline passes, ErrClosed after Close,
// ctx.Err() once ctx is done, and a *lwes.DecodeError for a malformed
// datagram. On a decode error the partially filled event is returned too.
// Every non-nil event must be handed back through Release.
func (l *Listener) Receive(ctx context.Context) (*lwes.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var deadline time.Time
	if l.timeout > 0 {
		deadline = time.Now().Add(l.timeout)
	}
	if err := l.pconn.SetReadDeadline(deadline); err != nil {
		if l.closed.Load() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}

	// Wake the read as soon as ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		_ = l.pconn.SetReadDeadline(time.Unix(1, 0)) //nolint:errcheck // Unblocks the pending read
	})
	n, _, _, err := l.pconn.ReadFrom(l.buf)
	stop()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if l.closed.Load() || errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrNoEvent
		}
		if errors.Is(err, syscall.EINTR) {
			return nil, ErrNoEvent
		}
		return nil, fmt.Errorf("reading datagram: %w", err)
	}

	ev := l.pool.Get().(*lwes.Event) //nolint:forcetypeassert // Pool only holds events
	if err := lwes.Decode(l.buf[:n], ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// Release returns ev to the pool. ev must not be used afterwards.
func (l *Listener) Release(ev *lwes.Event) {
	if ev == nil {
		return
	}
	ev.Reset()
	l.pool.Put(ev)
}

// Close leaves the multicast group and closes the socket.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}

	var leaveErr error
	if l.group != nil {
		if err := l.pconn.LeaveGroup(l.ifi, l.group); err != nil {
			leaveErr = fmt.Errorf("leaving multicast group %s: %w", l.group.IP, err)
		}
	}
	if err := l.conn.Close(); err != nil {
		return fmt.Errorf("closing socket: %w", err)
	}
	return leaveErr
}
