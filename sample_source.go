package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"syscall"

	"github.com/pion/rtp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// ErrSourceClosed is returned by SampleSource.Read once the underlying
// stream has terminated cleanly (EOF on stdin, socket closed on shutdown).
var ErrSourceClosed = fmt.Errorf("sample source closed")

// SampleSource is the narrow capability interface SampleReader consumes.
// It abstracts "an untyped byte stream from a source" per the receiver's
// configured wire format: a plain byte pipe (stdin, a file, a recording)
// or a vendor SDR library/network feed. Read fills buf and returns the
// number of bytes written; it blocks until at least one byte is available,
// the source closes, or ctx is cancelled.
type SampleSource interface {
	Read(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// StdinSource adapts any io.ReadCloser (stdin, a file, a FIFO) to
// SampleSource. This is the default source for a ReceiverConfig: the
// front-end process or SDR vendor tool is expected to write raw samples to
// the reader's stdin, matching the CLI-driven deployment model described in
// spec.md §6 ("the sample-source abstraction ... treated as an external
// producer of typed samples").
type StdinSource struct {
	r io.ReadCloser
}

func NewStdinSource(r io.ReadCloser) *StdinSource {
	return &StdinSource{r: r}
}

// Read does not observe ctx: it blocks in the underlying Read until data
// arrives, the stream ends, or the stream is closed.
func (s *StdinSource) Read(ctx context.Context, buf []byte) (int, error) {
	n, err := s.r.Read(buf)
	if err == io.EOF {
		return n, ErrSourceClosed
	}
	return n, err
}

func (s *StdinSource) Close() error {
	return s.r.Close()
}

// RTPMulticastSource ingests raw baseband samples carried as the payload of
// RTP packets on a multicast group, in the style of ka9q-radio's IQ data
// channels. It is the "vendor SDR library" shape of SampleSource: instead
// of a vendor C library, the samples arrive pre-packetized over the
// network from an existing radiod-class front-end.
//
// Payloads are forwarded in arrival order; packets are not reordered.
// A sequence gap, reordering or duplicate is counted but still forwarded,
// and a payload is dropped and counted only when the pending buffer is
// full, so the receive loop never blocks.
type RTPMulticastSource struct {
	conn  *net.UDPConn
	group *net.UDPAddr

	mu       sync.Mutex
	pending  chan []byte
	closed   chan struct{}
	closeErr error

	nextSeq   uint16
	haveSeq   bool
	Underflow uint64 // sequence discontinuities plus payloads dropped on a full buffer
}

// NewRTPMulticastSource joins the given multicast group on iface (nil for
// the default interface) and begins buffering RTP payloads.
func NewRTPMulticastSource(groupAddr string, iface *net.Interface) (*RTPMulticastSource, error) {
	addr, err := net.ResolveUDPAddr("udp4", groupAddr)
	if err != nil {
		return nil, fmt.Errorf("sample source: resolve %q: %w", groupAddr, err)
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", addr.Port))
	if err != nil {
		return nil, fmt.Errorf("sample source: listen: %w", err)
	}
	conn := pc.(*net.UDPConn)
	_ = conn.SetReadBuffer(4 << 20)

	p := ipv4.NewPacketConn(conn)
	if addr.IP.IsMulticast() {
		if err := p.JoinGroup(iface, addr); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sample source: join multicast: %w", err)
		}
	}

	src := &RTPMulticastSource{
		conn:    conn,
		group:   addr,
		pending: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
	go src.receiveLoop()
	return src, nil
}

func (s *RTPMulticastSource) receiveLoop() {
	buf := make([]byte, 65536)
	var pkt rtp.Packet
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.closed:
			default:
				log.Printf("sample source: rtp read error: %v", err)
			}
			return
		}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}

		s.mu.Lock()
		if s.haveSeq && pkt.SequenceNumber != s.nextSeq {
			// Out-of-order or gap: forward payload anyway (best-effort,
			// never block the producer on reordering) but count it.
			s.Underflow++
		}
		s.nextSeq = pkt.SequenceNumber + 1
		s.haveSeq = true
		s.mu.Unlock()

		payload := make([]byte, len(pkt.Payload))
		copy(payload, pkt.Payload)

		select {
		case s.pending <- payload:
		default:
			s.mu.Lock()
			s.Underflow++
			s.mu.Unlock()
		}
	}
}

func (s *RTPMulticastSource) Read(ctx context.Context, buf []byte) (int, error) {
	select {
	case payload, ok := <-s.pending:
		if !ok {
			return 0, ErrSourceClosed
		}
		n := copy(buf, payload)
		return n, nil
	case <-s.closed:
		return 0, ErrSourceClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (s *RTPMulticastSource) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
		close(s.closed)
	}
	return s.conn.Close()
}
