// Package echo implements the diagnostic TCP echo service.
//
// Every accepted connection gets its own goroutine that writes back whatever
// it reads, in chunks of at most ChunkSize bytes. Connections share no state
// with each other or with the rest of the process.
package echo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ChunkSize is the largest read/write performed per echo cycle.
const ChunkSize = 128

// DefaultPort is the default echo service port.
const DefaultPort = 8080

// Config tunes the server. The zero value accepts an unbounded number of
// connections with no timeouts.
type Config struct {
	// MaxConns bounds concurrent workers. 0 means unbounded.
	MaxConns int
	// IdleTimeout closes a connection that sends nothing for this long.
	// 0 disables the timeout.
	IdleTimeout time.Duration
}

// Stats is a point-in-time view of server counters.
type Stats struct {
	Accepted uint64
	Active   int64
	Bytes    uint64
	Failed   uint64
}

// Server accepts connections and echoes their bytes.
type Server struct {
	cfg Config
	log zerolog.Logger
	sem chan struct{}
	wg  sync.WaitGroup

	accepted atomic.Uint64
	active   atomic.Int64
	bytes    atomic.Uint64
	failed   atomic.Uint64
}

// New creates a Server.
func New(cfg Config, log zerolog.Logger) *Server {
	s := &Server{
		cfg: cfg,
		log: log.With().Str("component", "echo").Logger(),
	}
	if cfg.MaxConns > 0 {
		s.sem = make(chan struct{}, cfg.MaxConns)
	}
	return s
}

// Listen binds a TCP listener on addr. A bind failure is fatal to the
// caller; there is no retry.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until ctx is cancelled or a fatal accept
// error occurs. Each connection is handled in its own goroutine and the
// loop goes straight back to Accept.
//
// On cancellation the listener and all open connections are closed and
// Serve returns nil once every worker has exited. A fatal accept error
// closes them the same way and is then returned.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("echo service listening")

	for {
		if err := s.acquire(ctx); err != nil {
			s.wg.Wait()
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			s.release()
			if parent.Err() != nil {
				s.wg.Wait()
				return nil
			}
			if isConnAborted(err) {
				s.log.Warn().Err(err).Msg("accept: connection aborted")
				continue
			}
			ln.Close()
			cancel()
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}

		s.accepted.Add(1)
		s.active.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.active.Add(-1)
			defer s.release()
			s.handle(ctx, conn)
		}()
	}
}

// acquire takes a worker slot when MaxConns is set.
func (s *Server) acquire(ctx context.Context) error {
	if s.sem == nil {
		return nil
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) release() {
	if s.sem == nil {
		return
	}
	<-s.sem
}

// handle owns conn for its whole lifetime.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	log.Info().Msg("accepted client")

	n, err := s.echo(conn)
	switch {
	case err == nil:
		log.Info().Uint64("bytes", n).Msg("client closed connection")
	case ctx.Err() != nil:
		log.Debug().Uint64("bytes", n).Msg("connection closed on shutdown")
	default:
		s.failed.Add(1)
		log.Warn().Err(err).Uint64("bytes", n).Msg("connection terminated")
	}
}

// echo copies conn back to itself one chunk at a time and returns the
// number of bytes echoed. A clean close by the peer returns a nil error.
func (s *Server) echo(conn net.Conn) (uint64, error) {
	buf := make([]byte, ChunkSize)
	var total uint64

	for {
		if s.cfg.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
				return total, fmt.Errorf("set read deadline: %w", err)
			}
		}

		n, rerr := conn.Read(buf)
		if n > 0 {
			if _, err := conn.Write(buf[:n]); err != nil {
				return total, fmt.Errorf("write: %w", err)
			}
			total += uint64(n)
			s.bytes.Add(uint64(n))
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return total, nil
			}
			return total, fmt.Errorf("read: %w", rerr)
		}
	}
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Accepted: s.accepted.Load(),
		Active:   s.active.Load(),
		Bytes:    s.bytes.Load(),
		Failed:   s.failed.Load(),
	}
}
