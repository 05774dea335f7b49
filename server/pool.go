package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Pool is a fixed set of workers sharing one TCP listener. Each worker
// accepts a connection and runs the handler on it to completion before
// accepting the next one, so at most len(workers) connections are served at
// once. Anything beyond that waits in the listen backlog.
type Pool struct {
	listener net.Listener
	handler  func(conn net.Conn)
	ctx      context.Context
	cancel   context.CancelFunc
	workers  *errgroup.Group
	closed   chan struct{}
}

// Listen binds a TCP listener on addr and starts the given number of workers
// on it. The workers stop when ctx is canceled or Close is called.
func Listen(ctx context.Context, addr string, workers int, handler func(conn net.Conn)) (*Pool, error) {
	if workers < 1 {
		return nil, ErrWorkerCount
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBind, err)
	}
	log.Println("listening on", listener.Addr())

	return serve(ctx, listener, workers, handler), nil
}

// serve starts workers on an already bound listener.
func serve(ctx context.Context, listener net.Listener, workers int, handler func(conn net.Conn)) *Pool {
	ctx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(ctx)
	pool := Pool{
		listener: listener,
		handler:  handler,
		ctx:      ctx,
		cancel:   cancel,
		workers:  group,
		closed:   make(chan struct{}),
	}

	go pool.closeListenerOnCancel(groupCtx)
	for i := 0; i < workers; i++ {
		id := i
		group.Go(func() error {
			return pool.work(id)
		})
	}

	return &pool
}

// Addr returns the address the listener is bound to.
func (p *Pool) Addr() net.Addr {
	return p.listener.Addr()
}

// Close shuts down the listener and waits for the workers to finish.
func (p *Pool) Close() error {
	p.cancel()
	return p.Wait()
}

// Wait blocks until every worker has exited. It returns the first error a
// worker failed with, or nil if the pool was shut down.
func (p *Pool) Wait() error {
	err := p.workers.Wait()
	<-p.closed
	return err
}

// Wait for the context to cancel, then close the listener. Closing it is
// what unblocks the workers sitting in Accept.
func (p *Pool) closeListenerOnCancel(ctx context.Context) {
	defer close(p.closed)
	<-ctx.Done()
	log.Println("shutting down")
	if err := p.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Println(err)
	}
}

func (p *Pool) work(id int) error {
	log.Printf("worker %d started", id)
	defer log.Printf("worker %d finished", id)

	var delay time.Duration
	for {
		conn, err := p.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			// Check if the pool was shut down on purpose.
			if p.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("worker %d: %w: %w", id, ErrListener, err)
		}
		if err != nil {
			if !temporary(err) {
				return fmt.Errorf("worker %d: %w: %w", id, ErrListener, err)
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			log.Printf("worker %d: error accepting connection: %v; retrying in %v", id, err, delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		log.Printf("worker %d: accepted connection from %v", id, conn.RemoteAddr())
		p.handler(conn)
		if err := conn.Close(); err != nil {
			log.Println(err)
		}
		log.Printf("worker %d: closed connection from %v", id, conn.RemoteAddr())
	}
}

// temporary reports whether a failed Accept is worth retrying. Anything else
// means the listener is unusable.
func temporary(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return temporaryErrno(err)
}
