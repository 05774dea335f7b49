package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
)

type (
	acceptResult struct {
		conn net.Conn
		err  error
	}

	// scriptedListener hands out results in order, then blocks until closed.
	scriptedListener struct {
		mu      sync.Mutex
		results []acceptResult
		done    chan struct{}
		once    sync.Once
	}

	timeoutError struct{}
)

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func newScriptedListener(results ...acceptResult) *scriptedListener {
	return &scriptedListener{
		results: results,
		done:    make(chan struct{}),
	}
}

func (l *scriptedListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	if len(l.results) > 0 {
		result := l.results[0]
		l.results = l.results[1:]
		l.mu.Unlock()
		return result.conn, result.err
	}
	l.mu.Unlock()
	<-l.done
	return nil, &net.OpError{Op: "accept", Net: "tcp", Err: net.ErrClosed}
}

func (l *scriptedListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *scriptedListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func acceptError(err error) acceptResult {
	return acceptResult{err: &net.OpError{Op: "accept", Net: "tcp", Err: err}}
}

func TestAcceptErrorRetried(t *testing.T) {
	logs := captureLog(t)

	client, conn := net.Pipe()
	listener := newScriptedListener(
		acceptError(timeoutError{}),
		acceptError(timeoutError{}),
		acceptResult{conn: conn},
		acceptError(timeoutError{}),
	)
	pool := serve(context.Background(), listener, 1, Echo)

	_, err := client.Write([]byte("still alive"))
	assert.NilError(t, err)
	buf := make([]byte, len("still alive"))
	_, err = io.ReadFull(client, buf)
	assert.NilError(t, err)
	assert.Equal(t, "still alive", string(buf))
	assert.NilError(t, client.Close())

	assert.NilError(t, pool.Close())

	out := logs.String()
	assert.Equal(t, 2, strings.Count(out, "retrying in 5ms"), out)
	assert.Equal(t, 1, strings.Count(out, "retrying in 10ms"), out)
	assert.Assert(t, strings.Contains(out, "bytes echoed: 11"), out)
	assert.Assert(t, strings.Contains(out, "worker 0: closed connection from pipe"), out)
	assert.Assert(t, strings.Contains(out, "worker 0 finished"), out)
}

func TestAcceptPermanentError(t *testing.T) {
	logs := captureLog(t)

	listener := newScriptedListener(acceptError(errors.New("listener invalidated")))
	pool := serve(context.Background(), listener, 1, Echo)

	err := pool.Wait()
	assert.Assert(t, errors.Is(err, ErrListener), "unexpected error: %v", err)
	assert.ErrorContains(t, err, "listener invalidated")
	assert.Assert(t, !strings.Contains(logs.String(), "retrying"), logs.String())
	pool.Close()
}

func TestListenerClosedUnexpectedly(t *testing.T) {
	captureLog(t)

	listener := newScriptedListener()
	pool := serve(context.Background(), listener, 3, Echo)

	listener.Close()
	err := pool.Wait()
	assert.Assert(t, errors.Is(err, ErrListener), "unexpected error: %v", err)
	assert.Assert(t, errors.Is(err, net.ErrClosed))
	pool.Close()
}
