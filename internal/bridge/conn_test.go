package bridge

import (
	"errors"
	"io"
	"sync"
)

// eventLog records writes across several fake connections so tests can
// assert global ordering.
type eventLog struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	conn string
	msg  any
}

func (l *eventLog) append(conn string, msg any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{conn: conn, msg: msg})
}

func (l *eventLog) all() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]logEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

var errConnClosed = errors.New("use of closed connection")

// scriptConn is a scriptable fake for both connection sides: reads come from
// a channel the test feeds, writes are recorded.
type scriptConn struct {
	name string
	log  *eventLog

	reads chan []byte

	mu       sync.Mutex
	written  []any
	writeErr error

	closed     chan struct{}
	closeOnce  sync.Once
	closeCount int
}

func newScriptConn(name string, log *eventLog) *scriptConn {
	return &scriptConn{
		name:   name,
		log:    log,
		reads:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *scriptConn) push(raw string) { c.reads <- []byte(raw) }

// finishReads signals a clean end-of-stream to the reader.
func (c *scriptConn) finishReads() { close(c.reads) }

func (c *scriptConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, errConnClosed
	default:
	}
	select {
	case <-c.closed:
		return nil, errConnClosed
	case b, ok := <-c.reads:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	}
}

func (c *scriptConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, v)
	if c.log != nil {
		c.log.append(c.name, v)
	}
	return nil
}

func (c *scriptConn) setWriteErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *scriptConn) writes() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.written))
	copy(out, c.written)
	return out
}

func (c *scriptConn) Close() error {
	c.mu.Lock()
	c.closeCount++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *scriptConn) closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}
