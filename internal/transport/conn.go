package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openavr/azurctl/internal/logging"
)

const (
	// dialTimeout bounds how long a single dial attempt may take.
	dialTimeout = 5 * time.Second

	// writeWait bounds how long a single write may block. The receiver
	// reads commands promptly; a stalled write means the link is gone.
	writeWait = 10 * time.Second

	// readBufferSize is the chunk size for the read pump. Receiver
	// messages are short ASCII lines; bursts fit comfortably.
	readBufferSize = 4096
)

// Conn is one established connection to a receiver. It satisfies
// avr.Transport: Write sends raw bytes, PauseReading/ResumeReading
// gate the read pump so the protocol layer can bound its buffering.
type Conn struct {
	log  *zap.Logger
	addr string
	c    net.Conn

	// writeMu serializes writes; commands are short lines and must not
	// interleave.
	writeMu sync.Mutex

	// mu guards paused/closed; cond wakes the read pump on resume or
	// close.
	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
	closed bool

	onClosed  func(err error)
	closeOnce sync.Once
	done      chan struct{}
}

// Dial establishes a TCP connection to the receiver at addr
// (host:port).
func Dial(ctx context.Context, addr string) (*Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, Classify(err, addr)
	}

	c := &Conn{
		log:  logging.GetLogger(),
		addr: addr,
		c:    nc,
		done: make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)

	logging.LogConnection(addr, "connected")
	return c, nil
}

// RemoteAddr returns the receiver address this connection was dialed
// to.
func (c *Conn) RemoteAddr() string {
	return c.addr
}

// Start launches the read pump. onData is invoked with each received
// chunk, in order, from a single goroutine; the callback must not
// block indefinitely. onClosed, if non-nil, is invoked exactly once
// when the connection drops (nil error for a local Close).
func (c *Conn) Start(onData func([]byte), onClosed func(err error)) {
	c.onClosed = onClosed
	go c.readLoop(onData)
}

// Write sends raw bytes to the receiver. Implements avr.Transport.
func (c *Conn) Write(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Classify(ErrClosed, c.addr)
	}

	if err := c.c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return Classify(err, c.addr)
	}
	if _, err := c.c.Write(p); err != nil {
		return Classify(err, c.addr)
	}
	logging.LogWireTX(c.addr, p)
	return nil
}

// PauseReading stops the read pump before its next read. Implements
// avr.Transport.
func (c *Conn) PauseReading() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// ResumeReading lets a paused read pump continue. Implements
// avr.Transport.
func (c *Conn) ResumeReading() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.teardown(nil)
}

// Done is closed when the connection has fully shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) teardown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.paused = false
		c.mu.Unlock()
		c.cond.Broadcast()

		_ = c.c.Close()

		if err != nil {
			c.log.Warn("lost connection to receiver",
				zap.String("remote_addr", c.addr),
				zap.Error(err),
			)
		} else {
			logging.LogConnection(c.addr, "closed")
		}

		if c.onClosed != nil {
			c.onClosed(err)
		}
		close(c.done)
	})
}

// waitResumed blocks while the pump is paused. Reports false once the
// connection is closed.
func (c *Conn) waitResumed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.paused && !c.closed {
		c.cond.Wait()
	}
	return !c.closed
}

func (c *Conn) readLoop(onData func([]byte)) {
	buf := make([]byte, readBufferSize)
	for {
		if !c.waitResumed() {
			return
		}

		n, err := c.c.Read(buf)
		if n > 0 {
			logging.LogWireRX(c.addr, buf[:n])
			onData(buf[:n])
		}
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				// Local close already tore everything down.
				return
			}
			c.teardown(Classify(err, c.addr))
			return
		}
	}
}
