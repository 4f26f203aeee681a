package service

import (
	"sync"

	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

// Stream is one player's bidirectional message stream. The gRPC GameStream
// and the WebSocket gateway both provide one.
type Stream interface {
	Send(*game.ServerMessage) error
	Recv() (*game.ClientMessage, error)
}

// clientConn represents a client connection with priority queues for messaging.
type clientConn struct {
	stream      Stream
	highQueue   chan *game.ServerMessage // For global world events
	normalQueue chan *game.ServerMessage // For everything else

	done      chan struct{}
	closeOnce sync.Once
	// writerDone закрывается, когда горутина отправки завершилась
	writerDone chan struct{}
}

func newClientConn(stream Stream) *clientConn {
	return &clientConn{
		stream:      stream,
		highQueue:   make(chan *game.ServerMessage, sendQueueSize),
		normalQueue: make(chan *game.ServerMessage, sendQueueSize),
		done:        make(chan struct{}),
		writerDone:  make(chan struct{}),
	}
}

func isHighPriority(msg *game.ServerMessage) bool {
	if msg.WorldEvent == nil {
		return false
	}
	switch msg.WorldEvent.Type {
	case game.EventTimeChanged, game.EventServerShutdown:
		return true
	}
	return false
}

// send enqueues a message into the appropriate queue. If block is true, it
// blocks until the message is enqueued or the connection is closed; otherwise
// it returns ErrQueueFull on overflow.
func (c *clientConn) send(msg *game.ServerMessage, block bool) error {
	q := c.normalQueue
	if isHighPriority(msg) {
		q = c.highQueue
	}
	if block {
		select {
		case q <- msg:
			return nil
		case <-c.done:
			return ErrNotConnected
		}
	}
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case q <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// close stops the writer after it has flushed what is already queued.
func (c *clientConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writeLoop sends queued messages, high priority first, until close or a send error.
func (c *clientConn) writeLoop() error {
	defer close(c.writerDone)
	for {
		var msg *game.ServerMessage
		select {
		case msg = <-c.highQueue:
		default:
			select {
			case msg = <-c.highQueue:
			case msg = <-c.normalQueue:
			case <-c.done:
				return c.flush()
			}
		}
		if err := c.stream.Send(msg); err != nil {
			c.close()
			return err
		}
	}
}

func (c *clientConn) flush() error {
	for _, q := range []chan *game.ServerMessage{c.highQueue, c.normalQueue} {
		for {
			select {
			case msg := <-q:
				if err := c.stream.Send(msg); err != nil {
					return err
				}
				continue
			default:
			}
			break
		}
	}
	return nil
}
