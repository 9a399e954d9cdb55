package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Handler handles inbound calls. HandleCall runs on its own goroutine per
// call and must answer through result exactly once.
type Handler interface {
	HandleCall(ctx context.Context, call *MethodCall, result Result)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, call *MethodCall, result Result)

// HandleCall calls f(ctx, call, result)
func (f HandlerFunc) HandleCall(ctx context.Context, call *MethodCall, result Result) {
	f(ctx, call, result)
}

// Channel is one connection speaking the method-call envelope.
// Outbound frames (replies and events) are serialized by a write mutex.
type Channel struct {
	id      string
	conn    Conn
	writeMu sync.Mutex
}

// New creates a Channel on conn
func New(conn Conn) *Channel {
	return &Channel{
		id:   uuid.NewString(),
		conn: conn,
	}
}

// ID returns the connection identifier used in logs
func (c *Channel) ID() string {
	return c.id
}

// InvokeMethod sends an event to the peer
func (c *Channel) InvokeMethod(method string, arguments any) error {
	return c.write(eventFrame{Event: method, Arguments: arguments})
}

// Close closes the underlying connection
func (c *Channel) Close() error {
	return c.conn.Close()
}

// Serve reads calls until the connection ends or ctx is cancelled, handing
// each to h on its own goroutine. The context passed to h is cancelled when
// Serve stops; Serve returns once every handler has returned.
func (c *Channel) Serve(ctx context.Context, h Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	for {
		frame, err := c.conn.ReadFrame()
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}

		call, err := DecodeCall(frame)
		if err != nil {
			log.Printf("[channel %s] dropping frame: %v", c.id, err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			c.dispatch(ctx, h, call)
		}()
	}
}

// dispatch runs one call, converting a handler panic into an error reply
func (c *Channel) dispatch(ctx context.Context, h Handler, call *MethodCall) {
	r := newReply(c, call)
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[channel %s] panic handling %s: %v", c.id, call.Method, rec)
			if !r.answered() {
				r.Error(ErrorCodeException, fmt.Sprintf("internal error handling %s", call.Method), nil)
			}
		}
	}()
	h.HandleCall(ctx, call, r)
}

// send writes a reply frame, logging failures
func (c *Channel) send(frame any) {
	if err := c.write(frame); err != nil {
		log.Printf("[channel %s] failed to send reply: %v", c.id, err)
	}
}

func (c *Channel) write(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteFrame(data)
}
