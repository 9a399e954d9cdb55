package channel

import (
	"bufio"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// maxFrameSize bounds a single inbound frame
	maxFrameSize = 1 << 20

	// writeWait is the time allowed to write a control message
	writeWait = 10 * time.Second
)

// ErrClosed is returned by ReadFrame after the peer or Close ended the connection
var ErrClosed = errors.New("channel: connection closed")

// Conn carries whole frames in both directions.
// WriteFrame is never called concurrently; ReadFrame runs on a single goroutine.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Close() error
}

// WebSocketConn carries one frame per WebSocket text message
type WebSocketConn struct {
	conn *websocket.Conn
}

// NewWebSocketConn wraps an established WebSocket connection
func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	conn.SetReadLimit(maxFrameSize)
	return &WebSocketConn{conn: conn}
}

// ReadFrame returns the next text message. Binary messages are skipped.
func (c *WebSocketConn) ReadFrame() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrClosed
			}
			return nil, err
		}
		if messageType != websocket.TextMessage {
			log.Printf("Ignoring non-text WebSocket message (type %d)", messageType)
			continue
		}
		return data, nil
	}
}

// WriteFrame sends frame as a text message
func (c *WebSocketConn) WriteFrame(frame []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close sends a close message and closes the underlying connection
func (c *WebSocketConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return c.conn.Close()
}

// StreamConn carries newline-delimited frames over a byte stream, such as
// a process's stdin and stdout
type StreamConn struct {
	scanner *bufio.Scanner
	r       io.Reader
	w       io.Writer
	once    sync.Once
}

// NewStreamConn creates a StreamConn reading from r and writing to w
func NewStreamConn(r io.Reader, w io.Writer) *StreamConn {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &StreamConn{scanner: scanner, r: r, w: w}
}

// ReadFrame returns the next non-empty line
func (c *StreamConn) ReadFrame() ([]byte, error) {
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame := make([]byte, len(line))
		copy(frame, line)
		return frame, nil
	}
	if err := c.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, ErrClosed
}

// WriteFrame writes frame followed by a newline
func (c *StreamConn) WriteFrame(frame []byte) error {
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, frame...)
	buf = append(buf, '\n')
	_, err := c.w.Write(buf)
	return err
}

// Close closes the reader when it is closable
func (c *StreamConn) Close() error {
	var err error
	c.once.Do(func() {
		if closer, ok := c.r.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}
