package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/otiai10/authbridge/internal/bridge"
	"github.com/otiai10/authbridge/internal/channel"
	"github.com/otiai10/authbridge/internal/identity"
)

// Identity hands out SDK sessions. *identity.Client implements it.
type Identity interface {
	NewAuth() *identity.Auth
	NewPhoneAuthProvider() *identity.PhoneAuthProvider
}

// ServeConn runs one channel over conn until the peer leaves or ctx is
// cancelled. The connection gets a fresh, signed-out session; everything its
// bridge registered is released when ServeConn returns.
func ServeConn(ctx context.Context, conn channel.Conn, id Identity, opts ...bridge.Option) error {
	ch := channel.New(conn)
	b := bridge.New(id.NewAuth(), id.NewPhoneAuthProvider(), ch, opts...)
	defer b.Close()

	log.Printf("Channel %s opened", ch.ID())
	err := ch.Serve(ctx, b)
	if err != nil {
		log.Printf("Channel %s closed: %v", ch.ID(), err)
		return err
	}
	log.Printf("Channel %s closed", ch.ID())
	return nil
}

// channelHandler upgrades requests to WebSocket channels
type channelHandler struct {
	baseCtx  context.Context
	identity Identity
	upgrader websocket.Upgrader
	opts     []bridge.Option
}

func (h *channelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered with an HTTP error
		log.Printf("WebSocket upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	// The channel ends with the request or with the server's base context
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.baseCtx, cancel)
	defer stop()

	_ = ServeConn(ctx, channel.NewWebSocketConn(ws), h.identity, h.opts...)
}

func newUpgrader(checkOrigin func(*http.Request) bool) websocket.Upgrader {
	return websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		CheckOrigin:      checkOrigin,
	}
}
