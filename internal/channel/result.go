package channel

import (
	"encoding/json"
	"log"
	"sync/atomic"
)

// Result answers one MethodCall. Only the first reply is delivered; later
// replies are logged and dropped.
type Result interface {
	Success(result any)
	Error(code, message string, details any)
	NotImplemented()
}

// reply is the Result handed to handlers by Channel.Serve
type reply struct {
	ch     *Channel
	id     json.RawMessage
	method string
	done   atomic.Bool
}

func newReply(ch *Channel, call *MethodCall) *reply {
	return &reply{ch: ch, id: normalizeID(call.ID), method: call.Method}
}

func (r *reply) claim(kind string) bool {
	if r.done.CompareAndSwap(false, true) {
		return true
	}
	log.Printf("[channel %s] dropping duplicate %s reply to %s (id %s)", r.ch.ID(), kind, r.method, r.id)
	return false
}

func (r *reply) Success(result any) {
	if !r.claim("success") {
		return
	}
	r.ch.send(successFrame{ID: r.id, Result: result})
}

func (r *reply) Error(code, message string, details any) {
	if !r.claim("error") {
		return
	}
	r.ch.send(errorFrame{ID: r.id, Error: ErrorBody{Code: code, Message: message, Details: details}})
}

func (r *reply) NotImplemented() {
	if !r.claim("notImplemented") {
		return
	}
	r.ch.send(notImplementedFrame{ID: r.id, NotImplemented: true})
}

// answered reports whether a reply was sent
func (r *reply) answered() bool {
	return r.done.Load()
}
