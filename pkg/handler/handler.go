// Package handler runs an ordered, mutable set of typed handlers over a
// decoded header chain.
package handler

import (
	"errors"
	"fmt"

	"firestige.xyz/netcodec/pkg/packet"
)

var (
	ErrDuplicateName    = errors.New("handler: duplicate name")
	ErrDuplicateHandler = errors.New("handler: duplicate handler")
	ErrHandlerNotFound  = errors.New("handler: not found")
	ErrNilHandler       = errors.New("handler: nil handler")
	ErrHandlerPanic     = errors.New("handler: panic")
)

// Error is one failed handler invocation.
type Error struct {
	Handler string
	Type    packet.Type
	Err     error
}

func (e *Error) Error() string { return fmt.Sprintf("handler %q on %s: %v", e.Handler, e.Type, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Handler receives every header of the type it declares. A handler declaring
// packet.TypeAny receives every header.
type Handler interface {
	Type() packet.Type
	Handle(p packet.Packet) error
}

// Sharable marks a handler whose concrete type may appear in a pipeline
// more than once.
type Sharable interface {
	Sharable() bool
}

func isSharable(h Handler) bool {
	s, ok := h.(Sharable)
	return ok && s.Sharable()
}

type funcHandler struct {
	typ packet.Type
	fn  func(packet.Packet) error
}

// Func adapts fn to a Handler for headers of type t. Func handlers are
// sharable.
func Func(t packet.Type, fn func(packet.Packet) error) Handler {
	return &funcHandler{typ: t, fn: fn}
}

func (f *funcHandler) Type() packet.Type            { return f.typ }
func (f *funcHandler) Handle(p packet.Packet) error { return f.fn(p) }
func (f *funcHandler) Sharable() bool               { return true }
