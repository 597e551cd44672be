// Package dispatch routes request packets to command handlers and runs
// the bridge event loop.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/mcubridge/pkg/wire"
)

// Status values returned to the dispatch layer.
const (
	// StatusFailed means the command was rejected.
	StatusFailed uint32 = 0
	// StatusOK means the command was recognized and performed.
	StatusOK uint32 = 1
)

// Handler performs a command.
// A non-nil error always maps to StatusFailed.
type Handler interface {
	HandleRequest(*wire.Request) (uint32, error)
}

// HandlerFunc is func form of Handler.
type HandlerFunc func(*wire.Request) (uint32, error)

// HandleRequest implements Handler.
func (f HandlerFunc) HandleRequest(req *wire.Request) (uint32, error) {
	return f(req)
}

// UnknownCommandError is returned for commands without a handler.
type UnknownCommandError struct {
	Cmd wire.CommandID
}

// Error implements error.
func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %d", e.Cmd)
}

// Table maps command ids to handlers.
type Table struct {
	handlers map[wire.CommandID]Handler
	lock     sync.RWMutex
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{handlers: make(map[wire.CommandID]Handler)}
}

// Register installs h for cmd, replacing any existing handler.
func (t *Table) Register(cmd wire.CommandID, h Handler) *Table {
	t.lock.Lock()
	t.handlers[cmd] = h
	t.lock.Unlock()
	return t
}

// RegisterFunc installs fn for cmd.
func (t *Table) RegisterFunc(cmd wire.CommandID, fn func(*wire.Request) (uint32, error)) *Table {
	return t.Register(cmd, HandlerFunc(fn))
}

// Exec parses pkt and runs the matching handler.
func (t *Table) Exec(pkt []byte) (uint32, error) {
	req, err := wire.ParseRequest(pkt)
	if err != nil {
		return StatusFailed, err
	}
	t.lock.RLock()
	h := t.handlers[req.Cmd()]
	t.lock.RUnlock()
	if h == nil {
		return StatusFailed, &UnknownCommandError{Cmd: req.Cmd()}
	}
	status, err := h.HandleRequest(req)
	if err != nil {
		return StatusFailed, fmt.Errorf("command %d: %w", req.Cmd(), err)
	}
	return status, nil
}

// Dispatch is Exec that logs failures and only reports the status.
func (t *Table) Dispatch(pkt []byte) uint32 {
	status, err := t.Exec(pkt)
	if err != nil {
		glog.Warningf("dispatch: %v", err)
		return StatusFailed
	}
	glog.V(2).Infof("dispatch: status %#x", status)
	return status
}
