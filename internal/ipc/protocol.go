// Package ipc carries control commands to a running interview session over a
// JSON-line unix socket.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Control commands understood by a running session.
const (
	CommandStatus       = "status"
	CommandStart        = "start"
	CommandStop         = "stop"
	CommandReview       = "review"
	CommandExitReview   = "exit-review"
	CommandNext         = "next"
	CommandPrev         = "prev"
	CommandReplay       = "replay"
	CommandPlay         = "play"
	CommandStopPlayback = "stop-playback"
)

// Commands lists every control command in help order.
var Commands = []string{
	CommandStatus,
	CommandStart,
	CommandStop,
	CommandReview,
	CommandExitReview,
	CommandNext,
	CommandPrev,
	CommandReplay,
	CommandPlay,
	CommandStopPlayback,
}

type Request struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
}

type Response struct {
	ID       string          `json:"id,omitempty"`
	OK       bool            `json:"ok"`
	State    string          `json:"state,omitempty"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

// NewRequest tags command with a fresh request id.
func NewRequest(command string) Request {
	return Request{ID: uuid.NewString(), Command: command}
}

// IsCommand reports whether name is a known control command.
func IsCommand(name string) bool {
	for _, command := range Commands {
		if command == name {
			return true
		}
	}
	return false
}

// DecodeSnapshot unmarshals the response snapshot payload into out.
func (r Response) DecodeSnapshot(out any) error {
	if len(r.Snapshot) == 0 {
		return errors.New("response carries no snapshot")
	}
	if err := json.Unmarshal(r.Snapshot, out); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return nil
}
