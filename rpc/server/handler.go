package server

import (
	"context"
	"github.com/tenkdog/jarvis/lib/botstate"
	"github.com/tenkdog/jarvis/lib/lockmgr"
	"github.com/tenkdog/jarvis/lib/session"
)

// Update is one decoded update of the chat platform. Only the envelope is interpreted
// by the server, the content is left to the update handler.
type Update map[string]any

// ID returns the update_id of the update, 0 if missing
func (u Update) ID() int64 {
	if id, ok := u["update_id"].(float64); ok {
		return int64(id)
	}
	return 0
}

// Kind returns the type of the update payload (e.g. "message", "callback_query"), empty if unknown
func (u Update) Kind() string {
	for k := range u {
		if k != "update_id" {
			return k
		}
	}
	return ""
}

// Bot bundles the data access components an update handler works with
type Bot struct {
	State    *botstate.State
	Sessions *session.Manager
	Locks    lockmgr.ILockManager
}

// UpdateHandler processes one update. Returned errors are logged, the platform is always
// told that the update was received.
type UpdateHandler func(ctx context.Context, bot *Bot, update Update) error

// AckHandler accepts every update without acting on it
func AckHandler(_ context.Context, _ *Bot, update Update) error {
	Logger.Debugf("received update %d (%s)", update.ID(), update.Kind())
	return nil
}
