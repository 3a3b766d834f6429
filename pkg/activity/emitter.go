package activity

import (
	"context"
	"strings"
)

// DefaultChannel is stamped on events emitted without a channel.
const DefaultChannel = "parameters"

// Config controls emission for one parameter set.
type Config struct {
	Enabled bool
	Channel string
}

// Emitter notifies hooks on behalf of a parameter set. A disabled emitter
// or one without hooks drops every event.
type Emitter struct {
	hooks   Hooks
	channel string
}

func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	hooks = hooks.Compact()
	if !cfg.Enabled || hooks == nil {
		return &Emitter{}
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{hooks: hooks, channel: channel}
}

// Enabled reports whether Emit reaches any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit notifies the hooks, keeping an explicit channel on the event.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}
