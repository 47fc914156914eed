package threeds

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"a55pay-sdk/types"
)

// RelayWidget is a Widget whose provider runs in the browser. The browser
// shim relays the provider callbacks through Deliver and polls
// AuthenticateRequested to know when to call the provider's trigger.
type RelayWidget struct {
	mu           sync.Mutex
	cfg          *WidgetConfig
	authenticate bool
	ready        bool
}

func NewRelayWidget() *RelayWidget {
	return &RelayWidget{}
}

func (w *RelayWidget) Initiate(ctx context.Context, cfg WidgetConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg = &cfg
	w.ready = false
	w.authenticate = false
	return nil
}

func (w *RelayWidget) Authenticate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.authenticate = true
}

// AuthenticateRequested reports whether the flow asked the provider to
// start authenticating.
func (w *RelayWidget) AuthenticateRequested() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.authenticate
}

// Environment returns the environment of the current configuration.
func (w *RelayWidget) Environment() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cfg == nil {
		return ""
	}
	return w.cfg.Environment
}

// Deliver relays one provider callback. Both the short names ("ready",
// "failure") and the provider's callback names ("onReady", "onFailure") are
// accepted.
func (w *RelayWidget) Deliver(callback string, payload json.RawMessage) error {
	w.mu.Lock()
	cfg := w.cfg
	w.mu.Unlock()
	if cfg == nil {
		return types.NewNotFoundError("no widget is waiting for provider callbacks")
	}

	name := normalizeCallback(callback)
	if name == "ready" {
		w.mu.Lock()
		already := w.ready
		w.ready = true
		w.mu.Unlock()
		if !already && cfg.OnReady != nil {
			cfg.OnReady()
		}
		return nil
	}

	kind, ok := callbackKinds[name]
	if !ok {
		return types.NewValidationError("unknown widget callback: %s", callback)
	}
	outcome := WidgetOutcome{}
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &outcome); err != nil {
			return types.NewValidationError("invalid widget payload: %v", err)
		}
	}
	outcome.Kind = kind
	if cfg.OnOutcome != nil {
		cfg.OnOutcome(outcome)
	}
	return nil
}

var callbackKinds = map[string]OutcomeKind{
	"success":           OutcomeSuccess,
	"failure":           OutcomeFailure,
	"unenrolled":        OutcomeUnenrolled,
	"disabled":          OutcomeDisabled,
	"error":             OutcomeError,
	"unsupportedbrand":  OutcomeUnsupportedBrand,
	"unsupported_brand": OutcomeUnsupportedBrand,
}

func normalizeCallback(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimPrefix(name, "on")
}
