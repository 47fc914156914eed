package checkout

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"a55pay-sdk/types"
)

// Command is an instruction for the provider SDK running in the browser.
type Command struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// RelayProvider is a HostedProvider whose SDK runs in the browser: calls are
// queued as commands for the browser shim and the SDK callbacks come back
// through Deliver.
type RelayProvider struct {
	mu       sync.Mutex
	cfg      *HostedConfig
	commands []Command
}

func NewRelayProvider() *RelayProvider {
	return &RelayProvider{}
}

func (p *RelayProvider) push(name string, args map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, Command{Name: name, Args: args})
}

func (p *RelayProvider) Initialize(ctx context.Context, apiKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.push("initialize", map[string]interface{}{"api_key": apiKey})
	return nil
}

func (p *RelayProvider) StartCheckout(ctx context.Context, cfg HostedConfig) error {
	p.mu.Lock()
	p.cfg = &cfg
	p.mu.Unlock()
	p.push("start_checkout", map[string]interface{}{
		"checkout_session":   cfg.CheckoutSession,
		"element_selector":   cfg.ElementSelector,
		"action_selector":    cfg.ActionSelector,
		"country_code":       cfg.CountryCode,
		"language":           cfg.Language,
		"show_loading":       true,
		"issuers_form":       true,
		"show_payment_state": true,
	})
	return nil
}

func (p *RelayProvider) Mount() error {
	p.push("mount_checkout", nil)
	return nil
}

func (p *RelayProvider) ContinuePayment() error {
	p.push("continue_payment", nil)
	return nil
}

func (p *RelayProvider) StartPayment() error {
	p.mu.Lock()
	started := p.cfg != nil
	p.mu.Unlock()
	if !started {
		return types.NewValidationError("Hosted checkout was not started")
	}
	p.push("start_payment", nil)
	return nil
}

// DrainCommands returns the queued commands and clears the queue.
func (p *RelayProvider) DrainCommands() []Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.commands
	p.commands = nil
	return out
}

type callbackPayload struct {
	OneTimeToken  string `json:"one_time_token"`
	Token         string `json:"oneTimeToken"`
	Status        string `json:"status"`
	ReturnMessage string `json:"ReturnMessage"`
	Message       string `json:"message"`
	IsLoading     bool   `json:"isLoading"`
}

// Deliver relays one SDK callback: create_payment, payment_result, error or
// loading. The SDK's own names (yunoCreatePayment, yunoPaymentResult,
// yunoError, onLoading) are accepted as well.
func (p *RelayProvider) Deliver(callback string, payload json.RawMessage) error {
	p.mu.Lock()
	cfg := p.cfg
	p.mu.Unlock()
	if cfg == nil {
		return types.NewNotFoundError("no hosted checkout is waiting for provider callbacks")
	}

	var body callbackPayload
	if len(payload) > 0 {
		// O resultado pode vir como string simples ("SUCCEEDED")
		var status string
		if json.Unmarshal(payload, &status) == nil {
			body.Status = status
		} else if err := json.Unmarshal(payload, &body); err != nil {
			return types.NewValidationError("invalid provider payload: %v", err)
		}
	}

	switch normalizeHostedCallback(callback) {
	case "createpayment":
		token := body.OneTimeToken
		if token == "" {
			token = body.Token
		}
		if token == "" {
			return types.NewValidationError("one_time_token is required")
		}
		go cfg.OnCreatePayment(token)
	case "paymentresult":
		cfg.OnResult(body.Status)
	case "error":
		msg := body.ReturnMessage
		if msg == "" {
			msg = body.Message
		}
		cfg.OnError(msg)
	case "loading":
		cfg.OnLoading(body.IsLoading)
	default:
		return types.NewValidationError("unknown provider callback: %s", callback)
	}
	return nil
}

func normalizeHostedCallback(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "")
	name = strings.TrimPrefix(name, "yuno")
	return strings.TrimPrefix(name, "on")
}
