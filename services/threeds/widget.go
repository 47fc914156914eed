package threeds

import (
	"context"

	"a55pay-sdk/types"
)

// OutcomeKind is the provider callback the widget fired.
type OutcomeKind string

const (
	OutcomeSuccess          OutcomeKind = "success"
	OutcomeFailure          OutcomeKind = "failure"
	OutcomeUnenrolled       OutcomeKind = "unenrolled"
	OutcomeDisabled         OutcomeKind = "disabled"
	OutcomeError            OutcomeKind = "error"
	OutcomeUnsupportedBrand OutcomeKind = "unsupported_brand"
)

// WidgetOutcome is what the widget reports once authentication finished.
// The proof fields are only set for OutcomeSuccess.
type WidgetOutcome struct {
	Kind          OutcomeKind `json:"kind"`
	Eci           string      `json:"Eci,omitempty"`
	ReferenceID   string      `json:"ReferenceId,omitempty"`
	Xid           string      `json:"Xid,omitempty"`
	Cavv          string      `json:"Cavv,omitempty"`
	Version       string      `json:"Version,omitempty"`
	ReturnMessage string      `json:"ReturnMessage,omitempty"`
}

// Proof extracts the authentication proof relayed with the payment.
func (o WidgetOutcome) Proof() *types.ThreeDSProof {
	return &types.ThreeDSProof{
		Eci:       o.Eci,
		RequestID: o.ReferenceID,
		Xid:       o.Xid,
		Cavv:      o.Cavv,
		Version:   o.Version,
	}
}

// message is the error text delivered when the outcome is terminal.
func (o WidgetOutcome) message() string {
	switch o.Kind {
	case OutcomeFailure:
		return "Authentication failed"
	case OutcomeUnenrolled:
		return "Card not eligible for authentication"
	case OutcomeDisabled:
		return "Authentication disabled"
	case OutcomeUnsupportedBrand:
		if o.ReturnMessage != "" {
			return o.ReturnMessage
		}
		return "Unsupported card brand"
	default:
		if o.ReturnMessage != "" {
			return o.ReturnMessage
		}
		return "Error during authentication process"
	}
}

// WidgetConfig is the configuration the provider reads when it loads.
type WidgetConfig struct {
	Environment string
	OnReady     func()
	OnOutcome   func(WidgetOutcome)
}

// Widget is an embedded authentication provider. Initiate hands it the
// configuration and starts it; Authenticate triggers the authentication
// once the provider signalled readiness.
type Widget interface {
	Initiate(ctx context.Context, cfg WidgetConfig) error
	Authenticate()
}
