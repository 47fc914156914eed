package threeds

import (
	"context"
	"log"
	"sync"

	"a55pay-sdk/models"
	"a55pay-sdk/page"
	"a55pay-sdk/services/payment"
	"a55pay-sdk/types"
)

const (
	ScriptID         = "bpmpi-script"
	DefaultScriptURL = "https://mpi.braspag.com.br/Scripts/BP.Mpi.3ds20.min.js"

	EnvironmentProduction = "PRD"
	EnvironmentSandbox    = "SDB"
)

type Options struct {
	ScriptURL   string
	Environment string
}

// Bridge drives the embedded authentication widget of the legacy flow and
// submits the payment from the widget's outcome.
type Bridge struct {
	doc       page.Document
	widget    Widget
	submitter payment.PaymentSubmitter
	scriptURL string
	env       string
	scriptMu  sync.Mutex
}

func NewBridge(doc page.Document, widget Widget, submitter payment.PaymentSubmitter, opts Options) *Bridge {
	if opts.ScriptURL == "" {
		opts.ScriptURL = DefaultScriptURL
	}
	if opts.Environment == "" {
		opts.Environment = EnvironmentProduction
	}
	return &Bridge{
		doc:       doc,
		widget:    widget,
		submitter: submitter,
		scriptURL: opts.ScriptURL,
		env:       opts.Environment,
	}
}

// RunOptions configures one widget run.
type RunOptions struct {
	// ForceThreeds makes every non-success outcome terminal. When false the
	// payment is submitted without proof instead.
	ForceThreeds bool
}

// Run injects the widget fields into container, loads the widget and wires
// its outcomes to d. It returns once the widget has been initiated; the
// payment is submitted later from the widget's callbacks, at most once.
func (b *Bridge) Run(ctx context.Context, container page.Element, charge *models.ChargeRecord, user *models.UserPaymentData, opts RunOptions, d *types.Delivery) error {
	fields, err := DeriveFields(charge, user)
	if err != nil {
		return err
	}
	InjectFields(b.doc, container, fields)

	if err := b.loadScript(ctx); err != nil {
		log.Printf("[Charge: %s] Could not load 3DS script: %v", charge.ChargeUUID, err)
		return types.NewNetworkError("Failed to load 3DS script", err)
	}

	var once sync.Once
	cfg := WidgetConfig{
		Environment: b.env,
		OnReady: func() {
			d.Ready()
			b.widget.Authenticate()
		},
		OnOutcome: func(o WidgetOutcome) {
			handled := false
			once.Do(func() {
				handled = true
				b.handleOutcome(ctx, charge, user, opts, o, d)
			})
			if !handled {
				log.Printf("[Charge: %s] Ignoring repeated widget outcome %q", charge.ChargeUUID, o.Kind)
			}
		},
	}
	if err := b.widget.Initiate(ctx, cfg); err != nil {
		log.Printf("[Charge: %s] Widget did not initialize: %v", charge.ChargeUUID, err)
		return types.NewProviderError("3DS script did not initialize bpmpi_load")
	}
	return nil
}

// loadScript appends the widget script once per page. A failed load removes
// the element so a later run can retry.
func (b *Bridge) loadScript(ctx context.Context) error {
	b.scriptMu.Lock()
	defer b.scriptMu.Unlock()

	if b.doc.ElementByID(ScriptID) != nil {
		return nil
	}
	script := b.doc.CreateElement("script")
	script.SetAttr("id", ScriptID)
	script.SetAttr("type", "text/javascript")
	script.SetAttr("src", b.scriptURL)
	if err := b.doc.LoadScript(ctx, b.doc.Body(), script); err != nil {
		script.Remove()
		return err
	}
	return nil
}

func (b *Bridge) handleOutcome(ctx context.Context, charge *models.ChargeRecord, user *models.UserPaymentData, opts RunOptions, o WidgetOutcome, d *types.Delivery) {
	log.Printf("[Charge: %s] Widget outcome: %s", charge.ChargeUUID, o.Kind)

	if o.Kind == OutcomeSuccess {
		b.submit(ctx, charge, user, o.Proof(), d)
		return
	}
	if !opts.ForceThreeds {
		b.submit(ctx, charge, user, nil, d)
		return
	}
	d.Fail(types.NewProviderError(o.message()))
}

func (b *Bridge) submit(ctx context.Context, charge *models.ChargeRecord, user *models.UserPaymentData, proof *types.ThreeDSProof, d *types.Delivery) {
	d.Loading(true)
	payload := payment.BuildPayload(charge, user, payment.PayloadOptions{Proof: proof})
	outcome, err := b.submitter.Submit(ctx, charge.ChargeUUID, payload)
	d.Loading(false)
	if err != nil {
		d.Fail(err)
		return
	}
	// O fluxo legado entrega o pending ao OnSuccess; o evento sinaliza o desafio antes.
	if outcome.ChallengeRequired() {
		log.Printf("[Charge: %s] Issuer requested a challenge at %s", charge.ChargeUUID, outcome.ChallengeURL)
		d.Event(types.Event{Name: "3ds-challenge", Status: string(outcome.Status), Pending: true, Data: outcome.Raw})
	}
	d.Succeed(types.Result{
		Status:      string(outcome.Status),
		ChargeUUID:  charge.ChargeUUID,
		RedirectURL: outcome.RedirectURL,
		Data:        outcome.Raw,
	})
}
