package authentication

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"a55pay-sdk/messaging"
	"a55pay-sdk/models"
	"a55pay-sdk/page"
	"a55pay-sdk/services/a55"
	"a55pay-sdk/types"
)

const (
	DefaultTrustedOrigin = "https://centinelapistag.cardinalcommerce.com"
	DefaultTimeout       = 30 * time.Second

	frameID = "ddc-iframe"
	formID  = "ddc-form"
)

// SupportedBrands are the card brands the setup endpoint accepts.
var SupportedBrands = []string{"Visa", "MasterCard", "AmericanExpress", "Discover", "JCB", "DinersClub", "Hipercard", "Elo"}

// CardInfo is the card metadata sent to the setup endpoint.
type CardInfo struct {
	TransactionReference string `json:"transaction_reference"`
	Brand                string `json:"card_brand"`
	ExpiryMonth          string `json:"card_expiry_month"`
	ExpiryYear           string `json:"card_expiry_year"`
	Number               string `json:"card_number"`
}

type setupResponse struct {
	AccessToken   string `json:"access_token"`
	ReferenceID   string `json:"reference_id"`
	CollectionURL string `json:"device_data_collection_url"`
}

type Options struct {
	TrustedOrigin string
	Timeout       time.Duration
}

// Gateway performs device-data-collection authentication: a setup call
// followed by a silent hidden form+frame handshake with the provider.
type Gateway struct {
	client        *a55.Client
	doc           page.Document
	bus           *messaging.Bus
	trustedOrigin string
	timeout       time.Duration
}

func NewGateway(client *a55.Client, doc page.Document, bus *messaging.Bus, opts Options) *Gateway {
	if opts.TrustedOrigin == "" {
		opts.TrustedOrigin = DefaultTrustedOrigin
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Gateway{
		client:        client,
		doc:           doc,
		bus:           bus,
		trustedOrigin: opts.TrustedOrigin,
		timeout:       opts.Timeout,
	}
}

// Authenticate runs setup and the collection handshake.
//
// When the provider never signals completion within the timeout window the
// call still succeeds, with State timed_out and TimedOut set: collection may
// well have worked and the payment must not be blocked on a missing signal.
func (g *Gateway) Authenticate(ctx context.Context, card CardInfo) (*models.AuthenticationSession, error) {
	if err := validateCard(card); err != nil {
		return nil, err
	}

	body, err := g.client.PostJSON(ctx, "/setup-authentication", card)
	if err != nil {
		log.Printf("[Auth: %s] Setup failed: %v", card.TransactionReference, err)
		return nil, a55.AsNetworkError(err, "Setup authentication failed")
	}

	var setup setupResponse
	if err := json.Unmarshal(body, &setup); err != nil {
		return nil, types.NewNetworkError("Setup authentication failed", err)
	}
	if setup.CollectionURL == "" {
		return nil, types.NewValidationError("Device data collection URL not provided")
	}

	session := &models.AuthenticationSession{
		TransactionReference: card.TransactionReference,
		ReferenceID:          setup.ReferenceID,
		AccessToken:          setup.AccessToken,
		CollectionURL:        setup.CollectionURL,
		State:                models.AuthenticationPending,
	}
	return g.collect(ctx, session)
}

func (g *Gateway) collect(ctx context.Context, session *models.AuthenticationSession) (*models.AuthenticationSession, error) {
	// Remover elementos anteriores se existirem
	for _, id := range []string{frameID, formID} {
		if old := g.doc.ElementByID(id); old != nil {
			old.Remove()
		}
	}

	iframe := g.doc.CreateElement("iframe")
	iframe.SetAttr("id", frameID)
	iframe.SetAttr("name", frameID)
	iframe.SetAttr("height", "1")
	iframe.SetAttr("width", "1")
	iframe.SetAttr("style", "display: none;")
	g.doc.Body().AppendChild(iframe)

	form := g.doc.CreateElement("form")
	form.SetAttr("id", formID)
	form.SetAttr("target", frameID)
	form.SetAttr("method", "POST")
	form.SetAttr("action", session.CollectionURL)
	jwtInput := g.doc.CreateElement("input")
	jwtInput.SetAttr("type", "hidden")
	jwtInput.SetAttr("name", "JWT")
	jwtInput.SetAttr("value", session.AccessToken)
	form.AppendChild(jwtInput)
	g.doc.Body().AppendChild(form)

	completed := make(chan struct{}, 1)
	unsubscribe := g.bus.Subscribe(messaging.AllowOrigins(func(m messaging.Message) {
		env, ok := messaging.Decode(m.Data)
		if !ok || env.MessageType != messaging.MessageTypeProfileCompleted {
			return
		}
		select {
		case completed <- struct{}{}:
		default:
		}
	}, g.trustedOrigin))

	defer func() {
		form.Remove()
		iframe.Remove()
		unsubscribe()
	}()

	if err := g.doc.SubmitForm(form); err != nil {
		log.Printf("[Auth: %s] Could not submit collection form: %v", session.TransactionReference, err)
		return nil, types.NewNetworkError("Failed to start device data collection", err)
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case <-completed:
		session.State = models.AuthenticationCompleted
		log.Printf("[Auth: %s] Device data collection completed", session.TransactionReference)
	case <-timer.C:
		session.State = models.AuthenticationTimedOut
		session.TimedOut = true
		log.Printf("[Auth: %s] No profile signal after %v, continuing", session.TransactionReference, g.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return session, nil
}

func validateCard(card CardInfo) error {
	if card.TransactionReference == "" || card.Brand == "" || card.ExpiryMonth == "" || card.ExpiryYear == "" || card.Number == "" {
		return types.NewValidationError("Missing required parameters: transactionReference, cardBrand, cardExpiryMonth, cardExpiryYear, or cardNumber")
	}
	for _, b := range SupportedBrands {
		if b == card.Brand {
			return nil
		}
	}
	return types.NewValidationError("Invalid cardBrand. Must be one of: %s", strings.Join(SupportedBrands, ", "))
}
