package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"a55pay-sdk/messaging"
	"a55pay-sdk/models"
	"a55pay-sdk/page"
	"a55pay-sdk/types"
)

type recorder struct {
	mu      sync.Mutex
	results []types.Result
	errs    []error
	events  []types.Event
	closed  int
	ready   int
	loading []bool
}

func (r *recorder) delivery() *types.Delivery {
	return types.NewDelivery(types.Callbacks{
		OnReady: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ready++
		},
		OnSuccess: func(res types.Result) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.results = append(r.results, res)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
		OnEvent: func(e types.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
		},
		OnClose: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.closed++
		},
		OnLoading: func(l bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.loading = append(r.loading, l)
		},
	})
}

func (r *recorder) terminal() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results) + len(r.errs) + r.closed
}

const checkoutURL = "https://checkout.provider.example/session/123"
const checkoutOrigin = "https://checkout.provider.example"

func post(bus *messaging.Bus, origin, data string) {
	bus.Publish(messaging.Message{Origin: origin, Data: []byte(data)})
}

func TestChannelModalStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		check   func(t *testing.T, r *recorder)
	}{
		{"paid", `{"status":"PAID"}`, func(t *testing.T, r *recorder) {
			require.Len(t, r.results, 1)
			require.Equal(t, "paid", r.results[0].Status)
		}},
		{"ok", `{"status":"ok"}`, func(t *testing.T, r *recorder) { require.Len(t, r.results, 1) }},
		{"error", `{"status":"Error","message":"card refused"}`, func(t *testing.T, r *recorder) {
			require.Len(t, r.errs, 1)
			require.ErrorIs(t, r.errs[0], types.ErrProvider)
			require.Equal(t, "card refused", r.errs[0].Error())
		}},
		{"close", `{"event":"checkout-close"}`, func(t *testing.T, r *recorder) { require.Equal(t, 1, r.closed) }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := page.NewHeadless(page.Environment{})
			bus := messaging.NewBus()
			ch := NewChannel(doc, bus, Options{})
			rec := &recorder{}

			require.NoError(t, ch.Open(OpenRequest{URL: checkoutURL}, rec.delivery()))
			require.NotNil(t, doc.ElementByID(OverlayID))

			post(bus, checkoutOrigin, tt.message)
			tt.check(t, rec)
			require.Equal(t, 1, rec.terminal())
			require.Nil(t, doc.ElementByID(OverlayID))
			require.Equal(t, 0, bus.Listeners())
			require.False(t, ch.Active())
		})
	}
}

func TestChannelPassthroughAndOrigin(t *testing.T) {
	t.Parallel()

	doc := page.NewHeadless(page.Environment{})
	bus := messaging.NewBus()
	ch := NewChannel(doc, bus, Options{TrustedOrigin: "https://trusted.example"})
	rec := &recorder{}
	require.NoError(t, ch.Open(OpenRequest{URL: checkoutURL}, rec.delivery()))

	post(bus, checkoutOrigin, `{"status":"paid"}`)
	post(bus, "https://trusted.example", `{"status":"processing","step":2}`)
	post(bus, "https://trusted.example/", `{"status":"pending"}`)

	require.Equal(t, 0, rec.terminal())
	require.Len(t, rec.events, 2)
	require.Equal(t, "processing", rec.events[0].Status)
	require.JSONEq(t, `{"status":"processing","step":2}`, string(rec.events[0].Data))
	require.True(t, ch.Active())
}

func TestChannelEmbedContainerOwnership(t *testing.T) {
	t.Parallel()

	t.Run("caller container is kept", func(t *testing.T) {
		doc := page.NewHeadless(page.Environment{})
		bus := messaging.NewBus()
		own := doc.CreateElement("div")
		own.SetAttr("id", "pay-here")
		doc.Body().AppendChild(own)

		ch := NewChannel(doc, bus, Options{})
		require.NoError(t, ch.Open(OpenRequest{URL: checkoutURL, Mode: DisplayEmbed, ContainerID: "pay-here"}, (&recorder{}).delivery()))
		require.Len(t, own.Children(), 1)

		require.True(t, ch.Cancel())
		require.NotNil(t, doc.ElementByID("pay-here"))
		require.Empty(t, own.Children())
	})

	t.Run("created container is removed", func(t *testing.T) {
		doc := page.NewHeadless(page.Environment{})
		bus := messaging.NewBus()
		ch := NewChannel(doc, bus, Options{})
		rec := &recorder{}
		require.NoError(t, ch.Open(OpenRequest{URL: checkoutURL, Mode: DisplayEmbed}, rec.delivery()))
		require.NotNil(t, doc.ElementByID(DefaultContainerID))

		post(bus, checkoutOrigin, `"{\"event\":\"checkout-close\"}"`)
		require.Equal(t, 1, rec.closed)
		require.Nil(t, doc.ElementByID(DefaultContainerID))
	})
}

func TestChannelSecondOpenTearsDownFirst(t *testing.T) {
	t.Parallel()

	doc := page.NewHeadless(page.Environment{})
	bus := messaging.NewBus()
	ch := NewChannel(doc, bus, Options{})
	first, second := &recorder{}, &recorder{}

	require.NoError(t, ch.Open(OpenRequest{URL: checkoutURL, Mode: DisplayEmbed}, first.delivery()))
	require.NoError(t, ch.Open(OpenRequest{URL: "https://checkout.provider.example/session/456"}, second.delivery()))

	require.Nil(t, doc.ElementByID(DefaultContainerID))
	require.Len(t, doc.Body().QueryAll("#"+FrameID), 1)
	require.Equal(t, 1, bus.Listeners())

	post(bus, checkoutOrigin, `{"status":"confirmed"}`)
	require.Equal(t, 0, first.terminal())
	require.Len(t, second.results, 1)
}

func TestChannelTimeoutAndValidation(t *testing.T) {
	t.Parallel()

	doc := page.NewHeadless(page.Environment{})
	bus := messaging.NewBus()
	ch := NewChannel(doc, bus, Options{Window: 20 * time.Millisecond})
	rec := &recorder{}

	require.ErrorIs(t, ch.Open(OpenRequest{}, rec.delivery()), types.ErrValidation)
	require.ErrorIs(t, ch.Open(OpenRequest{URL: "not a url"}, rec.delivery()), types.ErrValidation)
	require.ErrorIs(t, ch.Open(OpenRequest{URL: checkoutURL, Mode: "popup"}, rec.delivery()), types.ErrValidation)

	require.NoError(t, ch.Open(OpenRequest{URL: checkoutURL}, rec.delivery()))
	require.Eventually(t, func() bool { return rec.terminal() == 1 }, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, rec.errs[0], types.ErrTimeout)
	require.Nil(t, doc.ElementByID(OverlayID))
	require.Equal(t, 0, bus.Listeners())
}

type fakeSubmitter struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (s *fakeSubmitter) Submit(ctx context.Context, chargeID string, payload *models.PaymentPayload) (*models.PaymentOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, payload.Card.CardToken)
	if s.err != nil {
		return nil, s.err
	}
	return &models.PaymentOutcome{Status: models.PaymentStatusPending}, types.NewUnexpectedStatusError("pending", nil)
}

func newHosted(t *testing.T) (*Hosted, *page.Headless, *RelayProvider, *fakeSubmitter) {
	t.Helper()
	doc := page.NewHeadless(page.Environment{})
	container := doc.CreateElement("div")
	container.SetAttr("id", "yuno")
	doc.Body().AppendChild(container)
	provider := NewRelayProvider()
	submitter := &fakeSubmitter{}
	return NewHosted(doc, provider, submitter, HostedOptions{}), doc, provider, submitter
}

func hostedRequest() HostedRequest {
	return HostedRequest{Selector: "#yuno", ChargeUUID: "c1", CheckoutSession: "sess", APIKey: "pk", CountryCode: "mx"}
}

func commandNames(cmds []Command) []string {
	var names []string
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	return names
}

func TestHostedRun(t *testing.T) {
	t.Parallel()

	hosted, doc, provider, submitter := newHosted(t)
	rec := &recorder{}

	require.ErrorIs(t, hosted.StartPayment(), types.ErrValidation)
	require.NoError(t, hosted.Run(context.Background(), hostedRequest(), rec.delivery()))
	require.Equal(t, 1, rec.ready)
	require.NotNil(t, doc.ElementByID(SDKScriptID))

	cmds := provider.DrainCommands()
	require.Equal(t, []string{"initialize", "start_checkout", "mount_checkout"}, commandNames(cmds))
	require.Equal(t, "es", cmds[1].Args["language"])
	require.Equal(t, "#yuno-action", cmds[1].Args["action_selector"])

	require.NoError(t, hosted.StartPayment())
	require.NoError(t, provider.Deliver("yunoCreatePayment", json.RawMessage(`{"oneTimeToken":"ott-1"}`)))
	require.Eventually(t, func() bool {
		return len(provider.DrainCommands()) > 0
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"ott-1"}, submitter.tokens)

	require.NoError(t, provider.Deliver("yunoPaymentResult", json.RawMessage(`"PROCESSING"`)))
	require.NoError(t, provider.Deliver("payment_result", json.RawMessage(`{"status":"SUCCEEDED"}`)))
	require.NoError(t, provider.Deliver("payment_result", json.RawMessage(`"REJECTED"`)))

	require.Len(t, rec.events, 1)
	require.True(t, rec.events[0].Pending)
	require.Len(t, rec.results, 1)
	require.Equal(t, "SUCCEEDED", rec.results[0].Status)
	require.Empty(t, rec.errs)
}

func TestHostedFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing parameters", func(t *testing.T) {
		hosted, _, _, _ := newHosted(t)
		req := hostedRequest()
		req.APIKey = ""
		require.ErrorIs(t, hosted.Run(context.Background(), req, (&recorder{}).delivery()), types.ErrValidation)
	})

	t.Run("selector not found", func(t *testing.T) {
		hosted, _, _, _ := newHosted(t)
		req := hostedRequest()
		req.Selector = "#missing"
		require.ErrorIs(t, hosted.Run(context.Background(), req, (&recorder{}).delivery()), types.ErrNotFound)
	})

	t.Run("sdk load failure", func(t *testing.T) {
		hosted, doc, _, _ := newHosted(t)
		doc.ScriptHook = func(context.Context, string) error { return errors.New("offline") }
		require.ErrorIs(t, hosted.Run(context.Background(), hostedRequest(), (&recorder{}).delivery()), types.ErrNetwork)
		require.Nil(t, doc.ElementByID(SDKScriptID))
	})

	t.Run("payment creation failure", func(t *testing.T) {
		hosted, _, provider, submitter := newHosted(t)
		submitter.err = types.NewNetworkError("Payment failed", nil)
		rec := &recorder{}
		require.NoError(t, hosted.Run(context.Background(), hostedRequest(), rec.delivery()))
		provider.DrainCommands()

		require.NoError(t, provider.Deliver("create_payment", json.RawMessage(`{"one_time_token":"ott"}`)))
		require.Eventually(t, func() bool { return rec.terminal() == 1 }, time.Second, 5*time.Millisecond)
		require.ErrorIs(t, rec.errs[0], types.ErrNetwork)
		require.Equal(t, []bool{true, false}, rec.loading)
		require.Empty(t, provider.DrainCommands(), "payment must not continue")
	})

	t.Run("provider error", func(t *testing.T) {
		hosted, _, provider, _ := newHosted(t)
		rec := &recorder{}
		require.NoError(t, hosted.Run(context.Background(), hostedRequest(), rec.delivery()))
		require.NoError(t, provider.Deliver("yunoError", json.RawMessage(`{}`)))
		require.Equal(t, "Error during payment process", rec.errs[0].Error())
		require.ErrorIs(t, provider.Deliver("mystery", nil), types.ErrValidation)
	})
}

func TestClassifyResult(t *testing.T) {
	t.Parallel()

	require.Equal(t, ResultSucceeded, ClassifyResult("approved"))
	require.Equal(t, ResultFailed, ClassifyResult("CANCELLED"))
	require.Equal(t, ResultPending, ClassifyResult("IN_PROGRESS"))
	require.Equal(t, ResultUnknown, ClassifyResult("CREATED"))
	require.Equal(t, "pt", languageFor("BR"))
}
