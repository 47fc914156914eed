package orchestrator

import (
	"time"

	"a55pay-sdk/messaging"
	"a55pay-sdk/page"
	"a55pay-sdk/services/a55"
	"a55pay-sdk/services/authentication"
	"a55pay-sdk/services/challenge"
	"a55pay-sdk/services/charge"
	"a55pay-sdk/services/checkout"
	"a55pay-sdk/services/device"
	"a55pay-sdk/services/payment"
	"a55pay-sdk/services/report"
	"a55pay-sdk/services/threeds"
)

// Settings tune the components of a Session.
type Settings struct {
	CollectorURL string

	AuthOrigin  string
	AuthTimeout time.Duration

	ChallengeOrigins []string
	ChallengeWindow  time.Duration
	RedirectDelay    time.Duration

	CheckoutOrigin string
	CheckoutWindow time.Duration

	WidgetScriptURL   string
	WidgetEnvironment string
	HostedSDKURL      string

	IPResolvers []device.IPResolver
	IPAttempt   time.Duration
}

// Session is one page: a headless document, its message bus and an
// orchestrator whose providers are relayed to the browser.
type Session struct {
	*Orchestrator

	Doc      *page.Headless
	Bus      *messaging.Bus
	Identity *device.Identity
	Widget   *threeds.RelayWidget
	Provider *checkout.RelayProvider
}

// NewSession wires every component of a page around client.
func NewSession(client *a55.Client, env page.Environment, s Settings, reporter report.Reporter) *Session {
	reporter = report.OrLog(reporter)
	doc := page.NewHeadless(env)
	bus := messaging.NewBus()

	charges := charge.NewRepository(client)
	submitter := payment.NewSubmitter(client)
	identity := device.NewIdentity(doc, s.CollectorURL)
	widget := threeds.NewRelayWidget()
	provider := checkout.NewRelayProvider()

	deps := Dependencies{
		Doc:       doc,
		Charges:   charges,
		Submitter: submitter,
		Authenticator: authentication.NewGateway(client, doc, bus, authentication.Options{
			TrustedOrigin: s.AuthOrigin,
			Timeout:       s.AuthTimeout,
		}),
		Fingerprints: device.NewCollector(identity, doc, device.ChainResolver{
			Resolvers:  s.IPResolvers,
			PerAttempt: s.IPAttempt,
		}),
		Bridge: threeds.NewBridge(doc, widget, submitter, threeds.Options{
			ScriptURL:   s.WidgetScriptURL,
			Environment: s.WidgetEnvironment,
		}),
		Challenge: challenge.NewChannel(doc, bus, charges, challenge.Options{
			Window:        s.ChallengeWindow,
			RedirectDelay: s.RedirectDelay,
			Origins:       s.ChallengeOrigins,
			Reporter:      reporter,
		}),
		Checkout: checkout.NewChannel(doc, bus, checkout.Options{
			TrustedOrigin: s.CheckoutOrigin,
			Window:        s.CheckoutWindow,
			Reporter:      reporter,
		}),
		Hosted: checkout.NewHosted(doc, provider, submitter, checkout.HostedOptions{
			ScriptURL: s.HostedSDKURL,
			Reporter:  reporter,
		}),
		Reporter: reporter,
	}

	identity.Start()
	return &Session{
		Orchestrator: New(deps, Options{RedirectDelay: s.RedirectDelay}),
		Doc:          doc,
		Bus:          bus,
		Identity:     identity,
		Widget:       widget,
		Provider:     provider,
	}
}

// Close tears down the live surfaces and stops the in-flight flows.
func (s *Session) Close() {
	s.CloseSurface(SurfaceChallenge)
	s.CloseSurface(SurfaceCheckout)
	s.Shutdown()
}
