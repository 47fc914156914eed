package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"a55pay-sdk/middleware"
)

// NewRouter mounts the API under /api. Flow starts are identified by the
// session cookie; everything else needs the relay token they return.
func NewRouter(flows *FlowHandler, relay *RelayHandler, health *HealthHandler, tokens middleware.TokenValidator) *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/pay", flows.Pay).Methods(http.MethodPost)
	api.HandleFunc("/pay-v2", flows.PayV2).Methods(http.MethodPost)
	api.HandleFunc("/checkout", flows.Checkout).Methods(http.MethodPost)
	api.HandleFunc("/checkout/open", flows.OpenCheckout).Methods(http.MethodPost)
	api.HandleFunc("/health", health.Health).Methods(http.MethodGet)

	relayed := api.NewRoute().Subrouter()
	relayed.Use(middleware.RelayAuth(tokens))
	relayed.HandleFunc("/flows/{id}", flows.GetFlow).Methods(http.MethodGet)
	relayed.HandleFunc("/flows/{id}/start-payment", flows.StartPayment).Methods(http.MethodPost)
	relayed.HandleFunc("/messages", relay.Message).Methods(http.MethodPost)
	relayed.HandleFunc("/provider-events", relay.ProviderEvent).Methods(http.MethodPost)
	relayed.HandleFunc("/surfaces/close", relay.CloseSurface).Methods(http.MethodPost)
	relayed.HandleFunc("/document", relay.Document).Methods(http.MethodGet)

	return router
}
