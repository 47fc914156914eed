package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"a55pay-sdk/middleware"
	"a55pay-sdk/models"
	"a55pay-sdk/orchestrator"
	"a55pay-sdk/page"
	"a55pay-sdk/services/auth"
	"a55pay-sdk/services/checkout"
	"a55pay-sdk/services/report"
	"a55pay-sdk/store"
	"a55pay-sdk/types"
	"a55pay-sdk/utils"
)

const maxBodyBytes = 1 << 20

// FlowResponse is returned when a flow starts.
type FlowResponse struct {
	FlowID     string            `json:"flow_id"`
	SessionID  string            `json:"session_id"`
	RelayToken string            `json:"relay_token"`
	ExpiresAt  time.Time         `json:"expires_at"`
	Flow       *store.FlowRecord `json:"flow"`
}

type FlowHandler struct {
	sessions *SessionManager
	tokens   *auth.FlowTokenService
	flows    store.FlowStore
}

func NewFlowHandler(sessions *SessionManager, tokens *auth.FlowTokenService, flows store.FlowStore) *FlowHandler {
	return &FlowHandler{sessions: sessions, tokens: tokens, flows: flows}
}

type payBody struct {
	orchestrator.PayRequest
	Environment *page.Environment `json:"environment,omitempty"`
	// Mount is set by the shim when the selector exists on the merchant page.
	Mount bool `json:"mount,omitempty"`
}

type payV2Body struct {
	orchestrator.PayV2Request
	Environment *page.Environment `json:"environment,omitempty"`
}

type hostedBody struct {
	checkout.HostedRequest
	Environment *page.Environment `json:"environment,omitempty"`
	Mount       bool              `json:"mount,omitempty"`
}

type openBody struct {
	checkout.OpenRequest
	Environment *page.Environment `json:"environment,omitempty"`
}

func (h *FlowHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var body payBody
	if !decodeBody(w, r, &body) {
		return
	}
	h.start(w, r, "pay", body.Environment, func(s *orchestrator.Session, cb types.Callbacks) string {
		mount(s, body.Mount, body.Selector)
		return s.Pay(body.PayRequest, cb)
	})
}

func (h *FlowHandler) PayV2(w http.ResponseWriter, r *http.Request) {
	var body payV2Body
	if !decodeBody(w, r, &body) {
		return
	}
	h.start(w, r, "payV2", body.Environment, func(s *orchestrator.Session, cb types.Callbacks) string {
		return s.PayV2(body.PayV2Request, cb)
	})
}

func (h *FlowHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var body hostedBody
	if !decodeBody(w, r, &body) {
		return
	}
	h.start(w, r, "checkout", body.Environment, func(s *orchestrator.Session, cb types.Callbacks) string {
		mount(s, body.Mount, body.Selector)
		return s.Checkout(body.HostedRequest, cb)
	})
}

func (h *FlowHandler) OpenCheckout(w http.ResponseWriter, r *http.Request) {
	var body openBody
	if !decodeBody(w, r, &body) {
		return
	}
	h.start(w, r, "checkout-surface", body.Environment, func(s *orchestrator.Session, cb types.Callbacks) string {
		return s.OpenCheckout(body.OpenRequest, cb)
	})
}

func (h *FlowHandler) start(w http.ResponseWriter, r *http.Request, flow string, env *page.Environment, run func(*orchestrator.Session, types.Callbacks) string) {
	sessionID, session, err := h.sessions.Resolve(w, r, env)
	if err != nil {
		log.Printf("Error resolving page session: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	token, expires, err := h.tokens.Issue(sessionID)
	if err != nil {
		log.Printf("[Session: %s] Error issuing relay token: %v", sessionID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	recorder := store.NewRecorder(h.flows, sessionID, flow)
	flowID := run(session, recorder.Callbacks())
	rec := recorder.Bind(flowID)
	log.Printf("[FlowID: %s] %s started for session %s (state %s)", flowID, flow, sessionID, rec.State)

	resp := FlowResponse{
		FlowID:     flowID,
		SessionID:  sessionID,
		RelayToken: token,
		ExpiresAt:  expires,
		Flow:       rec,
	}

	// Erros de validação são síncronos; os demais chegam pelo polling
	if rec.State == store.StateFailed && rec.Error != nil && rec.Error.Kind == "validation" {
		utils.SendJSON(w, StatusForKind(rec.Error.Kind), models.APIResponse{
			Status:  "error",
			Message: rec.Error.Message,
			Data:    resp,
		})
		return
	}

	utils.SendJSON(w, http.StatusAccepted, models.APIResponse{
		Status:  "success",
		Message: "Flow started",
		Data:    resp,
	})
}

func mount(s *orchestrator.Session, enabled bool, selector string) {
	if !enabled || selector == "" {
		return
	}
	if _, err := s.Doc.Mount(selector); err != nil {
		// o fluxo reporta o seletor como não encontrado
		log.Printf("Error mounting container %q: %v", selector, err)
	}
}

// GetFlow returns the recorded state of a flow of the caller's session.
func (h *FlowHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.ownedFlow(w, r)
	if !ok {
		return
	}
	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: rec})
}

// StartPayment tells a mounted hosted checkout to start paying.
func (h *FlowHandler) StartPayment(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.ownedFlow(w, r)
	if !ok {
		return
	}
	if rec.Flow != "checkout" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Flow is not a hosted checkout")
		return
	}
	if rec.Terminal() {
		utils.SendErrorResponse(w, http.StatusConflict, "Flow already finished")
		return
	}

	session, found := h.sessions.ByID(rec.SessionID)
	if !found {
		utils.SendErrorResponse(w, http.StatusNotFound, "Session not found")
		return
	}
	if err := session.StartPayment(); err != nil {
		log.Printf("[FlowID: %s] Error starting hosted payment: %v", rec.ID, err)
		utils.SendErrorResponse(w, StatusForKind(report.Kind(err)), errorMessage(err))
		return
	}
	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Message: "Payment started"})
}

func (h *FlowHandler) ownedFlow(w http.ResponseWriter, r *http.Request) (*store.FlowRecord, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Missing relay token")
		return nil, false
	}

	id := mux.Vars(r)["id"]
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.flows.GetFlow(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrFlowNotFound) {
			utils.SendErrorResponse(w, http.StatusNotFound, "Flow not found")
			return nil, false
		}
		log.Printf("[FlowID: %s] Error loading flow: %v", id, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to load flow")
		return nil, false
	}
	if rec.SessionID != claims.SessionID {
		utils.SendErrorResponse(w, http.StatusNotFound, "Flow not found")
		return nil, false
	}
	return rec, true
}

// StatusForKind maps an error kind to the HTTP status returned to the shim.
func StatusForKind(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "network", "provider", "unexpected_status":
		return http.StatusBadGateway
	case "timeout":
		return http.StatusGatewayTimeout
	case "cancellation":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	var te *types.Error
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Printf("Error decoding request body: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
