package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"a55pay-sdk/messaging"
	"a55pay-sdk/middleware"
	"a55pay-sdk/models"
	"a55pay-sdk/orchestrator"
	"a55pay-sdk/page"
	"a55pay-sdk/services/checkout"
	"a55pay-sdk/services/report"
	"a55pay-sdk/utils"
)

// RelayHandler receives what happens in the browser on behalf of a page
// session: frame messages, provider SDK callbacks and the user closing a
// surface. It also serves the page state the shim mirrors.
type RelayHandler struct {
	sessions *SessionManager
}

func NewRelayHandler(sessions *SessionManager) *RelayHandler {
	return &RelayHandler{sessions: sessions}
}

type messageBody struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

type providerEventBody struct {
	Provider string          `json:"provider"`
	Callback string          `json:"callback"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type closeBody struct {
	Surface orchestrator.SurfaceKind `json:"surface"`
}

// DocumentState is the page as the shim has to render it.
type DocumentState struct {
	Body        page.NodeSnapshot  `json:"body"`
	Head        page.NodeSnapshot  `json:"head"`
	Submissions []page.Submission  `json:"submissions"`
	Navigations []string           `json:"navigations"`
	Widget      WidgetState        `json:"widget"`
	Commands    []checkout.Command `json:"commands"`
}

type WidgetState struct {
	AuthenticateRequested bool   `json:"authenticate_requested"`
	Environment           string `json:"environment,omitempty"`
}

// Message publishes a cross-frame message on the page's bus.
func (h *RelayHandler) Message(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var body messageBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Origin == "" || len(body.Data) == 0 {
		utils.SendErrorResponse(w, http.StatusBadRequest, "origin and data are required")
		return
	}

	session.Bus.Publish(messaging.Message{Origin: body.Origin, Data: body.Data})
	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   map[string]int{"listeners": session.Bus.Listeners()},
	})
}

// ProviderEvent relays a callback of the authentication widget or of the
// hosted checkout SDK.
func (h *RelayHandler) ProviderEvent(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var body providerEventBody
	if !decodeBody(w, r, &body) {
		return
	}

	var err error
	switch strings.ToLower(body.Provider) {
	case "widget", "threeds", "3ds":
		err = session.Widget.Deliver(body.Callback, body.Payload)
	case "hosted", "checkout", "yuno":
		err = session.Provider.Deliver(body.Callback, body.Payload)
	default:
		utils.SendErrorResponse(w, http.StatusBadRequest, "Unknown provider")
		return
	}
	if err != nil {
		log.Printf("Error delivering %s callback %s: %v", body.Provider, body.Callback, err)
		utils.SendErrorResponse(w, StatusForKind(report.Kind(err)), errorMessage(err))
		return
	}
	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Message: "Delivered"})
}

// CloseSurface is the user closing the challenge or checkout surface.
func (h *RelayHandler) CloseSurface(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var body closeBody
	if !decodeBody(w, r, &body) {
		return
	}
	switch body.Surface {
	case orchestrator.SurfaceChallenge, orchestrator.SurfaceCheckout:
	default:
		utils.SendErrorResponse(w, http.StatusBadRequest, "Unknown surface")
		return
	}

	closed := session.CloseSurface(body.Surface)
	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   map[string]bool{"closed": closed},
	})
}

// Document returns the page snapshot and drains the queued SDK commands.
func (h *RelayHandler) Document(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	state := DocumentState{
		Body:        session.Doc.Snapshot(),
		Head:        session.Doc.HeadSnapshot(),
		Submissions: session.Doc.Submissions(),
		Navigations: session.Doc.Navigations(),
		Widget: WidgetState{
			AuthenticateRequested: session.Widget.AuthenticateRequested(),
			Environment:           session.Widget.Environment(),
		},
		Commands: session.Provider.DrainCommands(),
	}
	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: state})
}

func (h *RelayHandler) session(w http.ResponseWriter, r *http.Request) (*orchestrator.Session, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Missing relay token")
		return nil, false
	}
	session, ok := h.sessions.ByID(claims.SessionID)
	if !ok {
		utils.SendErrorResponse(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return session, true
}
