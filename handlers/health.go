package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"time"

	"a55pay-sdk/utils"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks    map[string]HealthCheck
	sessions  *SessionManager
	startTime time.Time
}

func NewHealthHandler(sessions *SessionManager, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, sessions: sessions, startTime: time.Now()}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Time      string            `json:"time"`
	Checks    map[string]string `json:"checks"`
	Sessions  int               `json:"sessions"`
	Uptime    string            `json:"uptime"`
	GoVersion string            `json:"go_version"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := healthResponse{
		Status:    "ok",
		Time:      time.Now().Format(time.RFC3339),
		Checks:    map[string]string{},
		Uptime:    fmt.Sprintf("%v", time.Since(h.startTime)),
		GoVersion: runtime.Version(),
	}
	if h.sessions != nil {
		health.Sessions = h.sessions.Count()
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		checkCtx, checkCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		err := h.checks[name](checkCtx)
		checkCancel()
		if err != nil {
			health.Status = "degraded"
			health.Checks[name] = "error"
			continue
		}
		health.Checks[name] = "connected"
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	utils.SendJSON(w, status, health)
}
