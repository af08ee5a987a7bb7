package server

import (
	"encoding/json"
	"net/http"

	"EmberFM/core/lifecycle"
	"EmberFM/logger"
	"EmberFM/model"
)

type lifecycleSnapshot struct {
	State     string           `json:"state"`
	Principal *model.Principal `json:"principal,omitempty"`
	Profile   *model.Profile   `json:"profile,omitempty"`
	FailKind  string           `json:"failKind,omitempty"`
}

func (h *APIHandler) snapshot(ctrl *lifecycle.Controller) lifecycleSnapshot {
	state := ctrl.State()
	snap := lifecycleSnapshot{
		State:     state.String(),
		Principal: ctrl.Principal(),
		Profile:   ctrl.Profile(),
	}
	if state == lifecycle.StateAuthError {
		snap.FailKind = ctrl.FailKind().String()
	}
	return snap
}

// LifecycleStateHandler returns the derived lifecycle state; the UI
// renders exactly one screen per state.
func (h *APIHandler) LifecycleStateHandler(w http.ResponseWriter, r *http.Request) {
	principal, err := GetPrincipalFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	ctrl := h.manager.Get(principal)
	writeJSON(w, http.StatusOK, h.snapshot(ctrl))
}

// CompleteSetupHandler writes the mandatory setup form.
func (h *APIHandler) CompleteSetupHandler(w http.ResponseWriter, r *http.Request) {
	principal, err := GetPrincipalFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req lifecycle.SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctrl := h.manager.Get(principal)
	if err := ctrl.CompleteSetup(r.Context(), req); err != nil {
		logger.Warn("[Lifecycle] 完成设置失败",
			logger.String("principalId", principal.ID),
			logger.ErrorField(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot(ctrl))
}

// SkipSetupHandler lets a user defer setup; the flag is still raised.
func (h *APIHandler) SkipSetupHandler(w http.ResponseWriter, r *http.Request) {
	principal, err := GetPrincipalFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctrl := h.manager.Get(principal)
	if err := ctrl.SkipSetup(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot(ctrl))
}

// CompleteOnboardingHandler finishes the tutorial. This never fails the
// request outright: the controller degrades to local storage if needed.
func (h *APIHandler) CompleteOnboardingHandler(w http.ResponseWriter, r *http.Request) {
	principal, err := GetPrincipalFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctrl := h.manager.Get(principal)
	if err := ctrl.CompleteOnboarding(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot(ctrl))
}

// ResetOnboardingHandler replays the tutorial on explicit request.
func (h *APIHandler) ResetOnboardingHandler(w http.ResponseWriter, r *http.Request) {
	principal, err := GetPrincipalFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctrl := h.manager.Get(principal)
	if err := ctrl.ResetOnboarding(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot(ctrl))
}

// RetryLifecycleHandler restarts the profile fetch after an auth error.
func (h *APIHandler) RetryLifecycleHandler(w http.ResponseWriter, r *http.Request) {
	principal, err := GetPrincipalFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctrl := h.manager.Get(principal)
	ctrl.Retry()
	writeJSON(w, http.StatusOK, h.snapshot(ctrl))
}
