package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"EmberFM/cache"
	"EmberFM/config"
	"EmberFM/core/audio"
	"EmberFM/core/auth"
	"EmberFM/core/engagement"
	"EmberFM/core/fault"
	"EmberFM/core/lifecycle"
	"EmberFM/model"
	"EmberFM/repository"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	cfg       *config.Config
	gateway   *auth.Gateway
	manager   *lifecycle.Manager
	engine    *engagement.Engine
	trackRepo repository.TrackRepository
	catalog   *cache.CatalogCache
	clipper   *audio.PreviewClipper
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	cfg *config.Config,
	gateway *auth.Gateway,
	manager *lifecycle.Manager,
	engine *engagement.Engine,
	trackRepo repository.TrackRepository,
	catalog *cache.CatalogCache,
	clipper *audio.PreviewClipper,
) *APIHandler {
	return &APIHandler{
		cfg:       cfg,
		gateway:   gateway,
		manager:   manager,
		engine:    engine,
		trackRepo: trackRepo,
		catalog:   catalog,
		clipper:   clipper,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the fault taxonomy onto HTTP statuses. Validation is
// the user's problem, permission is terminal, transient invites a retry.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch fault.KindOf(err) {
	case fault.KindValidation:
		status = http.StatusBadRequest
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindPermission:
		status = http.StatusForbidden
	case fault.KindTransient:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type contextKey string

const principalContextKey contextKey = "principal"

// GetPrincipalFromContext extracts the authenticated principal.
func GetPrincipalFromContext(ctx context.Context) (*model.Principal, error) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok || p == nil {
		return nil, fmt.Errorf("principal not found in context")
	}
	return p, nil
}
