package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"EmberFM/core/fault"
	"EmberFM/logger"
	"EmberFM/model"
	"EmberFM/repository"
)

// SignUpRequest represents the registration request body
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// SignInRequest represents the sign-in request body
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string           `json:"token"`
	Principal *model.Principal `json:"principal"`
}

// SignUpHandler handles user registration requests
func (h *APIHandler) SignUpHandler(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("[SignUp] 解析请求体失败", logger.ErrorField(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	principal, token, err := h.gateway.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			logger.Warn("[SignUp] 邮箱已存在", logger.String("email", req.Email))
			http.Error(w, "Email already exists", http.StatusConflict)
			return
		}
		writeError(w, err)
		return
	}

	// 注册即登录，顺手把生命周期控制器拉起来
	h.manager.Get(principal)

	writeJSON(w, http.StatusCreated, authResponse{Token: token, Principal: principal})
}

// SignInHandler handles sign-in requests
func (h *APIHandler) SignInHandler(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("[SignIn] 解析请求体失败", logger.ErrorField(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	principal, token, err := h.gateway.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if fault.IsKind(err, fault.KindValidation) {
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		writeError(w, err)
		return
	}

	h.manager.Get(principal)

	writeJSON(w, http.StatusOK, authResponse{Token: token, Principal: principal})
}

// SignOutHandler drops the session: the gateway emits a nil principal,
// the controller transitions to unauthenticated and is pruned.
func (h *APIHandler) SignOutHandler(w http.ResponseWriter, r *http.Request) {
	principal, err := GetPrincipalFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	h.gateway.SignOut(principal.ID)
	h.manager.Remove(principal.ID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// AuthMiddleware is a middleware function that checks for a valid JWT token
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		principal, err := h.gateway.Authenticate(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
