package management

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/CaioWing/clientforge/internal/api/middleware"
	"github.com/CaioWing/clientforge/internal/api/response"
	"github.com/CaioWing/clientforge/internal/auth"
	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/service"
)

type AuthHandler struct {
	jwtMgr   *auth.JWTManager
	creds    *auth.Credentials
	auditSvc *service.AuditService
}

func NewAuthHandler(jwtMgr *auth.JWTManager, creds *auth.Credentials, auditSvc *service.AuditService) *AuthHandler {
	return &AuthHandler{jwtMgr: jwtMgr, creds: creds, auditSvc: auditSvc}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.creds.Verify(req.Email, req.Password) {
		response.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !h.issue(w, req.Email) {
		return
	}
	h.auditSvc.Log(r.Context(), &domain.AuditEntry{
		Actor:     req.Email,
		ActorType: domain.ActorTypeManagement,
		Action:    service.ActionLogin,
		Resource:  "auth",
		IPAddress: r.RemoteAddr,
	})
}

// Refresh generates a new JWT token for an already authenticated admin.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	email, ok := r.Context().Value(middleware.AdminEmailKey).(string)
	if !ok || email == "" {
		response.Error(w, http.StatusUnauthorized, "invalid token")
		return
	}
	h.issue(w, email)
}

func (h *AuthHandler) issue(w http.ResponseWriter, email string) bool {
	token, expiresAt, err := h.jwtMgr.Generate(email)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to generate token")
		return false
	}

	response.JSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
	return true
}
