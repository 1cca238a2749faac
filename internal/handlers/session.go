package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/asinehq/asine-console/internal/session"
	apperrors "github.com/asinehq/asine-console/pkg/errors"
	"github.com/asinehq/asine-console/pkg/response"
)

// SessionHandler exposes the operator sign-in lifecycle.
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges operator credentials for a session.
func (h *SessionHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	sess, err := h.sessions.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, sess)
}

// Current returns the active session, refreshing the access token if needed.
func (h *SessionHandler) Current(c *gin.Context) {
	sess, err := h.sessions.Current(requestContext(c))
	if err != nil {
		response.Error(c, sessionError(err))
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// Refresh forces a token rotation.
func (h *SessionHandler) Refresh(c *gin.Context) {
	sess, err := h.sessions.Refresh(requestContext(c))
	if err != nil {
		response.Error(c, sessionError(err))
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// Logout revokes the session.
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(requestContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Signed out"})
}

func sessionError(err error) error {
	if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrSessionExpired) {
		return apperrors.New("SESSION_EXPIRED", "Please sign in again", http.StatusUnauthorized)
	}
	return err
}
