package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/asinehq/asine-console/internal/middleware"
	"github.com/asinehq/asine-console/internal/services"
	apperrors "github.com/asinehq/asine-console/pkg/errors"
	"github.com/asinehq/asine-console/pkg/response"
)

// InviteHandler exposes property-manager invitations.
type InviteHandler struct {
	invites *services.InviteService
}

// NewInviteHandler constructs the handler.
func NewInviteHandler(invites *services.InviteService) *InviteHandler {
	return &InviteHandler{invites: invites}
}

type inviteRequest struct {
	Email string `json:"email" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Role  string `json:"role" validate:"required"`
}

// Invite creates an unconfirmed account for the invitee. The caller must be
// authenticated; the inviter id comes from their access token.
func (h *InviteHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	inviterID := strings.TrimSpace(c.GetString(middleware.CtxUserIDKey))
	if inviterID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	invitee, err := h.invites.Invite(requestContext(c), inviterID, services.InviteInput{
		Email: req.Email,
		Name:  req.Name,
		Role:  req.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": invitee})
}
