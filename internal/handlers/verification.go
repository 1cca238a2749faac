package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/asinehq/asine-console/internal/services"
	"github.com/asinehq/asine-console/pkg/response"
)

// VerificationHandler exposes the email verification endpoints.
type VerificationHandler struct {
	verification *services.VerificationService
	billing      *services.BillingService
}

// NewVerificationHandler constructs the handler.
func NewVerificationHandler(verification *services.VerificationService, billing *services.BillingService) *VerificationHandler {
	return &VerificationHandler{
		verification: verification,
		billing:      billing,
	}
}

// Verify consumes a verification token from the email link.
func (h *VerificationHandler) Verify(c *gin.Context) {
	result, err := h.verification.Verify(requestContext(c), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message":          result.Message,
		"already_verified": result.AlreadyVerified,
	})
}

type resendVerificationRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// Resend issues a fresh token and re-sends the activation email.
func (h *VerificationHandler) Resend(c *gin.Context) {
	var req resendVerificationRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.billing.SendVerification(requestContext(c), req.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Verification email sent"})
}
