package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/asinehq/asine-console/internal/services"
	"github.com/asinehq/asine-console/pkg/response"
)

// ProvisioningHandler exposes the account registration endpoints: identity
// signup with profile reconciliation, payment customer creation, checkout
// session creation, and the orchestrated flow combining all three.
type ProvisioningHandler struct {
	provisioning *services.ProvisioningService
}

// NewProvisioningHandler constructs the handler.
func NewProvisioningHandler(provisioning *services.ProvisioningService) *ProvisioningHandler {
	return &ProvisioningHandler{provisioning: provisioning}
}

type createUserRequest struct {
	Email        string `json:"email" validate:"required"`
	Password     string `json:"password" validate:"required"`
	Name         string `json:"name" validate:"required"`
	PropertyName string `json:"property_name" validate:"required"`
}

type createCustomerRequest struct {
	Email        string `json:"email" validate:"required"`
	Name         string `json:"name" validate:"required"`
	PropertyName string `json:"property_name,omitempty"`
}

type createCheckoutRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	Email      string `json:"email" validate:"required"`
	CustomerID string `json:"customer_id" validate:"required"`
	Plan       string `json:"plan" validate:"required"`
}

type provisionRequest struct {
	createUserRequest
	Plan string `json:"plan" validate:"required"`
}

// CreateUser registers an identity account and reconciles its profile row.
func (h *ProvisioningHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	profile, err := h.provisioning.ProvisionAccount(requestContext(c), services.ProvisionInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		PropertyName: req.PropertyName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": profile})
}

// CreateCustomer creates a payment-processor customer for the account.
func (h *ProvisioningHandler) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	customer, err := h.provisioning.CreateCustomer(requestContext(c), services.CustomerInput{
		Email:        req.Email,
		Name:         req.Name,
		PropertyName: req.PropertyName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"customer_id": customer.ID})
}

// CreateCheckoutSession opens a subscription checkout for the account.
func (h *ProvisioningHandler) CreateCheckoutSession(c *gin.Context) {
	var req createCheckoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.provisioning.CreateCheckoutSession(requestContext(c), services.CheckoutInput{
		UserID:     req.UserID,
		Email:      req.Email,
		CustomerID: req.CustomerID,
		Plan:       req.Plan,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session_id": session.ID,
		"url":        session.URL,
	})
}

// Provision runs the full registration flow: account, profile, customer,
// checkout session.
func (h *ProvisioningHandler) Provision(c *gin.Context) {
	var req provisionRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.provisioning.Provision(requestContext(c), services.ProvisionInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		PropertyName: req.PropertyName,
	}, req.Plan)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":         result.Profile,
		"customer_id":  result.CustomerID,
		"session_id":   result.SessionID,
		"checkout_url": result.CheckoutURL,
	})
}
