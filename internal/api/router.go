package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/asinehq/asine-console/internal/app"
	"github.com/asinehq/asine-console/internal/handlers"
	"github.com/asinehq/asine-console/internal/identity"
	"github.com/asinehq/asine-console/internal/middleware"
	"github.com/asinehq/asine-console/internal/payments"
	"github.com/asinehq/asine-console/internal/services"
	"github.com/asinehq/asine-console/internal/session"
)

// Deps carries the wired services the router exposes over HTTP.
type Deps struct {
	DB           *gorm.DB
	Config       *app.Config
	Verifier     *identity.TokenVerifier
	Gateway      payments.Gateway
	Provisioning *services.ProvisioningService
	Verification *services.VerificationService
	Billing      *services.BillingService
	Invites      *services.InviteService
	Sessions     *session.Manager
}

// NewRouter builds the Gin engine, wires middleware and registers the
// account provisioning, webhook, verification, invitation and operator
// session routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Provisioning == nil || deps.Verification == nil || deps.Billing == nil {
		return nil, fmt.Errorf("core services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	rl := deps.Config.Server.RateLimit
	if rl.Enabled {
		r.Use(middleware.RateLimit(middleware.NewMemoryRateStore(), rl.Limit, rl.Window))
	}

	// Health endpoints (public)
	r.GET("/health", handlers.Health())
	r.GET("/ready", handlers.Ready(deps.DB))

	if deps.Config.Server.Metrics.Enabled {
		r.GET(deps.Config.Server.Metrics.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	provisioningHandler := handlers.NewProvisioningHandler(deps.Provisioning)
	webhookHandler := handlers.NewWebhookHandler(deps.Gateway, deps.Billing)
	verificationHandler := handlers.NewVerificationHandler(deps.Verification, deps.Billing)

	// Public account endpoints. These mirror the callable function names the
	// admin frontend already uses.
	functions := r.Group("/api/functions")
	{
		functions.POST("/create-user", provisioningHandler.CreateUser)
		functions.POST("/create-stripe-customer", provisioningHandler.CreateCustomer)
		functions.POST("/create-checkout-session", provisioningHandler.CreateCheckoutSession)
		functions.POST("/provision", provisioningHandler.Provision)
		functions.POST("/stripe-webhook", webhookHandler.HandleStripe)
		functions.GET("/verify-email", verificationHandler.Verify)
		functions.POST("/send-verification-email", verificationHandler.Resend)
	}

	// Operator session endpoints
	if deps.Sessions != nil {
		sessionHandler := handlers.NewSessionHandler(deps.Sessions)
		sess := r.Group("/api/session")
		{
			sess.POST("/login", sessionHandler.Login)
			sess.GET("", sessionHandler.Current)
			sess.POST("/refresh", sessionHandler.Refresh)
			sess.POST("/logout", sessionHandler.Logout)
		}
	}

	// Authenticated endpoints
	if deps.Invites != nil && deps.Verifier != nil {
		inviteHandler := handlers.NewInviteHandler(deps.Invites)
		authed := r.Group("/api/functions")
		authed.Use(middleware.Auth(deps.Verifier))
		authed.POST("/invite-pm", inviteHandler.Invite)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
