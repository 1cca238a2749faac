package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/asinehq/asine-console/internal/middleware"
)

func newInviteRouter(env *testEnv, inviterID string) *gin.Engine {
	r := gin.New()
	if inviterID != "" {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.CtxUserIDKey, inviterID)
			c.Next()
		})
	}
	handler := NewInviteHandler(env.invites)
	r.POST("/api/functions/invite-pm", handler.Invite)
	return r
}

func TestInviteEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.provider.nextID = "acct-invited"
	r := newInviteRouter(env, "admin-1")

	w := doJSON(r, http.MethodPost, "/api/functions/invite-pm",
		`{"email":"invitee@example.com","name":"Robin PM","role":"pm"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "acct-invited")
	require.Equal(t, 1, env.provider.createCalls)
}

func TestInviteEndpointRequiresAuthenticatedCaller(t *testing.T) {
	env := newTestEnv(t)
	r := newInviteRouter(env, "")

	w := doJSON(r, http.MethodPost, "/api/functions/invite-pm",
		`{"email":"invitee@example.com","name":"Robin PM","role":"pm"}`)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, 0, env.provider.createCalls)
}

func TestInviteEndpointValidatesPayload(t *testing.T) {
	env := newTestEnv(t)
	r := newInviteRouter(env, "admin-1")

	w := doJSON(r, http.MethodPost, "/api/functions/invite-pm", `{"email":"invitee@example.com"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
