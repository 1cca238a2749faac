package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/asinehq/asine-console/internal/database/testutil"
	"github.com/asinehq/asine-console/internal/identity"
	"github.com/asinehq/asine-console/internal/payments"
	"github.com/asinehq/asine-console/internal/services"
	"github.com/asinehq/asine-console/pkg/mail"
)

type fakeProvider struct {
	signUpErr     error
	createUserErr error
	nextID        string

	signUpCalls int
	createCalls int
	deletedIDs  []string
}

func (f *fakeProvider) accountID() string {
	if f.nextID != "" {
		return f.nextID
	}
	return uuid.NewString()
}

func (f *fakeProvider) SignUp(ctx context.Context, params identity.SignUpParams) (*identity.Account, error) {
	f.signUpCalls++
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &identity.Account{ID: f.accountID(), Email: params.Email, Metadata: params.Metadata}, nil
}

func (f *fakeProvider) CreateUser(ctx context.Context, params identity.CreateUserParams) (*identity.Account, error) {
	f.createCalls++
	if f.createUserErr != nil {
		return nil, f.createUserErr
	}
	return &identity.Account{
		ID:             f.accountID(),
		Email:          params.Email,
		EmailConfirmed: params.EmailConfirm,
		Metadata:       params.Metadata,
	}, nil
}

func (f *fakeProvider) DeleteUser(ctx context.Context, id string) error {
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *fakeProvider) ConfirmEmail(ctx context.Context, id string) error { return nil }

func (f *fakeProvider) GetUser(ctx context.Context, accessToken string) (*identity.Account, error) {
	return nil, identity.ErrInvalidCredentials
}

func (f *fakeProvider) GrantPassword(ctx context.Context, email, password string) (*identity.Token, error) {
	if password != "correct" {
		return nil, identity.ErrInvalidCredentials
	}
	return &identity.Token{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600}, nil
}

func (f *fakeProvider) RefreshToken(ctx context.Context, refreshToken string) (*identity.Token, error) {
	return &identity.Token{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 3600}, nil
}

func (f *fakeProvider) RevokeToken(ctx context.Context, accessToken string) error { return nil }

type fakeGateway struct {
	parseEvent *payments.Event
	parseErr   error
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, params payments.CreateCustomerParams) (*payments.Customer, error) {
	return &payments.Customer{ID: "cus_test", Email: params.Email, Name: params.Name}, nil
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, params payments.CreateCheckoutParams) (*payments.CheckoutSession, error) {
	return &payments.CheckoutSession{ID: "cs_test", URL: "https://checkout.example.com/cs_test"}, nil
}

func (f *fakeGateway) ParseEvent(payload []byte, signature string) (*payments.Event, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.parseEvent, nil
}

type fakeMailer struct {
	err  error
	sent []mail.Message
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type testEnv struct {
	db       *gorm.DB
	provider *fakeProvider
	gateway  *fakeGateway
	mailer   *fakeMailer

	provisioning *services.ProvisioningService
	verification *services.VerificationService
	billing      *services.BillingService
	invites      *services.InviteService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		db:       testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()),
		provider: &fakeProvider{},
		gateway:  &fakeGateway{},
		mailer:   &fakeMailer{},
	}

	var err error
	env.provisioning, err = services.NewProvisioningService(env.db, env.provider, env.gateway,
		services.WithRetryPolicy(services.RetryPolicy{MaxAttempts: 3}),
		services.WithSleepFunc(func(d time.Duration) {}))
	require.NoError(t, err)

	env.verification, err = services.NewVerificationService(env.db, env.provider)
	require.NoError(t, err)

	env.billing, err = services.NewBillingService(env.db, env.verification, env.mailer, "https://admin.asine.app")
	require.NoError(t, err)

	env.invites, err = services.NewInviteService(env.db, env.provider)
	require.NoError(t, err)

	return env
}

// doJSON performs a JSON request against the router and returns the recorder.
func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}
