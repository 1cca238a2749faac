package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asinehq/asine-console/internal/identity"
	"github.com/asinehq/asine-console/internal/payments"
	"github.com/asinehq/asine-console/pkg/mail"
)

type fakeProvider struct {
	mu sync.Mutex

	signUpErr     error
	createUserErr error
	confirmErr    error
	deleteErr     error

	nextID string

	signUpCalls  int
	createCalls  int
	deletedIDs   []string
	confirmedIDs []string
}

func (f *fakeProvider) accountID() string {
	if f.nextID != "" {
		return f.nextID
	}
	return uuid.NewString()
}

func (f *fakeProvider) SignUp(ctx context.Context, params identity.SignUpParams) (*identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUpCalls++
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &identity.Account{
		ID:       f.accountID(),
		Email:    params.Email,
		Metadata: params.Metadata,
	}, nil
}

func (f *fakeProvider) CreateUser(ctx context.Context, params identity.CreateUserParams) (*identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

func (f *fakeProvider) ConfirmEmail(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmedIDs = append(f.confirmedIDs, id)
	return f.confirmErr
}

func (f *fakeProvider) GetUser(ctx context.Context, accessToken string) (*identity.Account, error) {
	return nil, identity.ErrInvalidCredentials
}

func (f *fakeProvider) GrantPassword(ctx context.Context, email, password string) (*identity.Token, error) {
	return nil, identity.ErrInvalidCredentials
}

func (f *fakeProvider) RefreshToken(ctx context.Context, refreshToken string) (*identity.Token, error) {
	return nil, identity.ErrInvalidCredentials
}

func (f *fakeProvider) RevokeToken(ctx context.Context, accessToken string) error {
	return nil
}

type fakeGateway struct {
	mu sync.Mutex

	customerErr error
	sessionErr  error

	customerCalls int
	sessionCalls  int

	lastCheckout payments.CreateCheckoutParams
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, params payments.CreateCustomerParams) (*payments.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerCalls++
	if f.customerErr != nil {
		return nil, f.customerErr
	}
	return &payments.Customer{ID: "cus_test", Email: params.Email, Name: params.Name}, nil
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, params payments.CreateCheckoutParams) (*payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls++
	f.lastCheckout = params
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &payments.CheckoutSession{ID: "cs_test", URL: "https://checkout.example.com/cs_test"}, nil
}

func (f *fakeGateway) ParseEvent(payload []byte, signature string) (*payments.Event, error) {
	return nil, payments.ErrInvalidSignature
}

type fakeMailer struct {
	mu sync.Mutex

	err  error
	sent []mail.Message
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func noSleep(_ time.Duration) {}
