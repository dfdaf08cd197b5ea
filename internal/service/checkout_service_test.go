package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/qs3c/dieta_server/internal/model"
	"github.com/qs3c/dieta_server/internal/model/dto"
	"github.com/qs3c/dieta_server/internal/repository"
	"github.com/qs3c/dieta_server/internal/testutil"
)

type fakeSessions struct {
	params *stripe.CheckoutSessionParams
	err    error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func newCheckoutService(t *testing.T, frontendURL string) (*CheckoutService, *fakeSessions, *repository.ProfileRepository) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := testConfig()
	stripeCfg := cfg.Stripe
	stripeCfg.FrontendURL = frontendURL
	stripeCfg.PaymentMethodTypes = []string{"card"}

	sessions := &fakeSessions{}
	profiles := repository.NewProfileRepository(db)
	svc := NewCheckoutService(sessions, NewPlanTable(cfg.Stripe.Plans), profiles, &stripeCfg, zap.NewNop())
	return svc, sessions, profiles
}

func TestCheckoutService_Create(t *testing.T) {
	svc, sessions, profiles := newCheckoutService(t, "https://dieta.example.com/")
	ctx := context.Background()

	resp, err := svc.Create(ctx, &dto.CheckoutRequest{PriceID: "price_single", Email: " Buyer@Example.com "}, "")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", resp.ID)
	assert.Contains(t, resp.URL, "checkout.stripe.com")

	p := sessions.params
	require.NotNil(t, p)
	assert.Equal(t, string(stripe.CheckoutSessionModePayment), *p.Mode)
	assert.Equal(t, "buyer@example.com", *p.CustomerEmail)
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, "price_single", *p.LineItems[0].Price)
	assert.Equal(t, "https://dieta.example.com/?success=true&session_id={CHECKOUT_SESSION_ID}", *p.SuccessURL)
	assert.Equal(t, "https://dieta.example.com/?cancel=true", *p.CancelURL)
	assert.Equal(t, "price_single", p.Metadata["price_id"])

	stored, err := profiles.GetByEmail(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.ProfileStatusPending, stored.Status)
	assert.False(t, stored.Paid)
}

func TestCheckoutService_RecurringUsesSubscription(t *testing.T) {
	svc, sessions, _ := newCheckoutService(t, "")

	_, err := svc.Create(context.Background(), &dto.CheckoutRequest{PriceID: "price_monthly", Email: "a@b.com"}, "http://localhost:5173")
	require.NoError(t, err)
	assert.Equal(t, string(stripe.CheckoutSessionModeSubscription), *sessions.params.Mode)
	assert.Equal(t, "http://localhost:5173/?cancel=true", *sessions.params.CancelURL)
}

func TestCheckoutService_Errors(t *testing.T) {
	t.Run("unknown price", func(t *testing.T) {
		svc, sessions, _ := newCheckoutService(t, "https://dieta.example.com")
		_, err := svc.Create(context.Background(), &dto.CheckoutRequest{PriceID: "price_gift", Email: "a@b.com"}, "")
		assert.ErrorIs(t, err, ErrUnrecognizedPlan)
		assert.Nil(t, sessions.params)
	})

	t.Run("missing origin", func(t *testing.T) {
		svc, _, _ := newCheckoutService(t, "")
		_, err := svc.Create(context.Background(), &dto.CheckoutRequest{PriceID: "price_single", Email: "a@b.com"}, "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("stripe failure", func(t *testing.T) {
		svc, sessions, _ := newCheckoutService(t, "https://dieta.example.com")
		sessions.err = &stripe.Error{Msg: "No such price"}
		_, err := svc.Create(context.Background(), &dto.CheckoutRequest{PriceID: "price_single", Email: "a@b.com"}, "")
		assert.ErrorIs(t, err, ErrUpstream)
		assert.Equal(t, 500, HTTPStatus(err))
	})
}

func TestCheckoutService_KeepsExistingPayment(t *testing.T) {
	svc, _, profiles := newCheckoutService(t, "https://dieta.example.com")
	ctx := context.Background()
	require.NoError(t, profiles.RecordPayment(ctx, "a@b.com", model.PlanSingle, 1, ""))

	_, err := svc.Create(ctx, &dto.CheckoutRequest{PriceID: "price_single", Email: "a@b.com"}, "")
	require.NoError(t, err)

	stored, err := profiles.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, stored.Paid)
	assert.Equal(t, 1, stored.Credits)
}
