package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/qs3c/dieta_server/config"
	"github.com/qs3c/dieta_server/internal/model"
	"github.com/qs3c/dieta_server/internal/model/dto"
	"github.com/qs3c/dieta_server/internal/repository"
)

// SessionCreator 支付会话创建，client.API.CheckoutSessions 满足该接口
type SessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type CheckoutService struct {
	sessions    SessionCreator
	plans       *PlanTable
	profiles    *repository.ProfileRepository
	frontendURL string
	methods     []string
	logger      *zap.Logger
}

func NewCheckoutService(
	sessions SessionCreator,
	plans *PlanTable,
	profiles *repository.ProfileRepository,
	cfg *config.StripeConfig,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		sessions:    sessions,
		plans:       plans,
		profiles:    profiles,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		methods:     cfg.PaymentMethodTypes,
		logger:      logger.Named("checkout"),
	}
}

// Create 创建支付会话。首次接触时建立待注册档案，不修改支付状态。
// origin 在未配置 frontend_url 时用于拼接回跳地址。
func (s *CheckoutService) Create(ctx context.Context, req *dto.CheckoutRequest, origin string) (*dto.CheckoutResponse, error) {
	email := model.NormalizeEmail(req.Email)
	if email == "" {
		return nil, &ValidationError{Missing: []string{"email"}}
	}
	plan, err := s.plans.Lookup(strings.TrimSpace(req.PriceID))
	if err != nil {
		return nil, err
	}

	base := s.frontendURL
	if base == "" {
		base = strings.TrimRight(origin, "/")
	}
	if base == "" {
		return nil, invalid("missing origin for redirect urls")
	}

	if err := s.profiles.EnsurePending(ctx, email); err != nil {
		return nil, fmt.Errorf("%w: create profile: %v", ErrUpstream, err)
	}

	mode := stripe.CheckoutSessionModePayment
	if plan.Type == model.PlanRecurring {
		mode = stripe.CheckoutSessionModeSubscription
	}
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(mode)),
		CustomerEmail: stripe.String(email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(base + "/?success=true&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(base + "/?cancel=true"),
	}
	if len(s.methods) > 0 {
		params.PaymentMethodTypes = stripe.StringSlice(s.methods)
	}
	params.Context = ctx
	params.AddMetadata("price_id", plan.PriceID)
	params.AddMetadata("email", email)

	sess, err := s.sessions.New(params)
	if err != nil {
		s.logger.Error("checkout session failed", zap.String("email", email), zap.String("price_id", plan.PriceID), zap.Error(err))
		return nil, fmt.Errorf("%w: checkout session: %v", ErrUpstream, err)
	}
	return &dto.CheckoutResponse{ID: sess.ID, URL: sess.URL}, nil
}
