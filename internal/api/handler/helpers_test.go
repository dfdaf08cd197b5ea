package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/qs3c/dieta_server/config"
	"github.com/qs3c/dieta_server/internal/api/middleware"
	"github.com/qs3c/dieta_server/internal/pkg/jwt"
	"github.com/qs3c/dieta_server/internal/pkg/llm"
	"github.com/qs3c/dieta_server/internal/pkg/oss"
	"github.com/qs3c/dieta_server/internal/pkg/pdf"
	"github.com/qs3c/dieta_server/internal/pkg/queue"
	"github.com/qs3c/dieta_server/internal/repository"
	"github.com/qs3c/dieta_server/internal/service"
	"github.com/qs3c/dieta_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testWebhookSecret = "whsec_handler_test"
	testJWTSecret     = "handler-test-secret-0123456789abcdef"
)

type testEnv struct {
	db       *gorm.DB
	store    *oss.LocalStore
	profiles *repository.ProfileRepository
	llmCalls *int32
	llmFail  *atomic.Bool
	router   *gin.Engine
	sessions *stubSessions
	logs     *observer.ObservedLogs
}

type stubSessions struct {
	last *stripe.CheckoutSessionParams
}

func (s *stubSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.last = params
	return &stripe.CheckoutSession{ID: "cs_test_handler", URL: "https://checkout.stripe.com/c/pay/cs_test_handler"}, nil
}

// newTestEnv 组装真实的服务层：sqlite、miniredis、本地存储，以及模拟的文本生成接口
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	var calls int32
	var fail atomic.Bool
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"## Breakfast\nEggs and oats."}}]}`))
	}))
	t.Cleanup(llmServer.Close)

	cfg := &config.Config{
		Stripe: config.StripeConfig{
			WebhookSecret: testWebhookSecret,
			FrontendURL:   "https://dieta.example.com",
			Plans: []config.PlanConfig{
				{PriceID: "price_single", Plan: "single", Credits: 1},
				{PriceID: "price_monthly", Plan: "recurring", Credits: 4},
			},
		},
		LLM:     config.LLMConfig{BaseURL: llmServer.URL, APIKey: "sk-test", Model: "test-model"},
		Render:  config.RenderConfig{Title: "Personalized Nutrition Plan", TempDir: t.TempDir()},
		Profile: config.ProfileConfig{DefaultMeals: 4},
		JWT:     config.JWTConfig{Secret: testJWTSecret, ExpireHours: 1},
	}

	renderer, err := pdf.NewRenderer(cfg.Render)
	require.NoError(t, err)

	store := oss.NewLocalStore(t.TempDir(), "diet-plans")
	profiles := repository.NewProfileRepository(db)
	plans := service.NewPlanTable(cfg.Stripe.Plans)
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	fulfillment := service.NewFulfillmentService(service.FulfillmentDeps{
		Verifier:   service.NewVerifier(cfg.Stripe.WebhookSecret, plans),
		Events:     repository.NewWebhookEventRepository(db),
		Profiles:   profiles,
		Audits:     repository.NewAuditRepository(db),
		Resolver:   service.NewResolver(profiles, cfg.Profile),
		Generator:  service.NewGenerator(llm.NewClient(cfg.LLM)),
		Renderer:   renderer,
		Publisher:  store,
		DeadLetter: queue.NewQueue(rdb, "dead_letter_handler_test"),
		Config:     cfg,
		Logger:     logger,
	})
	sessions := &stubSessions{}

	router := gin.New()
	router.POST("/api/v1/webhook/stripe", NewWebhookHandler(fulfillment, logger).Stripe)
	router.POST("/api/v1/checkout", NewCheckoutHandler(service.NewCheckoutService(sessions, plans, profiles, &cfg.Stripe, logger)).Create)
	router.POST("/api/v1/profile", NewProfileHandler(service.NewProfileService(profiles)).Register)
	router.POST("/api/v1/generate", middleware.ServiceAuth(cfg.JWT.Secret), NewGenerateHandler(fulfillment, logger).Generate)

	return &testEnv{
		db:       db,
		store:    store,
		profiles: profiles,
		llmCalls: &calls,
		llmFail:  &fail,
		router:   router,
		sessions: sessions,
		logs:     logs,
	}
}

// serviceToken 前端服务调用生成接口使用的令牌
func serviceToken(t *testing.T) map[string]string {
	t.Helper()
	token, err := jwt.GenerateToken("storefront", testJWTSecret, 1)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func (e *testEnv) calls() int {
	return int(atomic.LoadInt32(e.llmCalls))
}

func (e *testEnv) postJSON(path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	return e.post(path, raw, headers)
}

func (e *testEnv) post(path string, raw []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// checkoutEvent 构造带签名的支付完成回调
func checkoutEvent(t *testing.T, eventID, email, priceID string) ([]byte, string) {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"id":     eventID,
		"object": "event",
		"type":   "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":     "cs_test_" + eventID,
				"object": "checkout.session",
				"customer_details": map[string]interface{}{
					"email": email,
				},
				"metadata": map[string]string{"price_id": priceID},
			},
		},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}
