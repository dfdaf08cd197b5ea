package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/dieta_server/config"
	"github.com/qs3c/dieta_server/internal/pkg/pdf"
	"github.com/qs3c/dieta_server/internal/pkg/pubsub"
	"github.com/qs3c/dieta_server/internal/pkg/queue"
	"github.com/qs3c/dieta_server/internal/repository"
	"github.com/qs3c/dieta_server/internal/testutil"
)

const testWebhookSecret = "whsec_test_secret"

func testConfig() *config.Config {
	return &config.Config{
		Stripe: config.StripeConfig{
			WebhookSecret: testWebhookSecret,
			FrontendURL:   "https://dieta.example.com",
			Plans: []config.PlanConfig{
				{PriceID: "price_single", Plan: "single", Credits: 1},
				{PriceID: "price_monthly", Plan: "recurring", Credits: 4},
			},
		},
		Render:  config.RenderConfig{Title: "Personalized Nutrition Plan"},
		Profile: config.ProfileConfig{ReadyTimeoutMS: 0, PollIntervalMS: 10, DefaultMeals: 4},
	}
}

// fakeLLM 记录调用次数，onCall 在返回前执行，用于阻塞或取消调用方
type fakeLLM struct {
	calls  int32
	text   string
	err    error
	last   atomic.Value
	onCall func(n int)
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	n := atomic.AddInt32(&f.calls, 1)
	f.last.Store(prompt)
	if f.onCall != nil {
		f.onCall(int(n))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeLLM) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

func (f *fakeLLM) LastPrompt() string {
	s, _ := f.last.Load().(string)
	return s
}

// fakePublisher 内存存储
type fakePublisher struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{objects: map[string][]byte{}}
}

func (p *fakePublisher) ObjectKey(email string, at time.Time) string {
	return "diet-plans/" + email + "/" + at.Format("150405.000000000") + ".pdf"
}

func (p *fakePublisher) Publish(ctx context.Context, key string, data []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (p *fakePublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

type fixture struct {
	db        *gorm.DB
	cfg       *config.Config
	llm       *fakeLLM
	publisher *fakePublisher
	renderDir string
	profiles  *repository.ProfileRepository
	events    *repository.WebhookEventRepository
	audits    *repository.AuditRepository
	dead      *queue.Queue
	svc       *FulfillmentService
}

func newFixture(t *testing.T, opts ...func(*config.Config)) *fixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	renderDir := t.TempDir()
	renderer, err := pdf.NewRenderer(config.RenderConfig{TempDir: renderDir})
	require.NoError(t, err)

	f := &fixture{
		db:        db,
		cfg:       cfg,
		llm:       &fakeLLM{text: "## Breakfast\nOmelette with oats."},
		publisher: newFakePublisher(),
		renderDir: renderDir,
		profiles:  repository.NewProfileRepository(db),
		events:    repository.NewWebhookEventRepository(db),
		audits:    repository.NewAuditRepository(db),
		dead:      queue.NewQueue(rdb, "dead_letter_test"),
	}
	f.svc = NewFulfillmentService(FulfillmentDeps{
		Verifier:   NewVerifier(testWebhookSecret, NewPlanTable(cfg.Stripe.Plans)),
		Events:     f.events,
		Profiles:   f.profiles,
		Audits:     f.audits,
		Resolver:   NewResolver(f.profiles, cfg.Profile),
		Generator:  NewGenerator(f.llm),
		Renderer:   renderer,
		Publisher:  f.publisher,
		Progress:   pubsub.NewPublisher(rdb),
		DeadLetter: f.dead,
		Config:     cfg,
		Logger:     zap.NewNop(),
	})
	return f
}

// signedEvent 构造带签名的 checkout.session.completed 回调
func signedEvent(t *testing.T, eventID, eventType, email, priceID string) ([]byte, string) {
	t.Helper()

	session := map[string]interface{}{
		"id":             "cs_test_" + eventID,
		"object":         "checkout.session",
		"customer_email": email,
		"metadata":       map[string]string{"price_id": priceID},
	}
	payload, err := json.Marshal(map[string]interface{}{
		"id":     eventID,
		"object": "event",
		"type":   eventType,
		"data":   map[string]interface{}{"object": session},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

var errBoom = errors.New("boom")
