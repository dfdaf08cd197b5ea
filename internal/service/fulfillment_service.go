package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/dieta_server/config"
	"github.com/qs3c/dieta_server/internal/model"
	"github.com/qs3c/dieta_server/internal/model/dto"
	"github.com/qs3c/dieta_server/internal/pkg/pdf"
	"github.com/qs3c/dieta_server/internal/pkg/pubsub"
	"github.com/qs3c/dieta_server/internal/pkg/queue"
	"github.com/qs3c/dieta_server/internal/repository"
)

// State 履约状态
type State string

const (
	StateVerified          State = pubsub.StepVerified
	StatePaidRecorded      State = pubsub.StepPaidRecorded
	StateProfileResolved   State = pubsub.StepProfileResolved
	StateGenerated         State = pubsub.StepGenerated
	StatePublished         State = pubsub.StepPublished
	StateComplete          State = pubsub.StepComplete
	StateRejected          State = "rejected"
	StateFailed            State = "failed"
	StateAwaitingUserInput State = "awaiting_user_input"
	StateIgnored           State = "ignored"
	StateDuplicate         State = "duplicate"
)

// Publisher 文档存储，返回当前访问链接（签名或公开链接）
type Publisher interface {
	ObjectKey(email string, at time.Time) string
	Publish(ctx context.Context, objectKey string, data []byte) (string, error)
}

// Outcome 一次履约的结果
type Outcome struct {
	RunID   string `json:"run_id,omitempty"`
	EventID string `json:"event_id,omitempty"`
	Email   string `json:"email,omitempty"`
	State   State  `json:"state"`
	Link    string `json:"url,omitempty"`
	Text    string `json:"-"`
}

// FulfillmentDeps 编排器依赖，进度发布和死信队列可以为 nil
type FulfillmentDeps struct {
	Verifier   *Verifier
	Events     *repository.WebhookEventRepository
	Profiles   *repository.ProfileRepository
	Audits     *repository.AuditRepository
	Resolver   *Resolver
	Generator  *Generator
	Renderer   *pdf.Renderer
	Publisher  Publisher
	Progress   *pubsub.Publisher
	DeadLetter *queue.Queue
	Config     *config.Config
	Logger     *zap.Logger
}

type FulfillmentService struct {
	verifier   *Verifier
	events     *repository.WebhookEventRepository
	profiles   *repository.ProfileRepository
	audits     *repository.AuditRepository
	resolver   *Resolver
	generator  *Generator
	renderer   *pdf.Renderer
	publisher  Publisher
	progress   *pubsub.Publisher
	deadLetter *queue.Queue
	title      string
	staleAfter time.Duration
	genTimeout time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewFulfillmentService(d FulfillmentDeps) *FulfillmentService {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FulfillmentService{
		verifier:   d.Verifier,
		events:     d.Events,
		profiles:   d.Profiles,
		audits:     d.Audits,
		resolver:   d.Resolver,
		generator:  d.Generator,
		renderer:   d.Renderer,
		publisher:  d.Publisher,
		progress:   d.Progress,
		deadLetter: d.DeadLetter,
		title:      d.Config.Render.Title,
		staleAfter: d.Config.Profile.ClaimStaleAfter(),
		genTimeout: d.Config.LLM.Timeout() + d.Config.Profile.ReadyTimeout() + 30*time.Second,
		logger:     logger.Named("fulfillment"),
		now:        time.Now,
	}
}

// run 单次履约的上下文，负责日志、审计和进度
type run struct {
	id      string
	eventID string
	email   string
	paid    bool
	state   State
}

func (s *FulfillmentService) newRun(eventID, email string) *run {
	return &run{id: ksuid.New().String(), eventID: eventID, email: email}
}

func (r *run) fields(extra ...zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("run_id", r.id),
		zap.String("event_id", r.eventID),
		zap.String("email", r.email),
	}, extra...)
}

func (r *run) outcome(state State) *Outcome {
	return &Outcome{RunID: r.id, EventID: r.eventID, Email: r.email, State: state}
}

func (s *FulfillmentService) advance(ctx context.Context, r *run, state State, detail string) {
	r.state = state
	s.logger.Info("fulfillment stage", r.fields(zap.String("stage", string(state)))...)
	s.audit(ctx, r, state, "ok", detail)

	if s.progress != nil {
		err := s.progress.PublishProgress(ctx, &pubsub.ProgressMessage{
			RunID:   r.id,
			EventID: r.eventID,
			Email:   r.email,
			Step:    string(state),
		})
		if err != nil {
			s.logger.Warn("publish progress failed", r.fields(zap.Error(err))...)
		}
	}
}

// fail 记录终止状态。支付已入账或属于上游故障时写入死信队列，供人工重放；
// 前置条件不满足（rejected）的运行不入队。
func (s *FulfillmentService) fail(ctx context.Context, r *run, state State, err error) *Outcome {
	stage := string(r.state)
	fields := r.fields(zap.String("stage", stage), zap.String("state", string(state)), zap.Error(err))
	if state == StateFailed {
		s.logger.Error("fulfillment failed", fields...)
	} else {
		s.logger.Warn("fulfillment stopped", fields...)
	}
	s.audit(ctx, r, state, "failed", err.Error())

	if s.progress != nil {
		_ = s.progress.PublishProgress(ctx, &pubsub.ProgressMessage{
			RunID:   r.id,
			EventID: r.eventID,
			Email:   r.email,
			Step:    string(state),
			Error:   err.Error(),
		})
	}

	if s.deadLetter != nil && (state == StateFailed || (r.paid && state != StateRejected)) {
		pushErr := s.deadLetter.Push(ctx, &queue.FulfillmentMessage{
			EventID:  r.eventID,
			RunID:    r.id,
			Email:    r.email,
			Stage:    stage,
			Error:    err.Error(),
			FailedAt: s.now(),
		})
		if pushErr != nil {
			s.logger.Error("dead letter push failed", r.fields(zap.Error(pushErr))...)
		}
	}
	return r.outcome(state)
}

// audit 审计日志写入失败只记录日志
func (s *FulfillmentService) audit(ctx context.Context, r *run, state State, status, detail string) {
	if s.audits == nil || r.email == "" {
		return
	}
	err := s.audits.Append(ctx, &model.FulfillmentAudit{
		Email:   r.email,
		RunID:   r.id,
		EventID: r.eventID,
		Stage:   string(state),
		Status:  status,
		Detail:  detail,
	})
	if err != nil {
		s.logger.Warn("audit append failed", r.fields(zap.Error(err))...)
	}
}

// HandleWebhook 处理支付回调：验签、认领事件、记录支付，然后尽力生成方案。
// 返回 error 时调用方应以对应状态码拒绝；生成阶段的失败只体现在 Outcome.State 中，
// 支付确认不受影响。
func (s *FulfillmentService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (*Outcome, error) {
	ev, err := s.verifier.Verify(payload, sigHeader)
	if err != nil {
		s.logger.Warn("webhook rejected", zap.Error(err))
		return &Outcome{State: StateRejected}, err
	}
	if ev.Ignored {
		s.logger.Debug("webhook ignored", zap.String("event_id", ev.EventID), zap.String("type", ev.Type))
		return &Outcome{EventID: ev.EventID, State: StateIgnored}, nil
	}

	r := s.newRun(ev.EventID, ev.Email)
	s.advance(ctx, r, StateVerified, fmt.Sprintf("price=%s plan=%s", ev.PriceID, ev.Plan.Type))

	// 认领和入账在同一事务中提交，入账失败时不留下认领记录，Stripe 重投可以再次处理
	var paymentErr error
	claimed, record, err := s.events.ClaimWith(ctx, &model.WebhookEvent{
		EventID:   ev.EventID,
		EventType: ev.Type,
		Email:     ev.Email,
		PriceID:   ev.PriceID,
	}, s.staleAfter, func(tx *gorm.DB, current *model.WebhookEvent) error {
		// 重新认领的事件若已入账则跳过，避免重复发放额度
		if current.PaymentRecorded {
			return nil
		}
		if err := s.profiles.WithTx(tx).RecordPayment(ctx, ev.Email, ev.Plan.Type, ev.Plan.Credits, ev.EventID); err != nil {
			paymentErr = err
			return err
		}
		current.PaymentRecorded = true
		return nil
	})
	if paymentErr != nil {
		err = fmt.Errorf("%w: record payment: %v", ErrPersistence, paymentErr)
		return s.fail(ctx, r, StateFailed, err), err
	}
	if err != nil {
		err = fmt.Errorf("%w: claim event: %v", ErrPersistence, err)
		return s.fail(ctx, r, StateFailed, err), err
	}
	if !claimed {
		s.logger.Info("duplicate webhook delivery", r.fields(zap.String("status", record.Status))...)
		return r.outcome(StateDuplicate), nil
	}
	r.paid = true
	s.advance(ctx, r, StatePaidRecorded, fmt.Sprintf("plan=%s credits=%d", ev.Plan.Type, ev.Plan.Credits))

	// 支付已确认，后续阶段不随回调连接断开而取消
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.genTimeout)
	defer cancel()

	out, genErr := s.generate(genCtx, r, dto.ProfileInput{Email: ev.Email})
	if genErr != nil {
		s.markFailed(genCtx, r, genErr)
		return out, nil
	}
	if err := s.events.MarkCompleted(genCtx, ev.EventID, string(StateComplete)); err != nil {
		s.logger.Warn("mark event completed failed", r.fields(zap.Error(err))...)
	}
	return out, nil
}

// Generate 生成触发入口：要求档案已支付，单次套餐还需有剩余额度
func (s *FulfillmentService) Generate(ctx context.Context, in dto.ProfileInput) (*Outcome, error) {
	r := s.newRun("", model.NormalizeEmail(in.Email))
	return s.generate(ctx, r, in)
}

// Reprocess 人工重放死信队列中的任务，成功后把关联事件标记为完成
func (s *FulfillmentService) Reprocess(ctx context.Context, msg *queue.FulfillmentMessage) (*Outcome, error) {
	r := s.newRun(msg.EventID, model.NormalizeEmail(msg.Email))
	// 死信来自已入账或失败的运行，再次失败时重新入队
	r.paid = true
	out, err := s.generate(ctx, r, dto.ProfileInput{Email: msg.Email})
	if err != nil {
		return out, err
	}
	if msg.EventID != "" {
		if err := s.events.MarkCompleted(ctx, msg.EventID, string(StateComplete)); err != nil {
			s.logger.Warn("mark event completed failed", r.fields(zap.Error(err))...)
		}
	}
	return out, nil
}

func (s *FulfillmentService) generate(ctx context.Context, r *run, in dto.ProfileInput) (_ *Outcome, err error) {
	profile, stored, err := s.resolver.Resolve(ctx, in)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return s.fail(ctx, r, StateAwaitingUserInput, err), err
		}
		return s.fail(ctx, r, StateFailed, err), err
	}
	if stored == nil || !stored.Paid {
		err := invalid("profile not paid")
		return s.fail(ctx, r, StateRejected, err), err
	}
	if stored.PlanType == model.PlanSingle {
		reserved, rerr := s.profiles.ReserveCredit(ctx, r.email)
		if rerr != nil {
			err = fmt.Errorf("%w: reserve credit: %v", ErrPersistence, rerr)
			return s.fail(ctx, r, StateFailed, err), err
		}
		if !reserved {
			err = invalid("no credits left")
			return s.fail(ctx, r, StateRejected, err), err
		}
		// 预扣的额度在发布失败时归还
		defer func() {
			if err == nil {
				return
			}
			if rerr := s.profiles.RefundCredit(context.WithoutCancel(ctx), r.email); rerr != nil {
				s.logger.Error("refund credit failed", r.fields(zap.Error(rerr))...)
			}
		}()
	}
	s.advance(ctx, r, StateProfileResolved, fmt.Sprintf("meals=%d kcal=%d", profile.Meals, profile.Calories))

	content, err := s.generator.Generate(ctx, profile)
	if err != nil {
		return s.fail(ctx, r, StateFailed, err), err
	}
	s.advance(ctx, r, StateGenerated, fmt.Sprintf("chars=%d", len(content.Text)))

	link, err := s.publish(ctx, r, content.Text)
	if err != nil {
		return s.fail(ctx, r, StateFailed, err), err
	}

	at := s.now()
	if serr := s.profiles.SaveArtifact(ctx, r.email, link, at); serr != nil {
		err = fmt.Errorf("%w: save artifact: %v", ErrUpstream, serr)
		return s.fail(ctx, r, StateFailed, err), err
	}
	s.advance(ctx, r, StateComplete, "")

	out := r.outcome(StateComplete)
	out.Link = link
	out.Text = content.Text
	return out, nil
}

// publish 渲染并上传，临时文件在所有路径上都会删除
func (s *FulfillmentService) publish(ctx context.Context, r *run, text string) (string, error) {
	doc, err := s.renderer.Render(s.title, text)
	if err != nil {
		return "", fmt.Errorf("%w: render: %v", ErrUpstream, err)
	}
	defer func() {
		if err := doc.Remove(); err != nil {
			s.logger.Warn("remove rendered document failed", r.fields(zap.String("path", doc.Path), zap.Error(err))...)
		}
	}()

	data, err := doc.Bytes()
	if err != nil {
		return "", fmt.Errorf("%w: read rendered document: %v", ErrUpstream, err)
	}

	key := s.publisher.ObjectKey(r.email, s.now())
	link, err := s.publisher.Publish(ctx, key, data)
	if err != nil {
		return "", fmt.Errorf("%w: publish: %v", ErrUpstream, err)
	}
	s.advance(ctx, r, StatePublished, key)
	return link, nil
}

func (s *FulfillmentService) markFailed(ctx context.Context, r *run, cause error) {
	if err := s.events.MarkFailed(ctx, r.eventID, string(r.state), cause.Error()); err != nil {
		s.logger.Warn("mark event failed failed", r.fields(zap.Error(err))...)
	}
}
