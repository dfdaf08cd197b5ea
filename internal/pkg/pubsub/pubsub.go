package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelFulfillmentProgress = "fulfillment_progress"
)

// ProgressMessage 履约进度消息
type ProgressMessage struct {
	Type     string    `json:"type"`
	RunID    string    `json:"run_id"`
	EventID  string    `json:"event_id,omitempty"`
	Email    string    `json:"email"`
	Step     string    `json:"step"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// 进度阶段常量，与履约状态一一对应
const (
	StepVerified        = "verified"
	StepPaidRecorded    = "paid_recorded"
	StepProfileResolved = "profile_resolved"
	StepGenerated       = "generated"
	StepPublished       = "published"
	StepComplete        = "complete"
)

// 阶段对应的进度百分比
var StepProgress = map[string]int{
	StepVerified:        10,
	StepPaidRecorded:    25,
	StepProfileResolved: 40,
	StepGenerated:       70,
	StepPublished:       90,
	StepComplete:        100,
}

// 阶段对应的消息
var StepMessages = map[string]string{
	StepVerified:        "支付事件已验证",
	StepPaidRecorded:    "支付已入账",
	StepProfileResolved: "档案已就绪",
	StepGenerated:       "饮食方案已生成",
	StepPublished:       "文档已上传",
	StepComplete:        "履约完成",
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	fill(msg)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelFulfillmentProgress, data).Err()
}

// fill 自动填充类型、进度和消息
func fill(msg *ProgressMessage) {
	if msg.Type == "" {
		msg.Type = "fulfillment_progress"
		if msg.Error != "" {
			msg.Type = "fulfillment_failed"
		}
	}
	if msg.Progress == 0 && msg.Step != "" {
		if progress, ok := StepProgress[msg.Step]; ok {
			msg.Progress = progress
		}
	}
	if msg.Message == "" && msg.Step != "" {
		if message, ok := StepMessages[msg.Step]; ok {
			msg.Message = message
		}
	}
	if msg.At.IsZero() {
		msg.At = time.Now()
	}
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅进度消息，直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	ps := s.client.Subscribe(ctx, ChannelFulfillmentProgress)
	defer ps.Close()

	// 等待订阅确认，避免订阅建立前的消息丢失
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}
