package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Queue 基于 Redis 列表的死信队列，保存支付已入账但后续阶段失败的履约任务
type Queue struct {
	client    *redis.Client
	queueName string
}

// FulfillmentMessage 人工重放所需的全部信息
type FulfillmentMessage struct {
	EventID  string    `json:"event_id,omitempty"`
	RunID    string    `json:"run_id"`
	Email    string    `json:"email"`
	Stage    string    `json:"stage"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func NewQueue(client *redis.Client, queueName string) *Queue {
	return &Queue{
		client:    client,
		queueName: queueName,
	}
}

// Push 加入队列
func (q *Queue) Push(ctx context.Context, msg *FulfillmentMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Pop 从队列获取任务（阻塞）
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*FulfillmentMessage, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 超时，无任务
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}
	return decode(result[1])
}

// TryPop 非阻塞获取，队列为空时返回 nil
func (q *Queue) TryPop(ctx context.Context) (*FulfillmentMessage, error) {
	result, err := q.client.RPop(ctx, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}
	return decode(result)
}

// Length 获取队列长度
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}

func decode(payload string) (*FulfillmentMessage, error) {
	var msg FulfillmentMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}
