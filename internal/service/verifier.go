package service

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/qs3c/dieta_server/internal/model"
)

const EventCheckoutCompleted = "checkout.session.completed"

// PurchaseEvent 验签并解码后的支付事件
type PurchaseEvent struct {
	EventID   string
	Type      string
	SessionID string
	Email     string
	PriceID   string
	Plan      Plan
	// Ignored 非支付完成事件，直接确认
	Ignored bool
}

type Verifier struct {
	secret string
	plans  *PlanTable
}

func NewVerifier(secret string, plans *PlanTable) *Verifier {
	return &Verifier{secret: secret, plans: plans}
}

// Verify 对原始字节验签，不能对解析后重新序列化的内容验签
func (v *Verifier) Verify(payload []byte, sigHeader string) (*PurchaseEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	pe := &PurchaseEvent{EventID: event.ID, Type: string(event.Type)}
	if pe.Type != EventCheckoutCompleted {
		pe.Ignored = true
		return pe, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, invalid("invalid session payload: %v", err)
	}
	pe.SessionID = sess.ID

	if sess.CustomerDetails != nil {
		pe.Email = model.NormalizeEmail(sess.CustomerDetails.Email)
	}
	if pe.Email == "" {
		pe.Email = model.NormalizeEmail(sess.CustomerEmail)
	}
	if pe.Email == "" {
		return nil, &ValidationError{Missing: []string{"email"}}
	}

	pe.PriceID = priceID(&sess)
	plan, err := v.plans.Lookup(pe.PriceID)
	if err != nil {
		return nil, err
	}
	pe.Plan = plan
	return pe, nil
}

// priceID 优先读取创建会话时写入的 metadata，其次是已展开的 line items
func priceID(sess *stripe.CheckoutSession) string {
	if id := sess.Metadata["price_id"]; id != "" {
		return id
	}
	if sess.LineItems != nil {
		for _, item := range sess.LineItems.Data {
			if item != nil && item.Price != nil && item.Price.ID != "" {
				return item.Price.ID
			}
		}
	}
	return ""
}
