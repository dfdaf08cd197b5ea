package dto

// GenerateResponse 生成触发接口响应
type GenerateResponse struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// CheckoutRequest 创建支付会话请求
type CheckoutRequest struct {
	PriceID string `json:"priceId" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
}

// CheckoutResponse 支付会话响应
type CheckoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
