package domain

// ============================================================
// Classifier
// ============================================================

// TokenUsage tracks LLM token consumption for cost monitoring.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Classification is the classifier's verdict for one message.
type Classification struct {
	Intent Intent
	Usage  TokenUsage
}

// ============================================================
// JSON message API
// ============================================================

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// MessageResponse is returned by POST /v1/messages.
type MessageResponse struct {
	Reply string `json:"reply"`
}
