package chat

import "google.golang.org/genai"

// ChatRequest is the request payload for the chat endpoint. Messages use
// the upstream API's content shape directly: {role, parts:[{text}]}.
type ChatRequest struct {
	Messages []*genai.Content `json:"messages" binding:"required,min=1"`
	Model    string           `json:"model"`
	Image    string           `json:"image"`
}

// ChatResult is the relay's successful outcome.
type ChatResult struct {
	Text         string
	FinishReason string
	Model        string
}

// ChatResponse is the response payload for the chat endpoint.
type ChatResponse struct {
	Success      bool   `json:"success"`
	Response     string `json:"response"`
	FinishReason string `json:"finishReason"`
	Model        string `json:"model"`
}
