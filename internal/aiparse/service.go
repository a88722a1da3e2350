package aiparse

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for statement classification.
const DefaultModelName = "gemini-2.0-flash"

// Response is one model reply. Truncated is set when the model stopped for
// hitting its output token limit, which means the JSON payload is almost
// certainly cut off mid-array.
type Response struct {
	Text      string
	Truncated bool
}

// Service sends a prompt to an external classifier and returns its reply.
// The concrete implementation is Gemini; tests substitute fakes.
type Service interface {
	Classify(ctx context.Context, prompt string) (Response, error)
}

// GeminiService implements Service over the Gemini API.
type GeminiService struct {
	client *genai.Client
	model  string
}

// NewGeminiService creates a Gemini-backed classifier service. Credentials
// come from the environment (GOOGLE_API_KEY or application default
// credentials), same as the rest of the Google Cloud clients.
func NewGeminiService(ctx context.Context, model string) (*GeminiService, error) {
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("aiparse: create genai client: %w", err)
	}
	return &GeminiService{client: client, model: model}, nil
}

// Classify sends the prompt and reports whether the reply was truncated.
func (s *GeminiService) Classify(ctx context.Context, prompt string) (Response, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return Response{}, fmt.Errorf("aiparse: generate content: %w", err)
	}

	out := Response{Text: resp.Text()}
	for _, cand := range resp.Candidates {
		if cand.FinishReason == genai.FinishReasonMaxTokens {
			out.Truncated = true
		}
	}
	return out, nil
}
