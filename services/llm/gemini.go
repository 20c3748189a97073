package llmsvc

import (
	"context"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/urfu-lab/studyhub/core/chat"
)

type GeminiClient struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

var _ chat.Completer = (*GeminiClient)(nil)

// NewGeminiClient returns a streaming client for model. timeout bounds the wait for each streamed response.
func NewGeminiClient(ctx context.Context, apiKey, model string, maxNewTokens int, timeout time.Duration) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "creating gemini client")
	}
	m := client.GenerativeModel(model)
	m.SetMaxOutputTokens(int32(maxNewTokens))
	return &GeminiClient{client: client, model: m, timeout: timeout}, nil
}

func (c *GeminiClient) Stream(ctx context.Context, prompt string, onChunk func(string) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	idle := newIdleTimer(c.timeout, cancel)
	defer idle.stop()

	iter := c.model.GenerateContentStream(ctx, genai.Text(prompt))
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return idle.check(errors.Wrap(err, "calling gemini"))
		}
		idle.touch()
		for _, text := range responseTexts(resp) {
			if err = onChunk(text); err != nil {
				return err
			}
		}
	}
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// responseTexts returns every text part of every candidate.
func responseTexts(resp *genai.GenerateContentResponse) []string {
	var texts []string
	if resp == nil {
		return texts
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok && txt != "" {
				texts = append(texts, string(txt))
			}
		}
	}
	return texts
}
