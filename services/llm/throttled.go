package llmsvc

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/urfu-lab/studyhub/core/chat"
)

// Throttled shares one rate limiter between all calls to the wrapped model.
type Throttled struct {
	next    chat.Completer
	limiter *rate.Limiter
}

var _ chat.Completer = (*Throttled)(nil)

func NewThrottled(next chat.Completer, perSecond float64, burst int) *Throttled {
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *Throttled) Stream(ctx context.Context, prompt string, onChunk func(string) error) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "waiting for llm rate limit")
	}
	return t.next.Stream(ctx, prompt, onChunk)
}
