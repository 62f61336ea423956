package translation

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/urduwriter/internal/retry"
)

const (
	// Instruction is the system prompt for every translation request.
	Instruction = "Translate the following text into Urdu."

	// FailureMarker prefixes every failure string returned in place of a translation.
	FailureMarker = "❌"
	FailureText   = FailureMarker + " Failed to get translation after retries."
)

// Chatter is the completion call the translator needs.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

type Client struct {
	llm    Chatter
	policy retry.Policy
}

func New(llm Chatter, policy retry.Policy) *Client {
	return &Client{llm: llm, policy: policy}
}

// Translate requests an Urdu translation of text.
// When every attempt fails it returns FailureText together with the retry
// error, so the string can still be shown as is; callers must check Failed
// before treating the result as a translation.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	if c == nil || strings.TrimSpace(text) == "" {
		return "", nil
	}
	out, err := retry.Do(ctx, "translate", c.policy, func(ctx context.Context) (string, error) {
		return c.llm.Chat(ctx, Instruction, text)
	})
	if err != nil {
		log.Error().Err(err).Int("chars", len(text)).Msg("translation: giving up")
		return FailureText, err
	}
	out = strings.TrimSpace(out)
	log.Debug().Int("source_chars", len(text)).Int("urdu_chars", len(out)).Msg("translation: done")
	return out, nil
}

// Failed reports whether s is a failure string rather than a translation.
func Failed(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), FailureMarker)
}
