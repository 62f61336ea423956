// Package proofread asks the completion model to copyedit Urdu text and
// recovers a Correction from whatever it answers.
package proofread

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/urduwriter/internal/retry"
)

const systemPrompt = "You are an Urdu copyeditor. Correct spelling, spacing, punctuation and obvious word errors, " +
	"but keep the user's meaning. Return ONLY valid JSON with keys: corrected (string), " +
	"changes (array of objects with from,to,reason)."

const FailureText = "❌ Failed to proofread after retries."

var ErrEmptyText = errors.New("nothing to proofread")

// Chatter is the completion call the proofreader needs.
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

func userPrompt(urdu, source string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original Urdu:\n%s\n\nReference text:\n%s\n\n", urdu, source)
	b.WriteString("Return JSON like:\n")
	b.WriteString(`{"corrected":"...", "changes":[{"from":"غلط","to":"صحیح","reason":"typo"}]}`)
	return b.String()
}

// Proofread returns the model's correction of urdu, using source as reference.
// A reply that is not the requested JSON still yields a Correction holding the
// raw reply. Only an exhausted retry budget returns nil and an error.
func (c *Client) Proofread(ctx context.Context, urdu, source string) (*Correction, error) {
	if strings.TrimSpace(urdu) == "" {
		return nil, ErrEmptyText
	}
	text, err := retry.Do(ctx, "proofread", c.policy, func(ctx context.Context) (string, error) {
		return c.llm.Chat(ctx, systemPrompt, userPrompt(urdu, source))
	})
	if err != nil {
		log.Error().Err(err).Msg("proofread: giving up")
		return nil, fmt.Errorf("%s: %w", FailureText, err)
	}

	r := ParseReply(text)
	if fb, ok := r.(RawFallback); ok {
		log.Warn().Err(fb.Cause).Int("chars", len(fb.Text)).Msg("proofread: using raw reply")
	}
	corr := r.Correction()
	log.Debug().Int("changes", len(corr.Changes)).Msg("proofread: done")
	return &corr, nil
}
