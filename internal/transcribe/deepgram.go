package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"

	"github.com/obiente/translate/urduwriter/internal/retry"
)

const DefaultDeepgramURL = "https://api.deepgram.com"

var ErrNoDeepgramKey = errors.New("deepgram: no api key configured")

var _ Recognizer = (*Deepgram)(nil)

// Deepgram is a Recognizer backed by Deepgram's prerecorded listen API.
type Deepgram struct {
	dg     *api.Client
	model  string
	policy retry.Policy
}

// NewDeepgram builds the client. An empty base uses Deepgram's public host;
// insecure skips TLS verification and is meant for local test servers.
func NewDeepgram(base, key, model string, policy retry.Policy, insecure bool) *Deepgram {
	d := &Deepgram{model: model, policy: policy}
	if strings.TrimSpace(key) == "" {
		return d
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultDeepgramURL
	}
	c := client.NewREST(key, &interfaces.ClientOptions{Host: base, SkipServerAuth: insecure})
	if c != nil {
		d.dg = api.New(c)
	}
	return d
}

// listenResponse is the part of the prerecorded response we read.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// deepgramLanguage maps a locale tag onto the code Deepgram expects.
func deepgramLanguage(tag string) string {
	switch tag {
	case "en-US":
		return tag
	default:
		if i := strings.IndexByte(tag, '-'); i > 0 {
			return tag[:i]
		}
		return tag
	}
}

func (d *Deepgram) Recognize(ctx context.Context, wav []byte, lang string) (string, error) {
	if d.dg == nil {
		return "", ErrNoDeepgramKey
	}
	return retry.Do(ctx, "recognize", d.policy, func(ctx context.Context) (string, error) {
		return d.listen(ctx, wav, lang)
	})
}

func (d *Deepgram) listen(ctx context.Context, wav []byte, lang string) (string, error) {
	opts := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    deepgramLanguage(lang),
		Punctuate:   true,
		SmartFormat: true,
	}
	res, err := d.dg.FromStream(ctx, bytes.NewReader(wav), opts)
	if err != nil {
		return "", fmt.Errorf("deepgram listen: %w", err)
	}
	// The SDK response is re-read through the narrow shape above so an empty
	// result set is just an empty transcript.
	b, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode deepgram response: %w", err)
	}
	var lr listenResponse
	if err := json.Unmarshal(b, &lr); err != nil {
		return "", fmt.Errorf("decode deepgram response: %w", err)
	}
	if len(lr.Results.Channels) == 0 || len(lr.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return lr.Results.Channels[0].Alternatives[0].Transcript, nil
}
