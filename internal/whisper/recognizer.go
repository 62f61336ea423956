package whisper

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/urduwriter/internal/audio"
)

// Recognizer runs speech recognition on the local whisper engine. The model is
// loaded on first use.
type Recognizer struct {
	modelPath string
	newEngine func(string) (Engine, error)

	mu     sync.Mutex
	engine Engine
}

func NewRecognizer(modelPath string) *Recognizer {
	return &Recognizer{modelPath: modelPath, newEngine: NewEngine}
}

// Language maps a locale tag such as "ur-PK" to whisper's language code.
func Language(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "auto"
	}
	if i := strings.IndexByte(tag, '-'); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// Recognize transcribes a canonical WAV clip in the language given by tag.
func (r *Recognizer) Recognize(ctx context.Context, wav []byte, tag string) (string, error) {
	samples, rate, chans, err := audio.DecodeWAV(wav)
	if err != nil {
		return "", err
	}
	samples = audio.ResampleLinear(audio.Downmix(samples, chans), rate, audio.SampleRate)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.engine == nil {
		log.Info().Str("model", r.modelPath).Msg("initializing whisper engine...")
		e, err := r.newEngine(r.modelPath)
		if err != nil {
			return "", err
		}
		if e == nil {
			return "", errors.New("whisper: engine unavailable")
		}
		r.engine = e
	}
	r.engine.SetLanguage(Language(tag))
	text, lang, err := r.engine.Process(samples)
	if err != nil {
		return "", err
	}
	log.Debug().Str("tag", tag).Str("detected", lang).Int("chars", len(text)).Msg("whisper: recognized")
	return text, nil
}

func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return nil
	}
	err := r.engine.Close()
	r.engine = nil
	return err
}
