package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/urduwriter/internal/audio"
)

// ensure this satisfies the interface
var _ Transcriber = (*Local)(nil)

// Local normalizes the clip and hands the canonical WAV to a Recognizer.
type Local struct {
	norm *audio.Normalizer
	rec  Recognizer
}

func NewLocal(norm *audio.Normalizer, rec Recognizer) *Local {
	return &Local{norm: norm, rec: rec}
}

// Transcribe returns *audio.DecodeError when the clip cannot be decoded and
// *RecognitionError when recognition fails.
func (l *Local) Transcribe(ctx context.Context, clip audio.Clip, lang string) (Transcription, error) {
	if !Supported(lang) {
		return Transcription{}, &RecognitionError{Language: lang, Err: fmt.Errorf("unsupported language %q", lang)}
	}
	wav, err := l.norm.Normalize(ctx, clip)
	if err != nil {
		return Transcription{}, err
	}
	text, err := l.rec.Recognize(ctx, wav, lang)
	if err != nil {
		log.Error().Err(err).Str("lang", lang).Msg("transcribe: recognition failed")
		return Transcription{}, &RecognitionError{Language: lang, Err: err}
	}
	text = strings.TrimSpace(text)
	log.Info().Str("lang", lang).Int("chars", len(text)).Msg("transcribe: recognized")
	return Transcription{Text: text, Language: lang}, nil
}
