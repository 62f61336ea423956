package transcribe

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/urduwriter/internal/audio"
	"github.com/obiente/translate/urduwriter/internal/completion"
	"github.com/obiente/translate/urduwriter/internal/retry"
)

const multimodalInstruction = "You are a transcription assistant."

// AudioChatter is the completion call the multimodal strategy needs.
type AudioChatter interface {
	ChatAudio(ctx context.Context, system string, audio []byte, format string) (string, error)
}

var _ Transcriber = (*Multimodal)(nil)

// Multimodal sends the raw clip inline to a chat completion model.
type Multimodal struct {
	llm    AudioChatter
	policy retry.Policy
}

func NewMultimodal(llm AudioChatter, policy retry.Policy) *Multimodal {
	return &Multimodal{llm: llm, policy: policy}
}

func mimeType(f audio.Format) string {
	if f == audio.FormatWAV {
		return "audio/wav"
	}
	return "audio/webm"
}

// Transcribe returns *TranscriptionError when every attempt fails. The model
// picks the language itself; lang is reported back unchanged.
func (m *Multimodal) Transcribe(ctx context.Context, clip audio.Clip, lang string) (Transcription, error) {
	if len(clip.Data) == 0 {
		return Transcription{}, &TranscriptionError{Err: errors.New("empty audio clip")}
	}
	text, err := retry.Do(ctx, "transcribe", m.policy, func(ctx context.Context) (string, error) {
		out, err := m.llm.ChatAudio(ctx, multimodalInstruction, clip.Data, mimeType(clip.Format))
		if errors.Is(err, completion.ErrEmptyContent) {
			return "", nil
		}
		return out, err
	})
	if err != nil {
		return Transcription{}, &TranscriptionError{Err: err}
	}
	text = strings.TrimSpace(text)
	log.Info().Int("audio_bytes", len(clip.Data)).Int("chars", len(text)).Msg("transcribe: multimodal reply")
	return Transcription{Text: text, Language: lang}, nil
}
