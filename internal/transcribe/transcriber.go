// Package transcribe turns a recorded clip into source-language text.
package transcribe

import (
	"context"
	"fmt"

	"github.com/obiente/translate/urduwriter/internal/audio"
)

// Language is a speech language offered for recognition.
type Language struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

const DefaultLanguage = "ur-PK"

var Languages = []Language{
	{Tag: "ur-PK", Name: "Urdu (Pakistan)"},
	{Tag: "hi-IN", Name: "Hindi (India)"},
	{Tag: "en-US", Name: "English (US)"},
}

// Supported reports whether tag is one of Languages.
func Supported(tag string) bool {
	for _, l := range Languages {
		if l.Tag == tag {
			return true
		}
	}
	return false
}

// Transcription is the text recognized in one clip. Text may be empty when
// the clip held no recognizable speech; that is not an error.
type Transcription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcriber is implemented by Local and Multimodal.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip, lang string) (Transcription, error)
}

// Recognizer performs speech recognition on a canonical WAV clip.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte, lang string) (string, error)
}

// RecognitionError is returned when the speech recognizer fails.
type RecognitionError struct {
	Language string
	Err      error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("speech recognition (%s): %v", e.Language, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// TranscriptionError is returned when the multimodal completion call fails.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return "transcription: " + e.Err.Error() }
func (e *TranscriptionError) Unwrap() error { return e.Err }
