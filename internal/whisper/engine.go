package whisper

// Engine is a small interface for whisper transcription.
// Implementations are backed by whisper.cpp (build tag: whisper_cpp) or a stub
// that refuses to load.
type Engine interface {
	// Process runs transcription over 16kHz mono PCM32F samples.
	// Returns (text, language).
	Process(samples []float32) (string, string, error)
	// SetLanguage configures the language for transcription. Use "auto" for auto-detection.
	SetLanguage(lang string)
	Close() error
}
