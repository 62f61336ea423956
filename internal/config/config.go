package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/obiente/translate/urduwriter/internal/retry"
)

const (
	StrategyRecognizer = "recognizer"
	StrategyMultimodal = "multimodal"

	RecognizerDeepgram = "deepgram"
	RecognizerWhisper  = "whisper"
)

type Config struct {
	Addr string

	APIKey  string
	BaseURL string
	Model   string

	Retries       int
	TimeoutSec    int
	RetryDelaySec int

	Strategy   string
	Recognizer string
	Language   string

	DeepgramKey   string
	DeepgramURL   string
	DeepgramModel string
	ModelPath     string
	FFmpegPath    string

	TextPath string
	HTMLPath string
	Font     string
}

var defaults = map[string]any{
	"URDUWRITER_ADDR":     ":8080",
	"OPENROUTER_API_KEY":  "",
	"OPENROUTER_BASE_URL": "https://openrouter.ai/api/v1",
	"OPENROUTER_MODEL":    "gpt-4o-mini",
	"REQUEST_RETRIES":     retry.DefaultAttempts,
	"REQUEST_TIMEOUT":     int(retry.DefaultTimeout / time.Second),
	"RETRY_DELAY":         int(retry.DefaultDelay / time.Second),
	"TRANSCRIBE_STRATEGY": StrategyRecognizer,
	"RECOGNIZER":          RecognizerDeepgram,
	"SPEECH_LANGUAGE":     "ur-PK",
	"DEEPGRAM_API_KEY":    "",
	"DEEPGRAM_BASE_URL":   "https://api.deepgram.com",
	"DEEPGRAM_MODEL":      "nova-2",
	"WHISPER_MODEL_PATH":  "./models/ggml-base.bin",
	"FFMPEG_PATH":         "ffmpeg",
	"OUTPUT_TEXT_PATH":    "urdu_output.txt",
	"OUTPUT_HTML_PATH":    "urdu_output.html",
	"URDU_FONT":           "Noto Nastaliq Urdu",
}

// Load reads .env (if present), the optional file named by URDUWRITER_CONFIG
// and the environment, in increasing order of precedence.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("config: no .env file, using environment")
	}
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	if path := os.Getenv("URDUWRITER_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config: cannot read config file")
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	str := func(k string) string { return strings.TrimSpace(v.GetString(k)) }
	return Config{
		Addr:          str("URDUWRITER_ADDR"),
		APIKey:        str("OPENROUTER_API_KEY"),
		BaseURL:       str("OPENROUTER_BASE_URL"),
		Model:         str("OPENROUTER_MODEL"),
		Retries:       v.GetInt("REQUEST_RETRIES"),
		TimeoutSec:    v.GetInt("REQUEST_TIMEOUT"),
		RetryDelaySec: v.GetInt("RETRY_DELAY"),
		Strategy:      strings.ToLower(str("TRANSCRIBE_STRATEGY")),
		Recognizer:    strings.ToLower(str("RECOGNIZER")),
		Language:      str("SPEECH_LANGUAGE"),
		DeepgramKey:   str("DEEPGRAM_API_KEY"),
		DeepgramURL:   str("DEEPGRAM_BASE_URL"),
		DeepgramModel: str("DEEPGRAM_MODEL"),
		ModelPath:     str("WHISPER_MODEL_PATH"),
		FFmpegPath:    str("FFMPEG_PATH"),
		TextPath:      str("OUTPUT_TEXT_PATH"),
		HTMLPath:      str("OUTPUT_HTML_PATH"),
		Font:          str("URDU_FONT"),
	}
}

// RetryPolicy is the budget shared by every outbound call.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		Attempts: c.Retries,
		Timeout:  time.Duration(c.TimeoutSec) * time.Second,
		Delay:    time.Duration(c.RetryDelaySec) * time.Second,
	}
}
