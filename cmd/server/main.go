package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/urduwriter/internal/audio"
	"github.com/obiente/translate/urduwriter/internal/completion"
	"github.com/obiente/translate/urduwriter/internal/config"
	serverhttp "github.com/obiente/translate/urduwriter/internal/http"
	"github.com/obiente/translate/urduwriter/internal/pipeline"
	"github.com/obiente/translate/urduwriter/internal/proofread"
	"github.com/obiente/translate/urduwriter/internal/store"
	"github.com/obiente/translate/urduwriter/internal/transcribe"
	"github.com/obiente/translate/urduwriter/internal/translation"
	"github.com/obiente/translate/urduwriter/internal/whisper"
	"github.com/obiente/translate/urduwriter/internal/ws"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	lvl := zerolog.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			lvl = l
		}
	}
	log.Logger = log.Level(lvl)

	cfg := config.Load()
	if cfg.APIKey == "" {
		log.Warn().Msg("OPENROUTER_API_KEY is not set; completion requests will be rejected")
	}
	policy := cfg.RetryPolicy()
	llm := completion.New(cfg.BaseURL, cfg.APIKey, cfg.Model)

	var transcriber transcribe.Transcriber
	switch cfg.Strategy {
	case config.StrategyMultimodal:
		transcriber = transcribe.NewMultimodal(llm, policy)
	default:
		if cfg.Strategy != config.StrategyRecognizer {
			log.Warn().Str("strategy", cfg.Strategy).Msg("unknown TRANSCRIBE_STRATEGY, using recognizer")
		}
		norm := audio.NewNormalizer(audio.FFmpegDecoder{Path: cfg.FFmpegPath})
		var rec transcribe.Recognizer
		switch cfg.Recognizer {
		case config.RecognizerWhisper:
			wr := whisper.NewRecognizer(cfg.ModelPath)
			defer wr.Close()
			rec = wr
		default:
			if cfg.DeepgramKey == "" {
				log.Warn().Msg("DEEPGRAM_API_KEY is not set; recognition requests will be rejected")
			}
			rec = transcribe.NewDeepgram(cfg.DeepgramURL, cfg.DeepgramKey, cfg.DeepgramModel, policy, false)
		}
		transcriber = transcribe.NewLocal(norm, rec)
	}

	svc := pipeline.New(
		transcriber,
		translation.New(llm, policy),
		proofread.New(llm, policy),
		store.NewLog(cfg.TextPath, cfg.HTMLPath),
	)
	wss := ws.NewServer(svc, cfg.Language, cfg.Font)

	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     serverhttp.NewRouter(wss, cfg.Language, cfg.Font),
		ReadTimeout: 30 * time.Second,
	}

	log.Info().
		Str("addr", cfg.Addr).
		Str("model", llm.Model()).
		Str("strategy", cfg.Strategy).
		Str("recognizer", cfg.Recognizer).
		Int("attempts", policy.Attempts).
		Dur("timeout", policy.Timeout).
		Msg("urduwriter server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}
