package http

import (
	"encoding/json"
	"net/http"

	"github.com/obiente/translate/urduwriter/internal/store"
	"github.com/obiente/translate/urduwriter/internal/transcribe"
	"github.com/obiente/translate/urduwriter/internal/ws"
)

func NewRouter(wss *ws.Server, language, font string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "sessions": wss.Sessions()})
	})
	mux.HandleFunc("/api/options", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"languages":        transcribe.Languages,
			"fonts":            store.Fonts,
			"default_language": language,
			"default_font":     store.Font(font),
		})
	})
	// One writing session per connection
	mux.HandleFunc("/ws/session", wss.Handle)
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
