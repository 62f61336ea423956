package ws

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiente/translate/urduwriter/internal/audio"
	"github.com/obiente/translate/urduwriter/internal/pipeline"
	"github.com/obiente/translate/urduwriter/internal/proofread"
	"github.com/obiente/translate/urduwriter/internal/retry"
	"github.com/obiente/translate/urduwriter/internal/store"
	"github.com/obiente/translate/urduwriter/internal/transcribe"
	"github.com/obiente/translate/urduwriter/internal/translation"
)

type echoTranscriber struct{ text string }

func (e echoTranscriber) Transcribe(ctx context.Context, clip audio.Clip, lang string) (transcribe.Transcription, error) {
	return transcribe.Transcription{Text: e.text, Language: lang}, nil
}

// flakyChat fails its first call, then answers according to the system prompt.
type flakyChat struct {
	calls int
}

func (f *flakyChat) Chat(ctx context.Context, system, user string) (string, error) {
	f.calls++
	if f.calls == 1 {
		return "", errors.New("boom")
	}
	if system == translation.Instruction {
		return "آپ کیسے ہیں", nil
	}
	return `{"corrected":"آپ کیسے ہیں؟","changes":[{"from":"ہیں","to":"ہیں؟","reason":"punctuation"}]}`, nil
}

type testMux struct{ wss *Server }

func (m *testMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/ws/session" {
		http.NotFound(w, r)
		return
	}
	m.wss.Handle(w, r)
}

// blockingTranscriber holds every request until release is closed.
type blockingTranscriber struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingTranscriber) Transcribe(ctx context.Context, clip audio.Clip, lang string) (transcribe.Transcription, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return transcribe.Transcription{}, ctx.Err()
	}
	return transcribe.Transcription{Text: "how are you", Language: lang}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, echoTranscriber{text: "how are you"})
}

func newTestServerWith(t *testing.T, tr transcribe.Transcriber) *httptest.Server {
	t.Helper()
	fast := retry.Policy{Attempts: 2, Timeout: time.Second, Delay: 5 * time.Millisecond}
	chat := &flakyChat{}
	dir := t.TempDir()
	svc := pipeline.New(
		tr,
		translation.New(chat, fast),
		proofread.New(chat, fast),
		store.NewLog(filepath.Join(dir, "out.txt"), filepath.Join(dir, "out.html")),
	)
	wss := NewServer(svc, "ur-PK", "")
	srv := httptest.NewServer(&testMux{wss: wss})
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func read(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m map[string]any
	require.NoError(t, c.ReadJSON(&m))
	return m
}

// readUntilState returns every message up to and including the next state.
func readUntilState(t *testing.T, c *websocket.Conn) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		m := read(t, c)
		out = append(out, m)
		if m["type"] == "state" {
			return out
		}
	}
}

func types(msgs []map[string]any) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i], _ = m["type"].(string)
	}
	return out
}

func draftOf(m map[string]any) map[string]any {
	d, _ := m["draft"].(map[string]any)
	return d
}

func TestSessionFlow(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	ready := read(t, c)
	assert.Equal(t, "ready", ready["type"])
	assert.NotEmpty(t, ready["session_id"])

	require.NoError(t, c.WriteJSON(map[string]any{"type": "settings", "language": "en-US", "font": "Scheherazade"}))
	msgs := readUntilState(t, c)
	assert.Equal(t, []string{"state"}, types(msgs))
	assert.Equal(t, "en-US", msgs[0]["language"])
	assert.Equal(t, "Scheherazade", msgs[0]["font"])

	clip := base64.StdEncoding.EncodeToString([]byte("RIFF fake"))
	require.NoError(t, c.WriteJSON(map[string]any{"type": "audio", "data": clip, "format": "wav"}))
	msgs = readUntilState(t, c)
	assert.Equal(t, []string{"warning", "transcript", "info", "info", "state"}, types(msgs))
	assert.Equal(t, "API error: boom", msgs[0]["message"])
	assert.Equal(t, "how are you", msgs[1]["text"])
	assert.Equal(t, "en-US", msgs[1]["language"])
	assert.Equal(t, "آپ کیسے ہیں", draftOf(msgs[4])["original"])

	require.NoError(t, c.WriteJSON(map[string]any{"type": "proofread"}))
	msgs = readUntilState(t, c)
	assert.Equal(t, []string{"correction", "state"}, types(msgs))
	assert.Equal(t, "آپ کیسے ~~ہیں~~ **ہیں؟**", msgs[0]["diff"])
	assert.Len(t, msgs[0]["changes"], 1)
	assert.Equal(t, true, msgs[1]["pending"])

	require.NoError(t, c.WriteJSON(map[string]any{"type": "accept"}))
	msgs = readUntilState(t, c)
	assert.Equal(t, "آپ کیسے ہیں؟", draftOf(msgs[0])["current"])
	assert.Equal(t, false, msgs[0]["pending"])

	require.NoError(t, c.WriteJSON(map[string]any{"type": "replace", "old": "کیسے", "new": "کیسی"}))
	msgs = readUntilState(t, c)
	assert.Equal(t, []string{"info", "state"}, types(msgs))
	assert.Equal(t, "آپ کیسی ہیں؟", draftOf(msgs[1])["current"])

	require.NoError(t, c.WriteJSON(map[string]any{"type": "save"}))
	msgs = readUntilState(t, c)
	assert.Equal(t, []string{"saved", "info", "state"}, types(msgs))
	assert.True(t, strings.HasSuffix(msgs[0]["path"].(string), "out.html"))

	require.NoError(t, c.WriteJSON(map[string]any{"type": "clear"}))
	msgs = readUntilState(t, c)
	assert.Equal(t, "", draftOf(msgs[0])["current"])
}

func TestSessionPingAndBadInput(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)
	read(t, c)

	require.NoError(t, c.WriteJSON(map[string]any{"type": "ping", "ts": 42}))
	m := read(t, c)
	assert.Equal(t, "pong", m["type"])
	assert.Equal(t, float64(42), m["ts"])

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("{nope")))
	assert.Equal(t, "invalid json", read(t, c)["detail"])

	require.NoError(t, c.WriteJSON(map[string]any{"type": "teleport"}))
	assert.Equal(t, "unknown message type", read(t, c)["detail"])

	require.NoError(t, c.WriteJSON(map[string]any{"type": "audio", "data": "%%%"}))
	assert.Equal(t, "invalid base64 audio", read(t, c)["detail"])

	require.NoError(t, c.WriteJSON(map[string]any{"type": "replace", "old": "", "new": "x"}))
	msgs := readUntilState(t, c)
	assert.Equal(t, "Both fields must be filled.", msgs[0]["message"])
}

func TestDictate(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)
	read(t, c)

	clip := base64.StdEncoding.EncodeToString([]byte("webm"))
	require.NoError(t, c.WriteJSON(map[string]any{"type": "dictate", "data": clip, "format": "webm"}))
	msgs := readUntilState(t, c)
	assert.Equal(t, []string{"dictated", "state"}, types(msgs))
	assert.Equal(t, "how are you", msgs[0]["word"])
}

func TestSessionsAreTracked(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)
	read(t, c)
	wss := srv.Config.Handler.(*testMux).wss
	assert.Equal(t, 1, wss.Sessions())

	c.Close()
	assert.Eventually(t, func() bool { return wss.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionQueueOverflowReportsBusy(t *testing.T) {
	bt := &blockingTranscriber{started: make(chan struct{}), release: make(chan struct{})}
	var releaseOnce sync.Once
	release := func() { releaseOnce.Do(func() { close(bt.release) }) }
	t.Cleanup(release)

	srv := newTestServerWith(t, bt)
	c := dial(t, srv)
	read(t, c)

	clip := base64.StdEncoding.EncodeToString([]byte("RIFF fake"))
	require.NoError(t, c.WriteJSON(map[string]any{"type": "audio", "data": clip, "format": "wav"}))
	select {
	case <-bt.started:
	case <-time.After(5 * time.Second):
		t.Fatal("transcriber never called")
	}

	for i := 0; i < queueSize+2; i++ {
		require.NoError(t, c.WriteJSON(map[string]any{"type": "clear"}))
	}
	for i := 0; i < 2; i++ {
		m := read(t, c)
		assert.Equal(t, "error", m["type"])
		assert.Equal(t, "busy", m["detail"])
	}

	release()
	msgs := readUntilState(t, c)
	assert.Contains(t, types(msgs), "transcript")
	for i := 0; i < queueSize; i++ {
		msgs = readUntilState(t, c)
		assert.Equal(t, "", draftOf(msgs[len(msgs)-1])["current"])
	}
}
