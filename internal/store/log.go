// Package store appends finished Urdu text to the output log files.
// Entries are only ever appended; nothing here truncates or rewrites a file.
package store

import (
	"fmt"
	"html"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
)

const TimeLayout = "2006-01-02 15:04:05"

const DefaultFont = "Noto Nastaliq Urdu"

// Fonts are the Urdu faces offered for preview and saved HTML. Cosmetic only.
var Fonts = []string{
	"Noto Nastaliq Urdu",
	"Jameel Noori Nastaleeq",
	"Scheherazade",
	"Alvi Nastaleeq",
}

// Font returns name if it is one of Fonts, DefaultFont otherwise.
func Font(name string) string {
	for _, f := range Fonts {
		if f == name {
			return f
		}
	}
	return DefaultFont
}

type Entry struct {
	Timestamp time.Time
	Text      string
	Format    Format
	Font      string
}

// Render returns the block appended for e.
func (e Entry) Render() string {
	ts := e.Timestamp.Format(TimeLayout)
	switch e.Format {
	case FormatHTML:
		return fmt.Sprintf(
			"<div style=\"font-family: '%s', serif; font-size:22px; line-height:1.6;\">\n<p><strong>Time: %s</strong></p>\n%s\n</div>\n<hr>\n",
			Font(e.Font), ts, html.EscapeString(e.Text),
		)
	default:
		return fmt.Sprintf("---\nTime: %s\n%s\n", ts, e.Text)
	}
}

// Log appends entries to a plain text file and an HTML fragment file.
// Appends from one process are serialized; separate processes writing the
// same file may interleave.
type Log struct {
	mu       sync.Mutex
	textPath string
	htmlPath string
}

func NewLog(textPath, htmlPath string) *Log {
	return &Log{textPath: textPath, htmlPath: htmlPath}
}

// Path returns the file entries of format f are appended to.
func (l *Log) Path(f Format) string {
	if f == FormatHTML {
		return l.htmlPath
	}
	return l.textPath
}

// Append writes e to the file for its format and returns that file's path.
func (l *Log) Append(e Entry) (string, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	path := l.Path(e.Format)
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("no output path for %s entries", e.Format)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(e.Render()); err != nil {
		f.Close()
		return "", fmt.Errorf("append %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	log.Info().Str("path", path).Str("format", string(e.Format)).Int("chars", len(e.Text)).Msg("store: entry appended")
	return path, nil
}
