// Package pipeline runs the user actions of one writing session: speech in,
// Urdu draft out, with edits, proofreading and saving in between.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/urduwriter/internal/audio"
	"github.com/obiente/translate/urduwriter/internal/diff"
	"github.com/obiente/translate/urduwriter/internal/proofread"
	"github.com/obiente/translate/urduwriter/internal/session"
	"github.com/obiente/translate/urduwriter/internal/store"
	"github.com/obiente/translate/urduwriter/internal/transcribe"
	"github.com/obiente/translate/urduwriter/internal/translation"
)

// DictationLanguage is used for spoken replacement words regardless of the
// session language.
const DictationLanguage = "ur-PK"

type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

type Proofreader interface {
	Proofread(ctx context.Context, urdu, source string) (*proofread.Correction, error)
}

type Log interface {
	Append(e store.Entry) (string, error)
}

// State is everything a session remembers between actions.
type State struct {
	Draft    session.Draft `json:"draft"`
	Pending  *Review       `json:"pending,omitempty"`
	Language string        `json:"language"`
	Font     string        `json:"font"`
}

func NewState(language, font string) *State {
	if !transcribe.Supported(language) {
		language = transcribe.DefaultLanguage
	}
	return &State{Language: language, Font: store.Font(font)}
}

// Review is a proofread correction waiting to be accepted or discarded.
type Review struct {
	Corrected string             `json:"corrected"`
	Changes   []proofread.Change `json:"changes"`
	Diff      string             `json:"diff"`
	Tokens    []diff.Token       `json:"tokens"`
}

type Saved struct {
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// Outcome is what one action produced. Errors abort the action; warnings
// describe degraded but completed work.
type Outcome struct {
	Transcript *transcribe.Transcription
	Review     *Review
	Dictated   string
	Saved      *Saved
	Info       []string
	Warnings   []string
	Errors     []string
}

func (o *Outcome) info(format string, args ...any) { o.Info = append(o.Info, fmt.Sprintf(format, args...)) }
func (o *Outcome) warn(format string, args ...any) { o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...)) }
func (o *Outcome) fail(format string, args ...any) { o.Errors = append(o.Errors, fmt.Sprintf(format, args...)) }

type Service struct {
	transcriber transcribe.Transcriber
	translator  Translator
	proofreader Proofreader
	log         Log
	now         func() time.Time
}

func New(t transcribe.Transcriber, tr Translator, p Proofreader, l Log) *Service {
	return &Service{transcriber: t, translator: tr, proofreader: p, log: l, now: time.Now}
}

// Settings changes the recognition language and the preview font.
func (s *Service) Settings(st *State, language, font string) Outcome {
	var out Outcome
	if language != "" {
		if transcribe.Supported(language) {
			st.Language = language
		} else {
			out.warn("Unsupported language %q, keeping %s", language, st.Language)
		}
	}
	if font != "" {
		st.Font = store.Font(font)
		if st.Font != font {
			out.warn("Unknown font %q, using %s", font, st.Font)
		}
	}
	return out
}

// SubmitAudio transcribes clip and, while no draft exists yet, translates the
// transcript into a new draft and appends it to the text log.
func (s *Service) SubmitAudio(ctx context.Context, st *State, clip audio.Clip) Outcome {
	var out Outcome
	tr, err := s.transcriber.Transcribe(ctx, clip, st.Language)
	if err != nil {
		out.fail("%s", transcribeFailure(err))
		return out
	}
	out.Transcript = &tr
	if tr.Text == "" {
		out.warn("No speech recognized.")
		return out
	}
	out.info("Recognized (%s): %s", tr.Language, tr.Text)

	if !st.Draft.Empty() {
		log.Debug().Msg("pipeline: draft exists, transcript not translated")
		out.info("A draft already exists. Clear it to start from new speech.")
		return out
	}

	urdu, err := s.translator.Translate(ctx, tr.Text)
	if err != nil || translation.Failed(urdu) {
		if errors.Is(err, context.Canceled) {
			return out
		}
		out.fail("%s", translation.FailureText)
		return out
	}
	if !st.Draft.Seed(tr.Text, urdu) {
		out.warn("Translation came back empty.")
		return out
	}
	st.Pending = nil

	ts := s.now()
	if _, err := s.log.Append(store.Entry{Timestamp: ts, Text: urdu, Format: store.FormatText}); err != nil {
		log.Warn().Err(err).Msg("pipeline: auto-save failed")
		out.warn("Could not save automatically: %v", err)
	} else {
		out.info("Saved speech automatically at %s", ts.Format(store.TimeLayout))
	}
	return out
}

func transcribeFailure(err error) string {
	var (
		de *audio.DecodeError
		re *transcribe.RecognitionError
		te *transcribe.TranscriptionError
	)
	switch {
	case errors.As(err, &de):
		return "❌ Could not decode audio: " + de.Error()
	case errors.As(err, &re):
		return "❌ Speech Recognition Error: " + re.Err.Error()
	case errors.As(err, &te):
		return "❌ Transcription failed: " + te.Err.Error()
	default:
		return "❌ " + err.Error()
	}
}

// DictateWord recognizes a short clip as an Urdu replacement word. Failure is
// only a warning; the word can still be typed.
func (s *Service) DictateWord(ctx context.Context, clip audio.Clip) Outcome {
	var out Outcome
	tr, err := s.transcriber.Transcribe(ctx, clip, DictationLanguage)
	switch {
	case err != nil:
		out.warn("Could not recognize audio: %v", err)
	case tr.Text == "":
		out.warn("No speech recognized.")
	default:
		out.Dictated = tr.Text
	}
	return out
}

func (s *Service) Edit(st *State, text string) Outcome {
	st.Draft.Edit(text)
	st.Pending = nil
	return Outcome{}
}

func (s *Service) Replace(st *State, oldWord, newWord string) Outcome {
	var out Outcome
	n, err := st.Draft.Replace(oldWord, newWord)
	if err != nil {
		out.warn("Both fields must be filled.")
		return out
	}
	if n == 0 {
		out.info("'%s' not found.", oldWord)
		return out
	}
	st.Pending = nil
	out.info("Replaced '%s' with '%s'!", oldWord, newWord)
	return out
}

// Proofread asks for a correction of the live draft and keeps it pending
// until Accept or Discard.
func (s *Service) Proofread(ctx context.Context, st *State) Outcome {
	var out Outcome
	current := st.Draft.Current
	corr, err := s.proofreader.Proofread(ctx, current, st.Draft.Source)
	switch {
	case errors.Is(err, proofread.ErrEmptyText):
		out.warn("Nothing to proofread.")
		return out
	case err != nil:
		out.fail("%s", proofread.FailureText)
		return out
	}
	toks := diff.Tokens(current, corr.Corrected)
	r := &Review{
		Corrected: corr.Corrected,
		Changes:   corr.Changes,
		Diff:      diff.RenderTokens(toks),
		Tokens:    toks,
	}
	st.Pending = r
	out.Review = r
	return out
}

func (s *Service) Accept(st *State) Outcome {
	var out Outcome
	if st.Pending == nil {
		out.warn("No correction to accept.")
		return out
	}
	st.Draft.Accept(st.Pending.Corrected)
	st.Pending = nil
	return out
}

func (s *Service) Discard(st *State) Outcome {
	st.Pending = nil
	return Outcome{}
}

// Save appends the live draft to the HTML log in the session font.
func (s *Service) Save(st *State) Outcome {
	var out Outcome
	ts := s.now()
	path, err := s.log.Append(store.Entry{Timestamp: ts, Text: st.Draft.Current, Format: store.FormatHTML, Font: st.Font})
	if err != nil {
		out.warn("Could not save: %v", err)
		return out
	}
	stamp := ts.Format(store.TimeLayout)
	out.Saved = &Saved{Timestamp: stamp, Path: path}
	out.info("Live preview appended to %s at %s", path, stamp)
	return out
}

func (s *Service) Clear(st *State) Outcome {
	st.Draft.Clear()
	st.Pending = nil
	return Outcome{}
}
