// Package session holds the per-session Urdu draft and the edits applied to it.
package session

import (
	"errors"
	"strings"
)

var ErrEmptyReplacement = errors.New("both fields must be filled")

// Draft is the editable Urdu text of one session.
//
// Original is set by the first successful translation and is kept until Clear.
// Current is the live buffer. Source is the transcript the draft came from and
// is sent along when proofreading.
type Draft struct {
	Original string `json:"original"`
	Current  string `json:"current"`
	Source   string `json:"source"`
}

// Empty reports whether no draft has been started.
func (d *Draft) Empty() bool { return d.Original == "" }

// Seed starts the draft from a translation. It is a no-op returning false when
// a draft already exists or urdu is blank.
func (d *Draft) Seed(source, urdu string) bool {
	if !d.Empty() || strings.TrimSpace(urdu) == "" {
		return false
	}
	d.Original = urdu
	d.Current = urdu
	d.Source = source
	return true
}

// Edit replaces the live buffer with text typed by the user.
func (d *Draft) Edit(text string) { d.Current = text }

// Replace applies ReplaceWords to the live buffer and reports how many
// occurrences were replaced.
func (d *Draft) Replace(oldWord, newWord string) (int, error) {
	out, err := ReplaceWords(d.Current, oldWord, newWord)
	if err != nil {
		return 0, err
	}
	n := strings.Count(d.Current, oldWord)
	d.Current = out
	return n, nil
}

// Accept makes a proofread correction the live buffer.
func (d *Draft) Accept(corrected string) { d.Current = corrected }

// Clear drops the draft so the next translation can start a new one.
func (d *Draft) Clear() { *d = Draft{} }

// ReplaceWords replaces every literal, case-sensitive occurrence of oldWord in
// text. There is no word boundary handling: "ab" inside "cab" is replaced too.
// Blank arguments leave text unchanged and return ErrEmptyReplacement.
func ReplaceWords(text, oldWord, newWord string) (string, error) {
	if strings.TrimSpace(oldWord) == "" || strings.TrimSpace(newWord) == "" {
		return text, ErrEmptyReplacement
	}
	return strings.ReplaceAll(text, oldWord, newWord), nil
}
