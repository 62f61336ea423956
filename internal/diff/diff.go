// Package diff renders a word level diff between two versions of a text.
package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

type Kind int

const (
	Equal Kind = iota
	Insert
	Delete
	// Hint marks alignment guidance. Renderers drop it.
	Hint
)

func (k Kind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Hint:
		return "hint"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Token is one word of the edit script.
type Token struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Tokens splits both texts on whitespace and returns the edit script turning
// old into new, in the order Python's difflib.ndiff emits it. Inside a
// replaced run, similar words are paired (delete, insert, hints) and the
// rest of the run is aligned around the pair.
func Tokens(old, new string) []Token {
	a := strings.Fields(old)
	b := strings.Fields(new)
	m := difflib.NewMatcher(a, b)

	out := make([]Token, 0, len(a)+len(b))
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			out = dump(out, Equal, a[op.I1:op.I2])
		case 'd':
			out = dump(out, Delete, a[op.I1:op.I2])
		case 'i':
			out = dump(out, Insert, b[op.J1:op.J2])
		case 'r':
			out = fancyReplace(out, a, op.I1, op.I2, b, op.J1, op.J2)
		}
	}
	return out
}

func dump(out []Token, k Kind, words []string) []Token {
	for _, w := range words {
		out = append(out, Token{Kind: k, Text: w})
	}
	return out
}

const (
	// pairCutoff is the character similarity two words need to be paired.
	pairCutoff = 0.75
	pairFloor  = 0.74
)

func fancyReplace(out []Token, a []string, alo, ahi int, b []string, blo, bhi int) []Token {
	bestRatio := pairFloor
	bestI, bestJ := -1, -1
	eqI, eqJ := -1, -1

	chars := difflib.NewMatcher(nil, nil)
	for j := blo; j < bhi; j++ {
		chars.SetSeq2(runes(b[j]))
		for i := alo; i < ahi; i++ {
			if a[i] == b[j] {
				if eqI < 0 {
					eqI, eqJ = i, j
				}
				continue
			}
			chars.SetSeq1(runes(a[i]))
			if chars.RealQuickRatio() > bestRatio && chars.QuickRatio() > bestRatio && chars.Ratio() > bestRatio {
				bestRatio, bestI, bestJ = chars.Ratio(), i, j
			}
		}
	}

	identical := false
	if bestRatio < pairCutoff {
		if eqI < 0 {
			return plainReplace(out, a, alo, ahi, b, blo, bhi)
		}
		bestI, bestJ, identical = eqI, eqJ, true
	}

	out = fancyHelper(out, a, alo, bestI, b, blo, bestJ)
	if identical {
		out = append(out, Token{Kind: Equal, Text: a[bestI]})
	} else {
		out = pair(out, a[bestI], b[bestJ])
	}
	return fancyHelper(out, a, bestI+1, ahi, b, bestJ+1, bhi)
}

func fancyHelper(out []Token, a []string, alo, ahi int, b []string, blo, bhi int) []Token {
	switch {
	case alo < ahi && blo < bhi:
		return fancyReplace(out, a, alo, ahi, b, blo, bhi)
	case alo < ahi:
		return dump(out, Delete, a[alo:ahi])
	case blo < bhi:
		return dump(out, Insert, b[blo:bhi])
	}
	return out
}

// plainReplace emits the shorter side first, as ndiff does.
func plainReplace(out []Token, a []string, alo, ahi int, b []string, blo, bhi int) []Token {
	if bhi-blo < ahi-alo {
		out = dump(out, Insert, b[blo:bhi])
		return dump(out, Delete, a[alo:ahi])
	}
	out = dump(out, Delete, a[alo:ahi])
	return dump(out, Insert, b[blo:bhi])
}

// pair emits a similar old/new word pair with ndiff's character hint lines:
// '^' changed, '-' removed, '+' added.
func pair(out []Token, oldWord, newWord string) []Token {
	ar, br := runes(oldWord), runes(newWord)
	var at, bt strings.Builder
	for _, op := range difflib.NewMatcher(ar, br).GetOpCodes() {
		la, lb := op.I2-op.I1, op.J2-op.J1
		switch op.Tag {
		case 'r':
			at.WriteString(strings.Repeat("^", la))
			bt.WriteString(strings.Repeat("^", lb))
		case 'd':
			at.WriteString(strings.Repeat("-", la))
		case 'i':
			bt.WriteString(strings.Repeat("+", lb))
		case 'e':
			at.WriteString(strings.Repeat(" ", la))
			bt.WriteString(strings.Repeat(" ", lb))
		}
	}
	out = append(out, Token{Kind: Delete, Text: oldWord})
	if h := strings.TrimRight(at.String(), " "); h != "" {
		out = append(out, Token{Kind: Hint, Text: h})
	}
	out = append(out, Token{Kind: Insert, Text: newWord})
	if h := strings.TrimRight(bt.String(), " "); h != "" {
		out = append(out, Token{Kind: Hint, Text: h})
	}
	return out
}

func runes(w string) []string {
	out := make([]string, 0, len(w))
	for _, r := range w {
		out = append(out, string(r))
	}
	return out
}

// Render marks insertions as **word** and deletions as ~~word~~, joined by single spaces.
func Render(old, new string) string {
	return RenderTokens(Tokens(old, new))
}

func RenderTokens(toks []Token) string {
	parts := make([]string, 0, len(toks))
	for _, t := range toks {
		switch t.Kind {
		case Insert:
			parts = append(parts, "**"+t.Text+"**")
		case Delete:
			parts = append(parts, "~~"+t.Text+"~~")
		case Equal:
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, " ")
}
