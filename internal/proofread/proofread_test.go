package proofread

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiente/translate/urduwriter/internal/retry"
)

type fakeChat struct {
	replies []string
	errs    []error
	calls   int
	user    string
}

func (f *fakeChat) Chat(ctx context.Context, system, user string) (string, error) {
	i := f.calls
	f.calls++
	f.user = user
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return f.replies[len(f.replies)-1], nil
}

type timeoutChat struct{ calls int }

func (t *timeoutChat) Chat(ctx context.Context, system, user string) (string, error) {
	t.calls++
	<-ctx.Done()
	return "", ctx.Err()
}

var fast = retry.Policy{Attempts: 2, Timeout: 20 * time.Millisecond, Delay: 5 * time.Millisecond}

func TestParseReplyStructured(t *testing.T) {
	r := ParseReply(`{"corrected":" یہ درست ہے ","changes":[{"from":"غلط","to":"درست","reason":"typo"},{}]}`)
	s, ok := r.(Structured)
	require.True(t, ok)
	assert.Equal(t, "یہ درست ہے", s.Value.Corrected)
	assert.Equal(t, []Change{{From: "غلط", To: "درست", Reason: "typo"}}, s.Value.Changes)
}

func TestParseReplyKeepsCorrectedDespiteOddChanges(t *testing.T) {
	cases := map[string]struct {
		in   string
		want []Change
	}{
		"bare string entry":  {`{"corrected":"یہ صحیح ہے","changes":["fixed a typo"]}`, []Change{}},
		"numeric reason":     {`{"corrected":"یہ صحیح ہے","changes":[{"from":"غلط","to":"صحیح","reason":1}]}`, []Change{{From: "غلط", To: "صحیح", Reason: "1"}}},
		"mixed entries":      {`{"corrected":"یہ صحیح ہے","changes":[null,7,{"from":"a","to":"b"},{"to":["x"]}]}`, []Change{{From: "a", To: "b"}}},
		"changes not a list": {`{"corrected":"یہ صحیح ہے","changes":"none"}`, []Change{}},
		"changes null":       {`{"corrected":"یہ صحیح ہے","changes":null}`, []Change{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := ParseReply(tc.in)
			s, ok := r.(Structured)
			require.True(t, ok, "got %T", r)
			assert.Equal(t, "یہ صحیح ہے", s.Value.Corrected)
			assert.Equal(t, tc.want, s.Value.Changes)
		})
	}
}

func TestParseReplyFenced(t *testing.T) {
	r := ParseReply("```json\n{\"corrected\":\"ٹھیک\",\"changes\":[]}\n```")
	require.IsType(t, Structured{}, r)
	assert.Equal(t, "ٹھیک", r.Correction().Corrected)
	assert.Empty(t, r.Correction().Changes)
}

func TestParseReplyFallbacks(t *testing.T) {
	cases := map[string]string{
		"plain text":         "یہ صرف متن ہے",
		"broken json":        `{"corrected": "آدھا`,
		"array":              `["a","b"]`,
		"missing corrected":  `{"changes":[]}`,
		"empty corrected":    `{"corrected":"  "}`,
		"corrected not text": `{"corrected":42}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			r := ParseReply("  " + in + "\n")
			fb, ok := r.(RawFallback)
			require.True(t, ok)
			require.NotNil(t, fb.Cause)
			corr := r.Correction()
			assert.Equal(t, strings.TrimSpace(in), corr.Corrected)
			assert.NotNil(t, corr.Changes)
			assert.Empty(t, corr.Changes)
		})
	}
}

func TestProofreadStructured(t *testing.T) {
	llm := &fakeChat{replies: []string{`{"corrected":"درست متن","changes":[{"from":"غلت","to":"غلط","reason":"spelling"}]}`}}
	c := New(llm, fast)

	corr, err := c.Proofread(context.Background(), "غلت متن", "wrong text")
	require.NoError(t, err)
	assert.Equal(t, "درست متن", corr.Corrected)
	require.Len(t, corr.Changes, 1)
	assert.Equal(t, "spelling", corr.Changes[0].Reason)
	assert.Contains(t, llm.user, "Original Urdu:\nغلت متن")
	assert.Contains(t, llm.user, "Reference text:\nwrong text")
}

func TestProofreadNonJSONReply(t *testing.T) {
	c := New(&fakeChat{replies: []string{"Sure! Here it is: درست متن"}}, fast)

	corr, err := c.Proofread(context.Background(), "متن", "")
	require.NoError(t, err)
	assert.Equal(t, "Sure! Here it is: درست متن", corr.Corrected)
	assert.Equal(t, []Change{}, corr.Changes)
}

func TestProofreadRetriesThenSucceeds(t *testing.T) {
	llm := &fakeChat{errs: []error{errors.New("502 bad gateway")}, replies: []string{"", `{"corrected":"ٹھیک"}`}}
	c := New(llm, fast)

	corr, err := c.Proofread(context.Background(), "ٹھک", "")
	require.NoError(t, err)
	assert.Equal(t, "ٹھیک", corr.Corrected)
	assert.Equal(t, 2, llm.calls)
}

func TestProofreadAlwaysTimesOut(t *testing.T) {
	llm := &timeoutChat{}
	corr, err := New(llm, fast).Proofread(context.Background(), "متن", "text")
	assert.Nil(t, corr)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), FailureText))

	var ex *retry.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.True(t, ex.Timeout())
	assert.Equal(t, 2, llm.calls)
}

func TestProofreadEmptyText(t *testing.T) {
	llm := &fakeChat{replies: []string{"x"}}
	_, err := New(llm, fast).Proofread(context.Background(), "  ", "src")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, llm.calls)
}
