package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Format is the declared container of an uploaded clip.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatWebM    Format = "webm"
)

// ParseFormat maps a file extension or mime type onto a Format.
func ParseFormat(s string) Format {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, ".")
	switch s {
	case "wav", "wave", "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return FormatWAV
	case "webm", "audio/webm", "video/webm":
		return FormatWebM
	default:
		return FormatUnknown
	}
}

// Clip is a recorded or uploaded audio blob.
type Clip struct {
	Data   []byte
	Format Format
}

// DecodeError reports that neither the WAV nor the WebM decoder could read a clip.
type DecodeError struct {
	WAV  error
	WebM error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode audio: wav: %v; webm: %v", e.WAV, e.WebM)
}

func (e *DecodeError) Unwrap() []error { return []error{e.WAV, e.WebM} }

// Decoder turns a compressed container into mono or interleaved float32 PCM.
// Returns (samples, sampleRate).
type Decoder interface {
	Decode(ctx context.Context, data []byte) ([]float32, int, error)
}

// FFmpegDecoder decodes WebM through an ffmpeg subprocess, reading stdin and
// writing mono PCM16 at the canonical sample rate to stdout.
type FFmpegDecoder struct {
	Path string
}

func (d FFmpegDecoder) Decode(ctx context.Context, data []byte) ([]float32, int, error) {
	bin := d.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	// ffmpeg -f webm -i pipe:0 -ac 1 -ar 16000 -f s16le pipe:1
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error",
		"-f", "webm", "-i", "pipe:0",
		"-ac", "1", "-ar", fmt.Sprint(SampleRate),
		"-f", "s16le", "pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, 0, fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return nil, 0, fmt.Errorf("ffmpeg: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, 0, errors.New("ffmpeg produced no audio")
	}
	return DecodePCM16LEToFloat32(stdout.Bytes(), SampleRate)
}

// Normalizer converts a WAV or WebM clip into the canonical WAV stream.
type Normalizer struct {
	webm Decoder
}

func NewNormalizer(webm Decoder) *Normalizer {
	return &Normalizer{webm: webm}
}

// Normalize tries the clip as WAV, then as WebM, and re-encodes the result as
// mono 16-bit 16kHz WAV. The order is fixed; the declared format is informational.
func (n *Normalizer) Normalize(ctx context.Context, clip Clip) ([]byte, error) {
	samples, rate, chans, wavErr := DecodeWAV(clip.Data)
	if wavErr == nil {
		samples = Downmix(samples, chans)
	} else {
		var webmErr error
		if n == nil || n.webm == nil {
			webmErr = errors.New("no webm decoder configured")
		} else {
			samples, rate, webmErr = n.webm.Decode(ctx, clip.Data)
		}
		if webmErr != nil {
			log.Warn().
				Str("declared", string(clip.Format)).
				Int("bytes", len(clip.Data)).
				AnErr("wav", wavErr).
				AnErr("webm", webmErr).
				Msg("audio: decode failed")
			return nil, &DecodeError{WAV: wavErr, WebM: webmErr}
		}
	}
	before := len(samples)
	samples = ResampleLinear(samples, rate, SampleRate)
	log.Debug().
		Str("declared", string(clip.Format)).
		Int("in_rate", rate).
		Int("before", before).
		Int("after", len(samples)).
		Msg("audio: normalized clip")
	return EncodeWAV(samples, SampleRate)
}
