//go:build !whisper_cpp

package whisper

import "errors"

// ErrNotCompiled is returned when the binary was built without the whisper_cpp tag.
var ErrNotCompiled = errors.New("whisper: built without whisper_cpp support")

func NewEngine(modelPath string) (Engine, error) { return nil, ErrNotCompiled }
