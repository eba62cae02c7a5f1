// Package language picks the prompt language for a piece of text.
package language

import (
	"errors"
	"strings"

	"github.com/abadojack/whatlanggo"
)

var ErrUndetectable = errors.New("language could not be detected")

// Detector returns a two-letter ISO 639-1 code for text.
type Detector interface {
	Detect(text string) (string, error)
}

// WhatlangDetector detects languages with whatlanggo's trigram model.
type WhatlangDetector struct{}

func (WhatlangDetector) Detect(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrUndetectable
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return "", ErrUndetectable
	}
	return code, nil
}

// Selector maps detected languages onto the two supported ones: every result
// other than Alternate, including detection failures, resolves to Default.
type Selector struct {
	detector  Detector
	Default   string
	Alternate string
}

func NewSelector(detector Detector, defaultLang, alternate string) *Selector {
	if detector == nil {
		detector = WhatlangDetector{}
	}
	return &Selector{detector: detector, Default: defaultLang, Alternate: alternate}
}

func (s *Selector) Pick(text string) string {
	code, err := s.detector.Detect(text)
	if err != nil {
		return s.Default
	}
	if code == s.Alternate {
		return s.Alternate
	}
	return s.Default
}
