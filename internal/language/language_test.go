package language

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubDetector struct {
	code string
	err  error
}

func (s stubDetector) Detect(string) (string, error) { return s.code, s.err }

func TestSelectorPick(t *testing.T) {
	tests := []struct {
		name     string
		detector Detector
		want     string
	}{
		{name: "alternate detected", detector: stubDetector{code: "ro"}, want: "ro"},
		{name: "default detected", detector: stubDetector{code: "en"}, want: "en"},
		{name: "unsupported falls back", detector: stubDetector{code: "fr"}, want: "en"},
		{name: "detection error falls back", detector: stubDetector{err: errors.New("boom")}, want: "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(tt.detector, "en", "ro")
			assert.Equal(t, tt.want, s.Pick("whatever"))
		})
	}
}

func TestWhatlangDetectorEmptyInput(t *testing.T) {
	_, err := WhatlangDetector{}.Detect("   ")
	assert.ErrorIs(t, err, ErrUndetectable)
}

func TestWhatlangDetectorRomanian(t *testing.T) {
	code, err := WhatlangDetector{}.Detect("Această lucrare descrie arhitectura sistemului și modul în care datele sunt procesate de fiecare componentă.")
	assert.NoError(t, err)
	assert.Equal(t, "ro", code)
}
