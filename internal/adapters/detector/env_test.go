package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/lathe/internal/adapters/detector"
)

func TestDetectEnvironment_CI(t *testing.T) {
	tests := []struct {
		name    string
		ci      string
		isCI    bool
		isPlain bool
	}{
		{name: "CI=true", ci: "true", isCI: true, isPlain: true},
		{name: "CI=1", ci: "1", isCI: true, isPlain: true},
		{name: "CI=false", ci: "false"},
		{name: "unset", ci: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CI", tt.ci)

			assert.Equal(t, tt.isCI, detector.IsCI())
			if tt.isPlain {
				assert.Equal(t, detector.ModePlain, detector.DetectEnvironment())
			}
		})
	}
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		detected detector.OutputMode
		flag     string
		want     detector.OutputMode
	}{
		{detector.ModePlain, "color", detector.ModeColor},
		{detector.ModeColor, "plain", detector.ModePlain},
		{detector.ModeColor, "ci", detector.ModePlain},
		{detector.ModeColor, "auto", detector.ModeColor},
		{detector.ModePlain, "", detector.ModePlain},
		{detector.ModePlain, "fancy", detector.ModePlain},
		{detector.ModeColor, "tui", detector.ModeTUI},
		{detector.ModePlain, "tui", detector.ModePlain},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			assert.Equal(t, tt.want, detector.ResolveMode(tt.detected, tt.flag))
		})
	}
}
