package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/lathe/internal/core/domain"
)

func TestMatchPath(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"scss/**/*.{scss,sass}", "scss/base/_nav.scss", true},
		{"scss/**/*.{scss,sass}", "scss/main.sass", true},
		{"scss/**/*.scss", "scripts/nav.js", false},
		{"css", "css/main.css", true},
		{"css", "cssx/main.css", false},
		{"./images/*.png", "images/logo.png", true},
		{"images/*.png", "images/icons/logo.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.MatchPath(tt.pattern, tt.path))
		})
	}
}

func TestPatternsOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"css", "css", true},
		{"css", "css/main.css", true},
		{"css", "cssx", false},
		{"css/*.css", "css", true},
		{"scripts/*.js", "scripts/build/app.js", false},
		{"scripts/build/*.js", "scripts/build/app.js", true},
		{"images/**/*.png", "images/**/*.svg", false},
		{"css/*.css", "css/**/*", true},
		{"scss/**", "css/**", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.PatternsOverlap(tt.a, tt.b))
			assert.Equal(t, tt.want, domain.PatternsOverlap(tt.b, tt.a))
		})
	}
}
