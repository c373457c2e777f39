package ratelimit

import (
	"testing"

	"github.com/loomworks/gateway/internal/config"
)

func TestClassifierCategory(t *testing.T) {
	c := NewClassifier(
		[]string{"/api/generate", "/api/media"},
		[]string{"/api/auth"},
	)

	tests := []struct {
		name          string
		path          string
		authenticated bool
		want          string
	}{
		{"auth endpoint", "/api/auth/login", false, config.CategoryAuth},
		{"auth endpoint wins even when authenticated", "/api/auth/refresh", true, config.CategoryAuth},
		{"generation endpoint", "/api/generate/story", true, config.CategoryGeneration},
		{"media counts as generation", "/api/media/tts", true, config.CategoryGeneration},
		{"anonymous general", "/api/scenarios", false, config.CategoryAnonymous},
		{"authenticated general", "/api/history", true, config.CategoryAuthenticated},
		{"prefix is segment-aware", "/api/authors", false, config.CategoryAnonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Category(tt.path, tt.authenticated); got != tt.want {
				t.Errorf("Category(%q, %v) = %q, want %q", tt.path, tt.authenticated, got, tt.want)
			}
		})
	}
}
