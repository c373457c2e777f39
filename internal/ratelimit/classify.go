package ratelimit

import (
	"github.com/loomworks/gateway/internal/config"
	"github.com/loomworks/gateway/internal/utils"
)

// Classifier picks the rate-limit category for a request path and auth
// state. Generation and auth-endpoint prefixes get their tighter
// quotas; everything else falls to the general anonymous/authenticated
// split.
type Classifier struct {
	generationPrefixes []string
	authPrefixes       []string
}

func NewClassifier(generationPrefixes, authPrefixes []string) *Classifier {
	return &Classifier{
		generationPrefixes: generationPrefixes,
		authPrefixes:       authPrefixes,
	}
}

func (c *Classifier) Category(path string, authenticated bool) string {
	if utils.PathHasPrefix(path, c.authPrefixes) {
		return config.CategoryAuth
	}
	if utils.PathHasPrefix(path, c.generationPrefixes) {
		return config.CategoryGeneration
	}
	if authenticated {
		return config.CategoryAuthenticated
	}
	return config.CategoryAnonymous
}
