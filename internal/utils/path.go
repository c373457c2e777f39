package utils

import "strings"

// PathHasPrefix reports whether path falls under any of the prefixes,
// matching whole segments: "/api/auth" covers "/api/auth" and
// "/api/auth/login" but not "/api/authors".
func PathHasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
