package redis

const (
	// KeyPrefixRateLimit is the prefix for fixed-window counter keys
	KeyPrefixRateLimit = "gateway:ratelimit:"
	// KeyPrefixProfile is the prefix for cached user profile keys
	KeyPrefixProfile = "gateway:profile:"
	// KeyPrefixBlacklist is the prefix for revoked token keys
	KeyPrefixBlacklist = "gateway:blacklist:"
)

// RateLimitKey returns the counter key for a (category, identity) pair
func RateLimitKey(category, identity string) string {
	return KeyPrefixRateLimit + category + ":" + identity
}

// ProfileKey returns the cache key for a user profile
func ProfileKey(userID string) string {
	return KeyPrefixProfile + userID
}

// BlacklistKey returns the revocation key for a token ID
func BlacklistKey(tokenID string) string {
	return KeyPrefixBlacklist + tokenID
}
