package ports

// PasswordHasher hashes and verifies passwords (Argon2id).
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// RateLimiter throttles attempts per (action, identifier). Allow consumes one
// attempt and reports whether it fits the action's window. Implementations
// may be process-local; the resolver depends on this abstraction so a shared
// store can be swapped in.
type RateLimiter interface {
	Allow(action, identifier string) bool
}
