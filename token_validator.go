package auth

// TokenValidator validates session tokens and extracts claims without tying
// callers to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}
