package ports

type AuthClaims struct {
	UserID string
	Email  string
}

// TokenVerifier validates a bearer token from the producer surface.
type TokenVerifier interface {
	Verify(token string) (AuthClaims, error)
}
