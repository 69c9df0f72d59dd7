package auth

import (
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	AccessTokenLifespanInHours = 24 * 3 // 3 days
)

type Auth interface {
	ValidateToken(token string, claims jwt.Claims) error

	// ValidateAccessToken parses the token and rejects anything that is not an access token
	ValidateAccessToken(token string) (*AccessTokenClaims, error)

	GenerateAccessToken(userID, tenantID string) (string, error)
}

type authImpl struct {
	jwtPrivateKey string

	now func() time.Time
}

func New(jwtSecret string) *authImpl {
	return &authImpl{
		jwtPrivateKey: jwtSecret,
		now:           time.Now,
	}
}
