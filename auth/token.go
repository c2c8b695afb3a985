package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pulse/domain"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a specific identity. Token issuance
// belongs to the account service; this helper exists for tooling and tests.
func GenerateToken(secret []byte, identity domain.Identity, duration time.Duration) (string, error) {
	claims := &CustomClaims{
		UserID:      identity.UserID,
		Role:        string(identity.Role),
		DisplayName: identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "pulse",
		},
	}

	// HS256 (HMAC with SHA256), signed with the server's secret key.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Verifier validates bearer tokens and turns them into identities.
// It implements contract.CredentialVerifier.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) Verifier {
	return Verifier{secret: secret}
}

// Verify parses and validates the signature and expiration of a JWT string.
// Every rejection looks the same to the caller: a malformed token, a bad
// signature and an expired token all return ok == false.
func (v Verifier) Verify(tokenString string) (domain.Identity, bool) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return domain.Identity{}, false
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return domain.Identity{}, false
	}

	role := domain.Role(claims.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.Identity{
		UserID:      claims.UserID,
		Role:        role,
		DisplayName: claims.DisplayName,
	}, true
}
