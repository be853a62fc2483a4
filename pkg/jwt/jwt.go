package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"messenger/infrastructure"
)

type JWT struct {
	secretKey []byte
	expiry    time.Duration
}

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func NewJWT(secretKey []byte, expiry time.Duration) *JWT {
	return &JWT{
		secretKey: secretKey,
		expiry:    expiry,
	}
}

func (j *JWT) GenerateToken(userID, role string) (string, error) {
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

// ValidateToken checks signature and expiry and returns the typed claims.
// Errors are mapped onto the shared taxonomy sentinels.
func (j *JWT) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, infrastructure.ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, infrastructure.ErrTokenExpired
		}
		return nil, infrastructure.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, infrastructure.ErrInvalidToken
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, infrastructure.ErrInvalidToken
	}
	return claims, nil
}
