package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GatewayClaims are the claims carried by the local gateway's session cookie.
// The gateway never forwards this token upstream; the remote credential stays
// in the session store.
type GatewayClaims struct {
	KarNik string `json:"kar_nik"`
	jwt.RegisteredClaims
}

// GenerateGatewayToken issues a short-lived HS256 JWT binding the browser
// session to the logged-in employee.
func GenerateGatewayToken(secret []byte, karNik string, duration time.Duration) (string, error) {
	claims := GatewayClaims{
		KarNik: karNik,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseGatewayToken validates a gateway JWT and returns its claims.
func ParseGatewayToken(secret []byte, tokenStr string) (*GatewayClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &GatewayClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*GatewayClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// PeekTokenExpiry decodes the remote session token without verifying it and
// returns its expiry when the token is a JWT carrying one. The remote token
// is opaque by contract; this is display-only information for `status`.
func PeekTokenExpiry(tokenStr string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
