package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const HostTokenIssuer = "dbbridge"

// HostClaims is what a host token grants: the subject names the host,
// Databases limits which presets it may open (empty means all).
type HostClaims struct {
	jwt.RegisteredClaims
	Databases []string `json:"dbs,omitempty"`
}

// IssueHostToken generates an HS256 token for host sub.
func IssueHostToken(secret []byte, sub string, dbs []string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty token secret")
	}
	now := time.Now()
	claims := HostClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   HostTokenIssuer,
			Subject:  sub,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Databases: dbs,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseHostToken verifies a signed token and returns its claims.
func ParseHostToken(secret []byte, signedToken string) (*HostClaims, error) {
	claims := &HostClaims{}
	token, err := jwt.ParseWithClaims(signedToken, claims, func(token *jwt.Token) (interface{}, error) {
		// ensure alg is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(HostTokenIssuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
