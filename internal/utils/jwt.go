// Package utils provides helpers for token creation and hashing.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the role claim.
const (
	RoleOperator = "OPERATOR"
	RoleTable    = "TABLE"
)

// ErrInvalidToken is returned by ParseAccessToken for any token that
// cannot be trusted.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// Claims is the identity decoded from an access token.  TableID is set
// only for kiosk tokens.
type Claims struct {
	Subject string
	Role    string
	TableID int64
}

// OperatorClaims returns the claims of the hall operator.
func OperatorClaims() Claims {
	return Claims{Subject: "operator", Role: RoleOperator}
}

// TableClaims returns the claims of the kiosk bound to a table.
func TableClaims(tableID int64) Claims {
	return Claims{Subject: fmt.Sprintf("table:%d", tableID), Role: RoleTable, TableID: tableID}
}

// NewAccessToken builds and signs an HS256 JWT.  The token carries sub,
// role, exp, iat and, for kiosks, table_id.
func NewAccessToken(secret string, cl Claims, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  cl.Subject,
		"role": cl.Role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	if cl.TableID > 0 {
		claims["table_id"] = cl.TableID
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw with secret and returns its claims.  Only
// HMAC signed tokens are accepted.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	var cl Claims
	cl.Subject, _ = mc["sub"].(string)
	cl.Role, _ = mc["role"].(string)
	// numbers decode as float64
	if v, ok := mc["table_id"].(float64); ok {
		cl.TableID = int64(v)
	}
	if cl.Role == "" {
		return Claims{}, ErrInvalidToken
	}
	if cl.Role == RoleTable && cl.TableID <= 0 {
		return Claims{}, ErrInvalidToken
	}
	return cl, nil
}

// RandomHex returns n bytes of secure random data, hex encoded.  It is
// used to generate signing secrets and callback tokens.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
