package auth

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "coinflip-escrow"

type Claims struct {
	Address string `json:"address"` // 0x, checksummed
	jwt.RegisteredClaims
}

// GenerateJWT создаёт JWT с заданным временем жизни.
// expiration — время жизни токена (например 24h). Если <= 0, используется 24h.
func GenerateJWT(secret string, addr common.Address, expiration time.Duration) (string, error) {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	now := time.Now()
	claims := Claims{
		Address: addr.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(secret string, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if !common.IsHexAddress(claims.Address) {
		return nil, fmt.Errorf("invalid address claim")
	}
	return claims, nil
}

// Addr returns the address the token was issued to.
func (c *Claims) Addr() common.Address {
	return common.HexToAddress(c.Address)
}
