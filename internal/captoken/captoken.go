// Package captoken serializes owner capabilities as signed bearer tokens so
// they can cross the HTTP boundary. The token is the capability: whoever
// presents a valid token holds the shop's owner rights.
package captoken

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tradepost/internal/shop/models"
	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
	"tradepost/pkg/requestcontext"
)

// OwnerCapClaims carries the capability binding inside the JWT payload.
type OwnerCapClaims struct {
	ShopID string `json:"shop_id"`
	CapID  string `json:"cap_id"`
	jwt.RegisteredClaims
}

// Service mints and validates owner capability tokens.
type Service struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
}

// NewService constructs the token service. A zero TTL issues tokens without
// an expiry, matching capabilities that never lapse.
func NewService(signingKey string, issuer string, tokenTTL time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		tokenTTL:   tokenTTL,
	}
}

// Mint issues a signed token embedding the capability binding.
func (s *Service) Mint(ctx context.Context, cap models.OwnerCap) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	now := requestcontext.Now(ctx)

	registered := jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(now),
		Issuer:   s.issuer,
		ID:       hex.EncodeToString(b),
	}
	if s.tokenTTL > 0 {
		registered.ExpiresAt = jwt.NewNumericDate(now.Add(s.tokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, OwnerCapClaims{
		ShopID:           cap.ShopID.String(),
		CapID:            cap.ID.String(),
		RegisteredClaims: registered,
	})
	return token.SignedString(s.signingKey)
}

// Validate checks the signature and claims and reconstructs the capability.
func (s *Service) Validate(tokenString string) (models.OwnerCap, error) {
	if tokenString == "" {
		return models.OwnerCap{}, dErrors.New(dErrors.CodeUnauthorized, "missing capability token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &OwnerCapClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.OwnerCap{}, dErrors.New(dErrors.CodeUnauthorized, "capability token expired")
		}
		return models.OwnerCap{}, dErrors.New(dErrors.CodeUnauthorized, "invalid capability token")
	}
	if !parsed.Valid {
		return models.OwnerCap{}, dErrors.New(dErrors.CodeUnauthorized, "invalid capability token")
	}

	claims, ok := parsed.Claims.(*OwnerCapClaims)
	if !ok {
		return models.OwnerCap{}, dErrors.New(dErrors.CodeUnauthorized, "invalid capability token claims")
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return models.OwnerCap{}, dErrors.New(dErrors.CodeUnauthorized, "invalid capability token issuer")
	}

	shopID, err := id.ParseShopID(claims.ShopID)
	if err != nil {
		return models.OwnerCap{}, dErrors.New(dErrors.CodeUnauthorized, "malformed shop binding")
	}
	capID, err := id.ParseCapID(claims.CapID)
	if err != nil {
		return models.OwnerCap{}, dErrors.New(dErrors.CodeUnauthorized, "malformed capability binding")
	}
	return models.OwnerCap{ID: capID, ShopID: shopID}, nil
}
