package services

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"climate-repair-server/config"
	"climate-repair-server/models"
	"climate-repair-server/types"
)

const tokenIssuer = "climate-repair-server"

// TokenService issues and validates bearer access tokens.
type TokenService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service from the JWT configuration.
func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{
		secret: []byte(cfg.Secret),
		expiry: time.Duration(cfg.ExpiryHours) * time.Hour,
		now:    time.Now,
	}
}

// Issue signs a token carrying the user's id, login and role.
func (ts *TokenService) Issue(user *models.User) (string, error) {
	now := ts.now()
	claims := &types.Claims{
		UserID: user.ID,
		Login:  user.Login,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ts.secret)
}

// Validate parses a token and returns the actor it names. Expired, malformed
// and wrongly signed tokens all yield ErrUnauthenticated.
func (ts *TokenService) Validate(tokenString string) (models.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &types.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ts.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(ts.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Actor{}, unauthenticated("token expired")
		}
		return models.Actor{}, unauthenticated("invalid token")
	}

	claims, ok := token.Claims.(*types.Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return models.Actor{}, unauthenticated("invalid token claims")
	}

	return models.Actor{
		ID:    claims.UserID,
		Login: claims.Login,
		Role:  models.Role(claims.Role),
	}, nil
}
