package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"climate-repair-server/models"
	"climate-repair-server/services"
)

const (
	actorKey = "actor"
	userKey  = "user"
)

// TokenValidator turns a bearer token into the actor it was issued to.
type TokenValidator interface {
	Validate(token string) (models.Actor, error)
}

// UserLookup loads the account behind a token.
type UserLookup interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

// Authenticator guards routes with bearer tokens. A token is only accepted while
// the account it names still exists.
type Authenticator struct {
	tokens TokenValidator
	users  UserLookup
}

func NewAuthenticator(tokens TokenValidator, users UserLookup) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// RequireAuth reads the token from the Authorization header.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthenticated(c, "authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
			abortUnauthenticated(c, "token must be in format: Bearer <token>")
			return
		}

		a.authenticate(c, tokenString)
	}
}

// RequireQueryToken reads the token from the "token" query parameter. Browsers
// cannot set headers on WebSocket upgrades.
func (a *Authenticator) RequireQueryToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			abortUnauthenticated(c, "token query parameter required")
			return
		}
		a.authenticate(c, tokenString)
	}
}

func (a *Authenticator) authenticate(c *gin.Context, tokenString string) {
	claimed, err := a.tokens.Validate(tokenString)
	if err != nil {
		abortUnauthenticated(c, services.MessageOf(err))
		return
	}

	user, err := a.users.FindByID(c.Request.Context(), claimed.ID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			abortUnauthenticated(c, "user associated with token not found")
			return
		}
		log.Printf("auth: load user %d: %v", claimed.ID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   string(services.KindStorage),
			"message": services.MessageOf(err),
		})
		return
	}

	// The stored role wins over the one in the token so demotions apply at once.
	c.Set(actorKey, models.Actor{ID: user.ID, Login: user.Login, Role: user.Role})
	c.Set(userKey, user)
	c.Next()
}

// ActorFrom returns the authenticated actor set by RequireAuth.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// UserFrom returns the authenticated account set by RequireAuth.
func UserFrom(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   string(services.KindUnauthenticated),
		"message": message,
	})
}
