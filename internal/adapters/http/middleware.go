package http

import (
	"net/http"
	"strings"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/identity"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionTokenKey = "token"
	ctxAccount      = "account"
	ctxToken        = "token"
)

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	// Browsers cannot set headers on a WebSocket upgrade.
	if t := c.Query("token"); t != "" {
		return t
	}
	if t, ok := sessions.Default(c).Get(sessionTokenKey).(string); ok {
		return t
	}
	return ""
}

// IdentityMiddleware resolves the caller's session, if any, and stores the
// account in the context. Anonymous requests pass through.
func IdentityMiddleware(p *identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		acct, err := p.Session(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Msg("session rejected")
			c.Next()
			return
		}
		c.Set(ctxAccount, acct)
		c.Set(ctxToken, token)
		c.Next()
	}
}

func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		if accountFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		c.Next()
	}
}

func accountFrom(c *gin.Context) *domain.Account {
	v, ok := c.Get(ctxAccount)
	if !ok {
		return nil
	}
	acct, _ := v.(*domain.Account)
	return acct
}
