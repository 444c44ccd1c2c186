package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bumisarana/absensi-client/utils"
)

const (
	// SessionCookie is the gateway's own session cookie. It binds the
	// browser to the logged-in employee; the upstream credential never
	// leaves the session store.
	SessionCookie = "absensi_session"
	// ContextKarNikKey stores the authenticated employee NIK in Gin context.
	ContextKarNikKey = "kar_nik"
)

// GatewayAuth ensures the request carries a valid gateway session, either as
// the session cookie or as a bearer token.
func GatewayAuth(secret []byte) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, err := ctx.Cookie(SessionCookie)
		if err != nil || tokenString == "" {
			tokenString = bearerToken(ctx)
		}
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "not logged in")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseGatewayToken(secret, tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid or expired session")
			ctx.Abort()
			return
		}

		ctx.Set(ContextKarNikKey, claims.KarNik)
		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) string {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
