package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// anyOrigin を許可リストに含めると、すべてのオリジンを許可する。開発環境向け。
const anyOrigin = "*"

// preflightMaxAge はプリフライト結果をブラウザがキャッシュする時間。
const preflightMaxAge = 24 * time.Hour

var (
	corsAllowMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}, ", ")
	// EventSourceは再接続時に Last-Event-ID と Cache-Control を付ける
	corsAllowHeaders  = strings.Join([]string{"Authorization", "Content-Type", "Cache-Control", "Last-Event-ID"}, ", ")
	corsExposeHeaders = headerKeyUserID
)

// CORS はブラウザ版コンソールから一覧APIとストリームを参照するためのGinミドルウェアを返す。
//
// 許可リストにあるオリジンには Origin をそのまま返し、資格情報付きのリクエストを許す。
// 許可されていないオリジンからのプリフライトは403で拒否する。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := slices.Contains(allowedOrigins, anyOrigin)
	originsSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[strings.TrimRight(o, "/")] = struct{}{}
	}
	allowed := func(origin string) bool {
		if origin == "" {
			return false
		}
		if allowAll {
			return true
		}
		_, ok := originsSet[origin]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		preflight := c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != ""
		c.Writer.Header().Add("Vary", "Origin")

		if !allowed(origin) {
			if preflight && origin != "" {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		if preflight {
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", strconv.Itoa(int(preflightMaxAge.Seconds())))
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
