package middleware

import (
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

const RealIPKey = "real_ip"

// RealIP stores the client address under RealIPKey. Proxy headers are
// checked in order: CF-Connecting-IP, X-Real-IP, then the left-most
// X-Forwarded-For entry. Unparseable values are skipped and the socket
// address is the fallback.
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(RealIPKey, clientIP(c))
		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	candidates := []string{c.GetHeader("CF-Connecting-IP"), c.GetHeader("X-Real-IP")}
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		candidates = append(candidates, first)
	}
	for _, raw := range candidates {
		if addr, err := netip.ParseAddr(strings.TrimSpace(raw)); err == nil {
			return addr.Unmap().String()
		}
	}
	return c.ClientIP()
}
