package middleware

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

func clientAddr(c *gin.Context) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(ipFromCtx(c))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// AllowPrivateIP bypasses the limiter for loopback and RFC 1918 / ULA
// clients (health checks, internal callers).
func AllowPrivateIP() AllowFunc {
	return func(c *gin.Context) bool {
		addr, ok := clientAddr(c)
		return ok && (addr.IsLoopback() || addr.IsPrivate())
	}
}

// AllowCIDRs bypasses the limiter for clients inside any of the given
// prefixes. An empty list yields a nil AllowFunc.
func AllowCIDRs(cidrs []string) (AllowFunc, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, s := range cidrs {
		p, err := netip.ParsePrefix(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("rate limit allowlist %q: %w", s, err)
		}
		prefixes = append(prefixes, p.Masked())
	}
	if len(prefixes) == 0 {
		return nil, nil
	}
	return func(c *gin.Context) bool {
		addr, ok := clientAddr(c)
		if !ok {
			return false
		}
		for _, p := range prefixes {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}, nil
}
