package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedRealIP rewrites r.RemoteAddr from X-Real-IP or X-Forwarded-For, but
// only when the connection comes from one of trustedCIDRs. Entries may be
// CIDRs or bare addresses. Requests from anywhere else keep their socket
// address, so clients cannot pick their own rate-limit bucket.
func TrustedRealIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	trusted := parsePrefixes(trustedCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(trusted) > 0 && isTrusted(remoteAddr(r.RemoteAddr), trusted) {
				if addr, ok := forwardedClient(r.Header); ok {
					r.RemoteAddr = addr.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parsePrefixes(entries []string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			slog.Warn("realip: invalid trusted proxy, skipping", "entry", entry, "error", err)
			continue
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes
}

// forwardedClient returns the client address named by the proxy headers.
// X-Real-IP wins; otherwise the first X-Forwarded-For hop is used.
func forwardedClient(h http.Header) (netip.Addr, bool) {
	candidate := strings.TrimSpace(h.Get("X-Real-IP"))
	if candidate == "" {
		xff := h.Get("X-Forwarded-For")
		first, _, _ := strings.Cut(xff, ",")
		candidate = strings.TrimSpace(first)
	}
	if candidate == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(candidate)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// remoteAddr parses "host:port" or a bare address.
func remoteAddr(s string) netip.Addr {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	if !addr.IsValid() {
		return false
	}
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
