package util

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// SpliceIPv6 combines the top prefixLen bits of prefix with the bottom
// 128-prefixLen bits of suffix. The split is bit-granular, not byte-granular.
// prefixLen must be in 1..128; the caller skips the update entirely for a
// configured prefix length of zero.
func SpliceIPv6(prefix, suffix netip.Addr, prefixLen uint8) netip.Addr {
	if prefixLen >= 128 {
		return prefix
	}
	p := prefix.As16()
	s := suffix.As16()
	var out [16]byte
	for i := 0; i < 16; i++ {
		bits := int(prefixLen) - i*8
		switch {
		case bits >= 8:
			out[i] = p[i]
		case bits <= 0:
			out[i] = s[i]
		default:
			mask := byte(0xff) << (8 - bits)
			out[i] = p[i]&mask | s[i]&^mask
		}
	}
	return netip.AddrFrom16(out)
}

// ParseLANPrefix parses an "addr/len" IPv6 LAN prefix as sent by some routers
// in the ipv6lanprefix query parameter.
func ParseLANPrefix(s string) (netip.Prefix, error) {
	if !strings.Contains(s, "/") {
		return netip.Prefix{}, fmt.Errorf("ipv6lanprefix %q has no / separating the address from the prefix length", s)
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid ipv6lanprefix %q: %w", s, err)
	}
	if p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("ipv6lanprefix %q is not an IPv6 prefix", s)
	}
	return p, nil
}

// GetClientIP extracts the true client IP address from a request,
// considering X-Forwarded-For headers if present (e.g. from Ingress/Nginx).
func GetClientIP(r *http.Request) string {
	// Format: client, proxy1, proxy2
	xForwardedFor := r.Header.Get("X-Forwarded-For")
	if xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if clientIP != "" {
				return clientIP
			}
		}
	}

	xRealIP := r.Header.Get("X-Real-IP")
	if xRealIP != "" {
		return strings.TrimSpace(xRealIP)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return ip
	}

	return r.RemoteAddr
}
