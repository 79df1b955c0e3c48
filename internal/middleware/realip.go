package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RealIPMiddleware rewrites X-Real-IP with the client address. Forwarding headers
// (CF-Connecting-IP, then the first X-Forwarded-For hop) are honoured only when
// the direct peer is a configured trusted proxy; otherwise the peer address wins
// and any client-supplied X-Real-IP is overwritten.
type RealIPMiddleware struct {
	trusted []netip.Prefix
}

// NewRealIPMiddleware accepts IP addresses ("192.168.1.1") and CIDRs ("10.0.0.0/8").
// Unparsable entries are ignored.
func NewRealIPMiddleware(trustedProxies []string) *RealIPMiddleware {
	m := &RealIPMiddleware{}
	for _, proxy := range trustedProxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(proxy); err == nil {
			m.trusted = append(m.trusted, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(proxy); err == nil {
			m.trusted = append(m.trusted, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return m
}

// Handler returns the middleware handler.
func (m *RealIPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := m.clientIP(r); ip != "" {
			r.Header.Set("X-Real-IP", ip)
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RealIPMiddleware) clientIP(r *http.Request) string {
	peer := peerAddr(r.RemoteAddr)
	if !m.isTrusted(peer) {
		return peer
	}

	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return peer
}

func (m *RealIPMiddleware) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range m.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// peerAddr strips the port from RemoteAddr when there is one.
func peerAddr(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
