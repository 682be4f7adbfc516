package utils

import (
	"net"
	"strings"
)

// IPSource holds every place a client address can come from, most trusted first.
type IPSource struct {
	Explicit     string
	RemoteAddr   string
	ForwardedFor string
	RealIP       string
}

// ClientIP walks the fallback chain and returns "unknown" when nothing is set.
func ClientIP(src IPSource) string {
	if ip := strings.TrimSpace(src.Explicit); ip != "" {
		return ip
	}
	if addr := strings.TrimSpace(src.RemoteAddr); addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			return host
		}
		return addr
	}
	if fwd := strings.TrimSpace(src.ForwardedFor); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(src.RealIP); ip != "" {
		return ip
	}
	return "unknown"
}
