package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Proxy headers checked in priority order, most trustworthy first.
var ipHeaders = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// GetIP extracts the real client IP from the request, consulting proxy
// headers before falling back to RemoteAddr. It never returns an empty
// string: when no header yields a valid address the raw RemoteAddr is
// returned as-is.
func GetIP(r *http.Request) string {
	for _, header := range ipHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		// X-Forwarded-For may carry "client, proxy1, proxy2"; the leftmost
		// entry is the originating client.
		candidate, _, _ := strings.Cut(value, ",")
		if ip := normalize(candidate); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := normalize(host); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func normalize(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
