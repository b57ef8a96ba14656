// Package clientip extracts real client IP addresses from HTTP requests.
//
// Proxy headers are consulted in priority order before falling back to
// RemoteAddr:
//  1. CF-Connecting-IP (Cloudflare)
//  2. DO-Connecting-IP (DigitalOcean)
//  3. X-Forwarded-For (leftmost entry is the originating client)
//  4. X-Real-IP (nginx and similar proxies)
//  5. RemoteAddr (direct connection)
//
// Every candidate is validated with net.ParseIP; malformed headers and the
// unspecified address are skipped. The function never panics and always
// returns a string, so it is safe to key rate limiters and logs on the
// result:
//
//	ip := clientip.GetIP(r)
//	if err := guard.Check(ctx, "ws_connect", ip); err != nil {
//		http.Error(w, "rate limited", http.StatusTooManyRequests)
//		return
//	}
package clientip
