package logger

import (
	"net/http"
	"sort"
	"strings"
)

// Headers carrying credentials are never logged verbatim.
var sensitiveHeaders = []string{"authorization", "x-api-key", "x-user-signature"}

func isSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveHeaders {
		if lower == s {
			return true
		}
	}
	return false
}

// SafeHeaders renders request headers as "k=v; k=v" in stable order, with
// credential values replaced by a marker.
func SafeHeaders(r *http.Request) string {
	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		v := r.Header.Get(k)
		if isSensitiveHeader(k) && v != "" {
			v = "<redacted>"
		}
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

// LogRequest logs a concise, safe summary of an incoming request.
func LogRequest(r *http.Request) {
	Debug("incoming_request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
		"headers", SafeHeaders(r),
	)
}
