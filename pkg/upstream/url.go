package upstream

import (
	"net/url"
	"strings"
)

// NormalizePath returns path with a leading slash and without a leading
// "/v3/" segment, so a base URL that already ends in /v3 is never doubled.
func NormalizePath(path string) string {
	p := strings.TrimSpace(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if strings.HasPrefix(p, "/v3/") {
		p = p[len("/v3"):]
	}
	return p
}

// EncodeParams renders params sorted by key, dropping empty values.
func EncodeParams(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	return values.Encode()
}

// CanonicalURL joins base, the normalized path and the encoded params.
// Equal inputs always produce the same string; it doubles as the raw cache key.
func CanonicalURL(base, path string, params map[string]string) string {
	u := strings.TrimRight(base, "/") + NormalizePath(path)
	if q := EncodeParams(params); q != "" {
		u += "?" + q
	}
	return u
}
