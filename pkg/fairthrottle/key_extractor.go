package fairthrottle

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// KeyExtractor derives the opaque tenant key a FairThrottle fans out on
// from an incoming HTTP request.
type KeyExtractor func(*http.Request) (string, error)

// ExtractIP returns a KeyExtractor that uses the client's IP address
// (r.RemoteAddr, which includes the port).
func ExtractIP() KeyExtractor {
	return func(r *http.Request) (string, error) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			return "", fmt.Errorf("%w: empty IP address", ErrKeyExtractionFailed)
		}
		return "ip:" + ip, nil
	}
}

// ExtractIPWithProxy returns a KeyExtractor that considers proxy headers
// (X-Forwarded-For, X-Real-IP) before falling back to RemoteAddr.
func ExtractIPWithProxy() KeyExtractor {
	return func(r *http.Request) (string, error) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ips := strings.Split(xff, ",")
			if len(ips) > 0 {
				ip := strings.TrimSpace(ips[0])
				if ip != "" {
					return "ip:" + ip, nil
				}
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return "ip:" + xri, nil
		}

		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			return "", fmt.Errorf("%w: empty IP address", ErrKeyExtractionFailed)
		}
		return "ip:" + ip, nil
	}
}

// ExtractHeader returns a KeyExtractor that uses a specific HTTP header's
// value, e.g. ExtractHeader("X-API-Key").
func ExtractHeader(headerName string) KeyExtractor {
	return func(r *http.Request) (string, error) {
		value := r.Header.Get(headerName)
		if value == "" {
			return "", fmt.Errorf("%w: header %s not found or empty", ErrKeyExtractionFailed, headerName)
		}
		return fmt.Sprintf("header:%s:%s", headerName, value), nil
	}
}

// ExtractBearer returns a KeyExtractor that uses the bearer token from
// the Authorization header ("Authorization: Bearer <token>").
func ExtractBearer() KeyExtractor {
	return func(r *http.Request) (string, error) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			return "", fmt.Errorf("%w: Authorization header not found", ErrKeyExtractionFailed)
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", fmt.Errorf("%w: invalid Authorization header format", ErrKeyExtractionFailed)
		}

		token := parts[1]
		if token == "" {
			return "", fmt.Errorf("%w: empty bearer token", ErrKeyExtractionFailed)
		}
		return "bearer:" + token, nil
	}
}

// ExtractCookie returns a KeyExtractor that uses a specific cookie's
// value, e.g. ExtractCookie("session_id").
func ExtractCookie(cookieName string) KeyExtractor {
	return func(r *http.Request) (string, error) {
		cookie, err := r.Cookie(cookieName)
		if err != nil {
			return "", fmt.Errorf("%w: cookie %s not found: %v", ErrKeyExtractionFailed, cookieName, err)
		}
		if cookie.Value == "" {
			return "", fmt.Errorf("%w: cookie %s has empty value", ErrKeyExtractionFailed, cookieName)
		}
		return fmt.Sprintf("cookie:%s:%s", cookieName, cookie.Value), nil
	}
}

// ExtractStatic returns a KeyExtractor that always returns the same key,
// useful for a single global throttle shared by every caller.
func ExtractStatic(key string) KeyExtractor {
	return func(r *http.Request) (string, error) {
		if key == "" {
			return "", fmt.Errorf("%w: static key is empty", ErrKeyExtractionFailed)
		}
		return key, nil
	}
}

// ExtractComposite returns a KeyExtractor that tries each extractor in
// order and returns the first successful key, e.g. an API-key header
// with an IP fallback.
func ExtractComposite(extractors ...KeyExtractor) KeyExtractor {
	if len(extractors) == 0 {
		return func(r *http.Request) (string, error) {
			return "", fmt.Errorf("%w: no extractors provided", ErrKeyExtractionFailed)
		}
	}

	return func(r *http.Request) (string, error) {
		var lastErr error
		for _, extractor := range extractors {
			key, err := extractor(r)
			if err == nil && key != "" {
				return key, nil
			}
			lastErr = err
		}
		if lastErr != nil {
			return "", fmt.Errorf("%w: all extractors failed: %v", ErrKeyExtractionFailed, lastErr)
		}
		return "", fmt.Errorf("%w: all extractors returned empty key", ErrKeyExtractionFailed)
	}
}

// ParseKeyExtractorConfig builds a KeyExtractor from a configuration
// string: "ip", "ip-proxy", "header:X-API-Key", "bearer",
// "cookie:session_id", or "static:key".
func ParseKeyExtractorConfig(config string) (KeyExtractor, error) {
	parts := strings.SplitN(config, ":", 2)

	switch parts[0] {
	case "ip":
		return ExtractIP(), nil

	case "ip-proxy":
		return ExtractIPWithProxy(), nil

	case "header":
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: header extractor requires format 'header:HeaderName'", ErrInvalidConfig)
		}
		return ExtractHeader(parts[1]), nil

	case "bearer":
		return ExtractBearer(), nil

	case "cookie":
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: cookie extractor requires format 'cookie:CookieName'", ErrInvalidConfig)
		}
		return ExtractCookie(parts[1]), nil

	case "static":
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: static extractor requires format 'static:key'", ErrInvalidConfig)
		}
		return ExtractStatic(parts[1]), nil

	default:
		return nil, fmt.Errorf("%w: unknown key extractor type: %s", ErrInvalidConfig, parts[0])
	}
}
