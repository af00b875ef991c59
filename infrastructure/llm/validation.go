package llm

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateBaseURL validates and normalizes a bot endpoint URL.
// The URL must carry an http or https scheme and a host; a trailing
// slash is stripped so providers can append their path segments
// consistently. An empty string is valid and means "use the provider's
// default endpoint".
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return strings.TrimRight(parsed.String(), "/"), nil
}
