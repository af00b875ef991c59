package llm

// options.go contains helpers for extracting per-call settings from the
// generic options map shared by all providers.

// DefaultMaxTokens caps generation when a call supplies no explicit
// max_tokens option.
const DefaultMaxTokens = 150

// RequestOptions is the standardized set of per-call parameters.
type RequestOptions struct {
	// MaxTokens caps the number of tokens generated.
	MaxTokens int
	// Model overrides the provider's configured model for this call.
	Model string
	// Temperature controls output randomness; nil uses the backend's
	// default.
	Temperature *float64
}

// ParseRequestOptions extracts standardized parameters from an options
// map, falling back to defaults for missing or ill-typed entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: extractInt(opts, "max_tokens", DefaultMaxTokens),
		Model:     extractString(opts, "model", defaultModel),
	}
	if temp, ok := extractFloat(opts, "temperature"); ok && temp >= 0 && temp <= 2 {
		options.Temperature = &temp
	}
	return options
}

func extractInt(opts map[string]any, key string, defaultVal int) int {
	if opts == nil {
		return defaultVal
	}
	if v, ok := opts[key].(int); ok && v > 0 {
		return v
	}
	return defaultVal
}

func extractString(opts map[string]any, key, defaultVal string) string {
	if opts == nil {
		return defaultVal
	}
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return defaultVal
}

func extractFloat(opts map[string]any, key string) (float64, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// clamp restricts a float64 value to a range.
func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
