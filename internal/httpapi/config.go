package httpapi

import "net/http"

const defaultMaxBodyBytes int64 = 1 << 20

// maxBodyBytes caps JSON request bodies.
var maxBodyBytes = defaultMaxBodyBytes

// SetMaxBodyBytes sets the body cap; n <= 0 restores the default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		n = defaultMaxBodyBytes
	}
	maxBodyBytes = n
}

// corsConfig is opt-in. When disabled no CORS middleware is installed.
type corsConfig struct {
	enabled bool
	origins []string
	methods []string
	headers []string
}

var corsCfg corsConfig

// SetCORSOptions configures CORS for muxes built afterwards. Empty methods or
// headers fall back to what the API uses.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	c := corsConfig{
		enabled: enabled,
		origins: append([]string(nil), origins...),
		methods: append([]string(nil), methods...),
		headers: append([]string(nil), headers...),
	}
	if len(c.methods) == 0 {
		c.methods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	}
	if len(c.headers) == 0 {
		c.headers = []string{"Accept", "Content-Type", "X-Request-Id"}
	}
	corsCfg = c
}
