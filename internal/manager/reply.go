package manager

import (
	"encoding/json"
	"strings"
)

// reply holds the envelope fields the remote service uses to report failure
// inside a 2xx response.
type reply struct {
	Success *bool   `json:"success"`
	Loaded  *bool   `json:"loaded"`
	Message string  `json:"message"`
	Error   *string `json:"error"`
	Detail  string  `json:"detail"`
}

// failureMessage returns the failure reported by body, if any. An empty or
// non-object body reports nothing. requireLoaded additionally treats
// "loaded": false as a failure.
func failureMessage(body json.RawMessage, requireLoaded bool) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		return "", false
	}
	failed := r.Success != nil && !*r.Success
	if requireLoaded && r.Loaded != nil && !*r.Loaded {
		failed = true
	}
	if !failed {
		return "", false
	}
	for _, s := range []string{deref(r.Error), r.Detail, r.Message} {
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "remote reported failure", true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
