package api

import (
	"fmt"
	"net/url"
	"strings"
)

// requiredParam returns the named query parameter or an error naming it.
func requiredParam(q url.Values, name string) (string, error) {
	if !q.Has(name) {
		return "", fmt.Errorf("query parameter %q is required", name)
	}
	return q.Get(name), nil
}

// boolParam parses an optional boolean query parameter. It accepts the
// spellings HTTP automation clients commonly send: true/false, 1/0,
// yes/no, on/off, case-insensitively.
func boolParam(q url.Values, name string, def bool) (bool, error) {
	if !q.Has(name) {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(q.Get(name))) {
	case "true", "1", "yes", "on", "t", "y":
		return true, nil
	case "false", "0", "no", "off", "f", "n":
		return false, nil
	default:
		return false, fmt.Errorf("query parameter %q: %q is not a valid boolean", name, q.Get(name))
	}
}
