package structured

import (
	"regexp"
	"strings"
)

var schemeRE = regexp.MustCompile(`^(\w+)://`)

// InferProtocol extracts the lower-cased scheme of a "scheme://..." URI.
// ok is false when uri has no such prefix.
func InferProtocol(uri string) (protocol string, ok bool) {
	m := schemeRE.FindStringSubmatch(uri)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}
