package analyze

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```json\n(.*?)\n```")

// ExtractJSON finds a JSON document in a model reply. It tries, in order, the
// first ```json fenced block, the span from the first '{' to the last '}',
// and finally the whole string. Each candidate must parse to be accepted.
func ExtractJSON(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	if m := fencedJSON.FindStringSubmatch(s); m != nil && m[1] != "" {
		if json.Valid([]byte(m[1])) {
			return m[1], true
		}
	}
	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first != -1 && last > first {
		candidate := s[first : last+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	if json.Valid([]byte(s)) {
		return s, true
	}
	return "", false
}
