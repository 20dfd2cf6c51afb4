package httpqueue

import "strings"

// cacheControl is a parsed Cache-Control directive set: directive name to
// value (empty string for valueless directives such as no-cache).
type cacheControl map[string]string

// parseCacheControl parses the Cache-Control header from a response header
// list. Duplicate directives keep their first occurrence, matching RFC 9111
// guidance; this is a direct port of the teacher's parseCacheControl,
// re-targeted at HeaderList instead of http.Header.
func parseCacheControl(headers HeaderList) cacheControl {
	cc := cacheControl{}
	raw, _ := headers.Get("Cache-Control")
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var directive, value string
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			directive = strings.TrimSpace(part[:idx])
			value = strings.TrimSpace(part[idx+1:])
		} else {
			directive = part
		}
		directive = strings.ToLower(directive)
		if _, seen := cc[directive]; seen {
			continue
		}
		cc[directive] = value
	}
	return cc
}

func (cc cacheControl) has(directive string) bool {
	_, ok := cc[directive]
	return ok
}

func (cc cacheControl) noStore() bool {
	return cc.has("no-store")
}

func (cc cacheControl) noCache() bool {
	return cc.has("no-cache")
}
