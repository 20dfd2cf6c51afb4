package httpqueue

import "strings"

// Header is a single immutable name/value pair. Name equality for lookup is
// case-insensitive, but the original casing is preserved for on-wire replay.
type Header struct {
	Name  string
	Value string
}

// HeaderList is an ordered collection of headers. Unlike a map, it preserves
// insertion order and permits duplicate names, matching the on-wire shape of
// an HTTP header block.
type HeaderList []Header

// Get returns the first value for name (case-insensitive), and whether it
// was present.
func (h HeaderList) Get(name string) (string, bool) {
	for _, kv := range h {
		if strings.EqualFold(kv.Name, name) {
			return kv.Value, true
		}
	}
	return "", false
}

// GetOrEmpty returns the first value for name, or "" if absent.
func (h HeaderList) GetOrEmpty(name string) string {
	v, _ := h.Get(name)
	return v
}

// Set replaces all existing values for name with a single value, appending
// if name was not already present. Case-insensitive.
func (h HeaderList) Set(name, value string) HeaderList {
	out := make(HeaderList, 0, len(h)+1)
	replaced := false
	for _, kv := range h {
		if strings.EqualFold(kv.Name, name) {
			if !replaced {
				out = append(out, Header{Name: name, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, kv)
	}
	if !replaced {
		out = append(out, Header{Name: name, Value: value})
	}
	return out
}

// Clone returns an independent copy of the header list.
func (h HeaderList) Clone() HeaderList {
	out := make(HeaderList, len(h))
	copy(out, h)
	return out
}

// mergeNotModified returns a header list consisting of every header in
// server, plus every header in cached whose name (case-insensitively) does
// not appear in server. Server wins on duplicates. Stable ordering: server
// headers first in their original order, followed by the surviving cached
// headers in their original order. This implements spec.md §4.4 step 5 and
// §8 property 7.
func mergeNotModified(server, cached HeaderList) HeaderList {
	out := make(HeaderList, 0, len(server)+len(cached))
	out = append(out, server...)
	present := make(map[string]bool, len(server))
	for _, kv := range server {
		present[strings.ToLower(kv.Name)] = true
	}
	for _, kv := range cached {
		if !present[strings.ToLower(kv.Name)] {
			out = append(out, kv)
		}
	}
	return out
}

// charsetFromContentType extracts the charset parameter from a Content-Type
// header value, defaulting to ISO-8859-1 for text/* types when absent, per
// spec.md §4.8.
func charsetFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	parts := strings.Split(contentType, ";")
	mediaType := strings.TrimSpace(parts[0])
	for _, param := range parts[1:] {
		param = strings.TrimSpace(param)
		if v, ok := strings.CutPrefix(strings.ToLower(param), "charset="); ok {
			return strings.Trim(v, `"`)
		}
	}
	if strings.HasPrefix(strings.ToLower(mediaType), "text/") {
		return "ISO-8859-1"
	}
	return ""
}
