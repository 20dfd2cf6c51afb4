package httpqueue

import (
	"strconv"
	"strings"
	"time"
)

const httpDateLayout = time.RFC1123

// parseHTTPDate parses an HTTP-date header value into epoch milliseconds.
// Returns (0, false) if the header is absent or malformed.
func parseHTTPDate(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	t, err := time.Parse(httpDateLayout, value)
	if err != nil {
		// RFC 7231 permits RFC850 and asctime as legacy fallbacks.
		if t2, err2 := time.Parse(time.RFC850, value); err2 == nil {
			t = t2
		} else if t3, err3 := time.Parse(time.ANSIC, value); err3 == nil {
			t = t3
		} else {
			return 0, false
		}
	}
	return t.UnixMilli(), true
}

// formatHTTPDate formats epoch milliseconds as an HTTP-date header value,
// used to build If-Modified-Since on conditional requests (spec.md §4.4).
func formatHTTPDate(epochMs int64) string {
	return time.UnixMilli(epochMs).UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
}

// deltaSeconds parses a Cache-Control directive value as a non-negative
// integer number of seconds. Returns (0, false) on any parse failure.
func deltaSeconds(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// buildCacheEntry computes the freshness attributes of a CacheEntry from
// response headers, per spec.md §4.8. now is the current instant in epoch
// milliseconds, captured once by the caller. Returns (entry, cacheable);
// cacheable is false when Cache-Control forbids storage and the caller must
// not write the response to the cache.
func buildCacheEntry(headers HeaderList, body []byte, now int64) (*CacheEntry, bool) {
	cc := parseCacheControl(headers)
	if cc.noCache() || cc.noStore() {
		return nil, false
	}

	serverDate, ok := parseHTTPDate(headers.GetOrEmpty("Date"))
	if !ok {
		serverDate = now
	}
	lastModified, _ := parseHTTPDate(headers.GetOrEmpty("Last-Modified"))

	entry := &CacheEntry{
		Data:            body,
		ETag:            headers.GetOrEmpty("ETag"),
		ServerDate:      serverDate,
		LastModified:    lastModified,
		ResponseHeaders: headers.Clone(),
	}

	switch {
	case cc.has("max-age"):
		delta, ok := deltaSeconds(cc["max-age"])
		if !ok {
			delta = 0
		}
		entry.SoftTTL = now + delta*1000
		entry.TTL = entry.SoftTTL
		if swr, present := cc["stale-while-revalidate"]; present {
			if swrDelta, ok := deltaSeconds(swr); ok {
				entry.TTL = entry.SoftTTL + swrDelta*1000
			}
		}
		if cc.has("must-revalidate") || cc.has("proxy-revalidate") {
			entry.TTL = entry.SoftTTL
		}
	default:
		if expires := headers.GetOrEmpty("Expires"); expires != "" {
			if expiresMs, ok := parseHTTPDate(expires); ok {
				lifetime := expiresMs - serverDate
				if lifetime < 0 {
					lifetime = 0
				}
				entry.SoftTTL = now + lifetime
				entry.TTL = entry.SoftTTL
				if cc.has("must-revalidate") || cc.has("proxy-revalidate") {
					entry.TTL = entry.SoftTTL
				}
				break
			}
		}
		// Neither max-age nor Expires: cached but immediately stale, forcing
		// conditional revalidation on every subsequent use.
		entry.SoftTTL = 0
		entry.TTL = 0
	}

	return entry, true
}

// charset returns the charset of a cached entry's original response,
// derived from its Content-Type header.
func (e *CacheEntry) charset() string {
	return charsetFromContentType(e.ResponseHeaders.GetOrEmpty(strings.ToLower("Content-Type")))
}
