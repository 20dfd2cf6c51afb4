// Package httpqueue provides a prioritized, cancelable, cache-coherent
// request dispatch pipeline for client-side RPC-style HTTP traffic.
//
// A Queue accepts Requests, assigns them a monotonic sequence number, and
// routes each through a disk-backed, RFC 7234-flavored response cache before
// (or instead of) issuing it over the network. Requests are coalesced by
// cache key so that concurrent callers asking for the same resource share a
// single network fetch, and can be bulk-canceled by an opaque tag without
// ever invoking a listener callback.
//
// The package does not supply an HTTP transport; callers provide one that
// implements HTTPStack. Response parsing is likewise supplied per request
// via the ResponseParser interface.
package httpqueue
