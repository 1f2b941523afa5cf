// Package delivery hosts the cache coordinator: the request state machine
// deciding, per (key, id, bitrate) request, whether a cached base artifact or
// bitrate variant can be served, when to fetch from the origin (and through
// which proxy), when to invoke the transcoder, and which redirect target to
// hand to the web layer. Partial failures degrade gracefully: transcoding and
// tag writing are best-effort, origin failures surface as not-found, and only
// a failed alias/upload step is an internal error.
package delivery
