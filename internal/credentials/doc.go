// Package credentials is the single source of truth for a channel's authorization state.
//
// # Layout
//
// Each channel owns a folder below the store root:
//
//	<root>/<category>/<name>/client_secret.json
//	<root>/<category>/<name>/token.json
//
// # Classification
//
// [Store.Classify] reads both files and returns a [Classification], a closed set of outcomes each carrying only the
// data that applies to it. The only network call it makes is a refresh, and only when the record is expired and holds a
// refresh token. A failed refresh is reported as [Expired] with an error wrapping [shared.ErrRefreshFailed], so a
// revoked grant is distinguishable from a record that simply had no refresh token.
//
// # Writes
//
// [Store.Persist] replaces token.json atomically (temp file, fsync, rename), so concurrent readers see either the old
// record or the new one. Concurrent refreshes for one channel collapse into a single request through
// [singleflight.Group].
package credentials
