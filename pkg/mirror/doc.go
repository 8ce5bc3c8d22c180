// Package mirror implements the Remote Mirror: an optional component
// that stores encrypted vault blobs in a hosted git-style repository
// (via the GitHub Git Data API) and advances a single branch ref to
// record the vault's state, using the same blob/tree/commit/ref
// protocol a manual git push would.
package mirror
