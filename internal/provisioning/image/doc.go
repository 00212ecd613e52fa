// Package image resolves the machine image every instance boots from.
//
// An explicit image id is verified against the required architecture. Without
// one, the newest available image owned by the configured accounts that
// matches the name pattern is chosen. Resolution is a pure query: it never
// creates anything.
package image
