// Package ipc implements the sidecar's standard input/output protocol.
//
// Input is one JSON object per line. Each request carries an opaque req_id
// that is echoed verbatim on the matching response. Request fields are kept
// as raw JSON so handlers can tell an absent field from null, false, 0 or the
// empty string, all of which count as missing.
//
// Output is one JSON object per line, written atomically by [Writer] so
// concurrently finishing requests never interleave.
package ipc
