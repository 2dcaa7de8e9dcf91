// Package store provides the SQLite-backed audit trail of completed knock
// sequences.
//
// Security model:
//  1. File permissions: 0600 (owner read/write only)
//  2. Integrity: each record carries an HMAC over its fields
//  3. Chain linking: each record's HMAC covers the previous record's HMAC,
//     so deleting or reordering rows breaks verification
//
// Every admin-panel unlock on a kiosk leaves a row here; the chain makes a
// trimmed or edited trail detectable.
package store

// Match is one completed knock sequence.
type Match struct {
	ID          int64  `json:"id"`
	TimestampNs int64  `json:"timestamp_ns"`
	Sequence    string `json:"sequence"`
	Source      string `json:"source"`
	PrevHMAC    []byte `json:"prev_hmac"`
	HMAC        []byte `json:"hmac"`
}

// Known match sources.
const (
	SourceTouch  = "touch"  // the live pointer stream
	SourceInject = "inject" // events injected over IPC for testing
	SourceDemo   = "demo"   // the demo window
)
