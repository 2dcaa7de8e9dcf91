package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	secret, err := LoadOrCreateSecret(filepath.Join(dir, "device.secret"))
	require.NoError(t, err)
	key, err := DeriveAuditKey(secret)
	require.NoError(t, err)

	s, err := Open(filepath.Join(dir, "audit.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// Chain recording and verification
// =============================================================================

func TestRecordAndVerifyChain(t *testing.T) {
	s := openTestStore(t)

	sequences := []string{"TLTRBR", "BLBLTL", "TLTRBR"}
	for _, seq := range sequences {
		_, err := s.RecordMatch(seq, SourceTouch)
		require.NoError(t, err)
	}

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(len(sequences)), n)

	require.NoError(t, s.VerifyChain())

	matches, err := s.Matches(0)
	require.NoError(t, err)
	require.Len(t, matches, len(sequences))

	// Newest first.
	assert.Equal(t, int64(3), matches[0].ID)
	assert.Equal(t, "TLTRBR", matches[0].Sequence)
}

func TestChainLinkage(t *testing.T) {
	s := openTestStore(t)

	first, err := s.RecordMatch("TLTRBR", SourceTouch)
	require.NoError(t, err)
	second, err := s.RecordMatch("BLBLTL", SourceInject)
	require.NoError(t, err)

	assert.Equal(t, first.HMAC, second.PrevHMAC, "second record must link to the first")
	assert.NotEqual(t, first.PrevHMAC, first.HMAC, "first record's HMAC must differ from genesis")
}

func TestChainContinuesAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	secret, err := LoadOrCreateSecret(filepath.Join(dir, "device.secret"))
	require.NoError(t, err)
	key, err := DeriveAuditKey(secret)
	require.NoError(t, err)
	path := filepath.Join(dir, "audit.db")

	s, err := Open(path, key)
	require.NoError(t, err)
	_, err = s.RecordMatch("TLTRBR", SourceTouch)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, key)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.RecordMatch("BLBLTL", SourceTouch)
	require.NoError(t, err)
	assert.NoError(t, s.VerifyChain())
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	s := openTestStore(t)

	_, err := s.RecordMatch("TLTRBR", SourceTouch)
	require.NoError(t, err)
	_, err = s.RecordMatch("BLBLTL", SourceTouch)
	require.NoError(t, err)

	_, err = s.db.Exec(`UPDATE matches SET sequence = 'BRBRBR' WHERE id = 1`)
	require.NoError(t, err)

	assert.ErrorIs(t, s.VerifyChain(), ErrChainBroken)
}

func TestVerifyChainDetectsDeletion(t *testing.T) {
	s := openTestStore(t)

	for _, seq := range []string{"TLTRBR", "BLBLTL", "BRBRTL"} {
		_, err := s.RecordMatch(seq, SourceTouch)
		require.NoError(t, err)
	}

	_, err := s.db.Exec(`DELETE FROM matches WHERE id = 2`)
	require.NoError(t, err)

	assert.ErrorIs(t, s.VerifyChain(), ErrChainBroken)
}

func TestOpenRejectsShortKey(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "audit.db"), []byte("short"))
	assert.Error(t, err)
}

// =============================================================================
// Device secret
// =============================================================================

func TestSecretPersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.secret")

	first, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	second, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSecretRejectsWrongLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.secret")
	require.NoError(t, os.WriteFile(path, []byte("truncated"), 0600))

	_, err := LoadOrCreateSecret(path)
	assert.Error(t, err)
}

func TestDeriveAuditKeyDeterministic(t *testing.T) {
	secret := bytes.Repeat([]byte{0xA5}, secretSize)

	k1, err := DeriveAuditKey(secret)
	require.NoError(t, err)
	k2, err := DeriveAuditKey(secret)
	require.NoError(t, err)

	assert.Equal(t, k1, k2, "derivation must be deterministic")
	assert.NotEqual(t, secret, k1, "derived key must differ from the raw secret")
}

// =============================================================================
// Report export
// =============================================================================

func TestExportReportValidatesAgainstSchema(t *testing.T) {
	s := openTestStore(t)

	for _, seq := range []string{"TLTRBR", "BLBLTLBR"} {
		_, err := s.RecordMatch(seq, SourceTouch)
		require.NoError(t, err)
	}

	data, err := s.ExportReport()
	require.NoError(t, err)
	assert.NoError(t, ValidateReport(data))
}

func TestValidateReportRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{{`},
		{"missing fields", `{"version": 1}`},
		{"bad source", `{
			"version": 1,
			"generated_at": "2026-01-02T03:04:05Z",
			"chain_ok": true,
			"matches": [{
				"id": 1,
				"timestamp": "2026-01-02T03:04:05Z",
				"sequence": "TLTRBR",
				"source": "keyboard",
				"prev_hmac": "0000000000000000000000000000000000000000000000000000000000000000",
				"hmac": "0000000000000000000000000000000000000000000000000000000000000000"
			}]
		}`},
		{"odd sequence", `{
			"version": 1,
			"generated_at": "2026-01-02T03:04:05Z",
			"chain_ok": true,
			"matches": [{
				"id": 1,
				"timestamp": "2026-01-02T03:04:05Z",
				"sequence": "TLT",
				"source": "touch",
				"prev_hmac": "0000000000000000000000000000000000000000000000000000000000000000",
				"hmac": "0000000000000000000000000000000000000000000000000000000000000000"
			}]
		}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, ValidateReport([]byte(tc.data)), tc.name)
		})
	}
}
