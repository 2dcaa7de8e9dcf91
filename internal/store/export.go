package store

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/audit-report-v1.schema.json
var reportSchema []byte

// Report is an exported audit trail, suitable for handing to whoever reviews
// kiosk admin access.
type Report struct {
	Version     int           `json:"version"`
	GeneratedAt time.Time     `json:"generated_at"`
	ChainOK     bool          `json:"chain_ok"`
	Matches     []ReportMatch `json:"matches"`
}

// ReportMatch is a Match with HMACs hex-encoded for transport.
type ReportMatch struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Sequence  string `json:"sequence"`
	Source    string `json:"source"`
	PrevHMAC  string `json:"prev_hmac"`
	HMAC      string `json:"hmac"`
}

// ExportReport serializes the full audit trail, including a chain
// verification verdict, as JSON.
func (s *Store) ExportReport() ([]byte, error) {
	matches, err := s.Matches(0)
	if err != nil {
		return nil, err
	}

	report := Report{
		Version:     1,
		GeneratedAt: time.Now().UTC(),
		ChainOK:     s.VerifyChain() == nil,
		Matches:     make([]ReportMatch, 0, len(matches)),
	}
	for _, m := range matches {
		report.Matches = append(report.Matches, ReportMatch{
			ID:        m.ID,
			Timestamp: time.Unix(0, m.TimestampNs).UTC().Format(time.RFC3339Nano),
			Sequence:  m.Sequence,
			Source:    m.Source,
			PrevHMAC:  hex.EncodeToString(m.PrevHMAC),
			HMAC:      hex.EncodeToString(m.HMAC),
		})
	}

	return json.MarshalIndent(report, "", "  ")
}

// ValidateReport checks an exported report against the embedded schema.
// Used by cornerknockctl before trusting a report from another device.
func ValidateReport(data []byte) error {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("report is not JSON: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("audit-report-v1.schema.json", bytes.NewReader(reportSchema)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("audit-report-v1.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("report schema validation: %w", err)
	}
	return nil
}
