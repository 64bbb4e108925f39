package agents

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/haasonsaas/scribe/internal/blob"
)

// LedgerReport summarizes a scan of the repository idempotency ledger.
type LedgerReport struct {
	Records         int      `json:"records"`
	MalformedLines  []int    `json:"malformed_lines,omitempty"`
	DuplicateHashes []string `json:"duplicate_hashes,omitempty"`
}

// Clean reports whether the ledger has no defects.
func (r LedgerReport) Clean() bool {
	return len(r.MalformedLines) == 0 && len(r.DuplicateHashes) == 0
}

// VerifyLedger scans every ledger object under github/ and reports malformed
// lines and duplicate transcript hashes. A duplicate hash means two deliveries
// both passed the dedup check, which the append discipline should prevent.
func VerifyLedger(ctx context.Context, store blob.Store) (LedgerReport, error) {
	keys, err := store.List(ctx, "github/")
	if err != nil {
		return LedgerReport{}, err
	}

	report := LedgerReport{}
	seen := map[string]bool{}
	flagged := map[string]bool{}
	for _, key := range keys {
		if !strings.HasSuffix(key, ".jsonl") {
			continue
		}
		data, err := store.Get(ctx, key)
		if errors.Is(err, blob.ErrNotFound) {
			continue
		}
		if err != nil {
			return LedgerReport{}, err
		}

		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var record HistoryRecord
			if err := json.Unmarshal(line, &record); err != nil || record.TranscriptHash == "" {
				report.MalformedLines = append(report.MalformedLines, lineNo)
				continue
			}
			report.Records++
			if seen[record.TranscriptHash] && !flagged[record.TranscriptHash] {
				report.DuplicateHashes = append(report.DuplicateHashes, record.TranscriptHash)
				flagged[record.TranscriptHash] = true
			}
			seen[record.TranscriptHash] = true
		}
		if err := scanner.Err(); err != nil {
			return LedgerReport{}, err
		}
	}
	return report, nil
}
