package blob

import (
	"fmt"
	"strings"
	"time"
)

// HistoryKey is the repository processor's idempotency ledger.
const HistoryKey = "github/history.jsonl"

// transcriptPrefix and transcriptSuffix bound the keys the router accepts.
const (
	transcriptPrefix = "transcripts/"
	transcriptSuffix = ".txt"
)

// ParsedKey is a decomposed transcript object key of the form
// transcripts/<hint>/<yyyy>/<mm>/<dd>/<name>.txt. The date path is advisory;
// the orchestrator derives its own timestamps.
type ParsedKey struct {
	Hint  string
	Year  string
	Month string
	Day   string
	Name  string
}

// IsTranscriptKey reports whether a key belongs to the router at all. Keys
// outside transcripts/*.txt are acknowledged and ignored upstream.
func IsTranscriptKey(key string) bool {
	return strings.HasPrefix(key, transcriptPrefix) && strings.HasSuffix(key, transcriptSuffix)
}

// ParseTranscriptKey decomposes a transcript key. It rejects keys that do not
// match the six-segment layout exactly.
func ParseTranscriptKey(key string) (ParsedKey, error) {
	if !IsTranscriptKey(key) {
		return ParsedKey{}, fmt.Errorf("not a transcript key: %q", key)
	}
	parts := strings.Split(key, "/")
	if len(parts) != 6 {
		return ParsedKey{}, fmt.Errorf("malformed transcript key: %q", key)
	}
	name := strings.TrimSuffix(parts[5], transcriptSuffix)
	if parts[1] == "" || name == "" {
		return ParsedKey{}, fmt.Errorf("malformed transcript key: %q", key)
	}
	return ParsedKey{
		Hint:  parts[1],
		Year:  parts[2],
		Month: parts[3],
		Day:   parts[4],
		Name:  name,
	}, nil
}

// OutputKey is where the aggregate result for this transcript is persisted.
func (p ParsedKey) OutputKey() string {
	return fmt.Sprintf("outputs/%s/%s/%s/%s/%s_response.json", p.Hint, p.Year, p.Month, p.Day, p.Name)
}

// JournalKey returns the shared weekly journal object for t, keyed by ISO week.
func JournalKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("work/weekly_logs/%s.md", ISOWeek(year, week))
}

// ISOWeek formats an ISO year/week pair as e.g. "2024-W03".
func ISOWeek(year, week int) string {
	return fmt.Sprintf("%d-W%02d", year, week)
}

// MemoryKey returns the shared daily memory object for the UTC calendar day
// of t.
func MemoryKey(t time.Time) string {
	return fmt.Sprintf("memories/%s.jsonl", t.UTC().Format("2006-01-02"))
}

// ErrorKey is where a fatal orchestrator failure is recorded, partitioned by
// UTC day.
func ErrorKey(t time.Time, correlationID string) string {
	return fmt.Sprintf("errors/%s/%s.json", t.UTC().Format("2006/01/02"), correlationID)
}
