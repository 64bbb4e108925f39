package blob

import (
	"testing"
	"time"
)

func TestParseTranscriptKey(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		want    ParsedKey
		wantErr bool
	}{
		{
			name: "work hint",
			key:  "transcripts/work/2024/01/15/mon.txt",
			want: ParsedKey{Hint: "work", Year: "2024", Month: "01", Day: "15", Name: "mon"},
		},
		{
			name: "memories hint",
			key:  "transcripts/memories/2024/07/04/sunset.txt",
			want: ParsedKey{Hint: "memories", Year: "2024", Month: "07", Day: "04", Name: "sunset"},
		},
		{
			name: "unclassified hint",
			key:  "transcripts/unclassified/2024/03/03/mixed.txt",
			want: ParsedKey{Hint: "unclassified", Year: "2024", Month: "03", Day: "03", Name: "mixed"},
		},
		{name: "wrong prefix", key: "outputs/work/2024/01/15/mon.txt", wantErr: true},
		{name: "wrong extension", key: "transcripts/work/2024/01/15/mon.json", wantErr: true},
		{name: "missing segments", key: "transcripts/work/mon.txt", wantErr: true},
		{name: "extra segments", key: "transcripts/work/2024/01/15/16/mon.txt", wantErr: true},
		{name: "empty name", key: "transcripts/work/2024/01/15/.txt", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTranscriptKey(tc.key)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseTranscriptKey(%q) succeeded, want error", tc.key)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTranscriptKey(%q) error = %v", tc.key, err)
			}
			if got != tc.want {
				t.Errorf("ParseTranscriptKey(%q) = %+v, want %+v", tc.key, got, tc.want)
			}
		})
	}
}

func TestOutputKey(t *testing.T) {
	parsed, err := ParseTranscriptKey("transcripts/work/2024/01/15/mon.txt")
	if err != nil {
		t.Fatal(err)
	}
	want := "outputs/work/2024/01/15/mon_response.json"
	if got := parsed.OutputKey(); got != want {
		t.Errorf("OutputKey() = %q, want %q", got, want)
	}
}

func TestJournalKeyUsesISOWeek(t *testing.T) {
	cases := []struct {
		at   time.Time
		want string
	}{
		// 2024-01-15 falls in ISO week 3.
		{time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), "work/weekly_logs/2024-W03.md"},
		// 2023-01-01 belongs to ISO week 52 of 2022.
		{time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), "work/weekly_logs/2022-W52.md"},
		// 2024-12-30 belongs to ISO week 1 of 2025.
		{time.Date(2024, 12, 30, 23, 59, 0, 0, time.UTC), "work/weekly_logs/2025-W01.md"},
	}
	for _, tc := range cases {
		if got := JournalKey(tc.at); got != tc.want {
			t.Errorf("JournalKey(%v) = %q, want %q", tc.at, got, tc.want)
		}
	}
}

func TestMemoryKeyUsesUTCDay(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	at := time.Date(2024, 7, 4, 23, 30, 0, 0, loc)
	if got := MemoryKey(at); got != "memories/2024-07-05.jsonl" {
		t.Errorf("MemoryKey() = %q, want memories/2024-07-05.jsonl", got)
	}
}

func TestErrorKey(t *testing.T) {
	at := time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC)
	want := "errors/2024/03/03/corr-1.json"
	if got := ErrorKey(at, "corr-1"); got != want {
		t.Errorf("ErrorKey() = %q, want %q", got, want)
	}
}

func TestIsTranscriptKey(t *testing.T) {
	if !IsTranscriptKey("transcripts/work/2024/01/15/mon.txt") {
		t.Error("expected transcript key to be accepted")
	}
	if IsTranscriptKey("transcripts/work/2024/01/15/mon.wav") {
		t.Error("expected non-txt key to be rejected")
	}
	if IsTranscriptKey("uploads/work/2024/01/15/mon.txt") {
		t.Error("expected foreign prefix to be rejected")
	}
}
