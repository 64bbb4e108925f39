package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/haasonsaas/scribe/internal/errkind"
)

func TestMemStoreGetPutRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := store.Put(ctx, "a/b.txt", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := store.Get(ctx, "a/b.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Get() = %q, want hello", got)
	}
}

func TestAppendLineCreatesAndAppends(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	if err := store.AppendLine(ctx, "log.jsonl", `{"n":1}`); err != nil {
		t.Fatalf("AppendLine() error = %v", err)
	}
	if err := store.AppendLine(ctx, "log.jsonl", `{"n":2}`); err != nil {
		t.Fatalf("AppendLine() error = %v", err)
	}

	data, err := store.Get(ctx, "log.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	want := "{\"n\":1}\n{\"n\":2}\n"
	if string(data) != want {
		t.Errorf("object = %q, want %q", data, want)
	}
}

func TestAppendLineConcurrentWritersLoseNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	const writers = 24
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.AppendLine(ctx, "work/weekly_logs/2024-W03.md", fmt.Sprintf("entry-%02d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("writer %d: AppendLine() error = %v", i, err)
		}
	}

	data, err := store.Get(ctx, "work/weekly_logs/2024-W03.md")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != writers {
		t.Fatalf("journal has %d lines, want %d", len(lines), writers)
	}
	seen := make(map[string]bool, writers)
	for _, line := range lines {
		seen[line] = true
	}
	for i := 0; i < writers; i++ {
		if !seen[fmt.Sprintf("entry-%02d", i)] {
			t.Errorf("entry-%02d lost", i)
		}
	}
}

func TestAppendLineRetriesThenConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	// A handful of induced collisions is absorbed by the retry loop.
	store.FailNextAppends(3)
	if err := store.AppendLine(ctx, "k", "line"); err != nil {
		t.Fatalf("AppendLine() with 3 collisions error = %v", err)
	}

	// More collisions than retries surfaces as a conflict.
	store.FailNextAppends(DefaultAppendRetries + 1)
	err := store.AppendLine(ctx, "k", "line")
	if !errkind.Is(err, errkind.Conflict) {
		t.Errorf("AppendLine() error = %v, want conflict kind", err)
	}
}

func TestListReturnsPrefixedKeysSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	for _, key := range []string{"memories/2024-07-05.jsonl", "memories/2024-07-04.jsonl", "github/history.jsonl"} {
		if err := store.Put(ctx, key, []byte("x"), ""); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := store.List(ctx, "memories/")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"memories/2024-07-04.jsonl", "memories/2024-07-05.jsonl"}
	if len(keys) != len(want) {
		t.Fatalf("List() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestHead(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	if err := store.Head(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Head(nope) error = %v, want ErrNotFound", err)
	}
	if err := store.Put(ctx, "yes", []byte("x"), ""); err != nil {
		t.Fatal(err)
	}
	if err := store.Head(ctx, "yes"); err != nil {
		t.Errorf("Head(yes) error = %v", err)
	}
}
