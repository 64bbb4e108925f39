package blob

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/haasonsaas/scribe/internal/errkind"
)

// MemStore is an in-memory Store with the same conditional-write semantics as
// the S3 adapter. It backs tests and the one-shot local processing path.
type MemStore struct {
	mu            sync.Mutex
	objects       map[string]*memObject
	appendRetries int

	// FailNextAppends forces the next N conditional puts to fail with a
	// precondition error, exercising the retry loop in tests.
	failAppends int
}

type memObject struct {
	data    []byte
	version int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		objects:       make(map[string]*memObject),
		appendRetries: DefaultAppendRetries,
	}
}

// FailNextAppends makes the next n conditional writes fail as if a concurrent
// writer had won the race.
func (m *MemStore) FailNextAppends(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAppends = n
}

// Get fetches an object's contents.
func (m *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errkind.Wrap(errkind.Timeout, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

// Put overwrites an object.
func (m *MemStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return errkind.Wrap(errkind.Timeout, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	if obj, ok := m.objects[key]; ok {
		obj.data = stored
		obj.version++
	} else {
		m.objects[key] = &memObject{data: stored, version: 1}
	}
	return nil
}

// AppendLine appends under the same read-modify-write discipline as S3Store.
func (m *MemStore) AppendLine(ctx context.Context, key, line string) error {
	line = terminateLine(line)

	for attempt := 1; attempt <= m.appendRetries; attempt++ {
		current, version, found := m.snapshot(key)

		var err error
		if !found {
			err = m.putIfAbsent(key, []byte(line))
		} else {
			err = m.putIfVersion(key, append(current, line...), version)
		}

		if err == nil {
			return nil
		}
		if !errors.Is(err, errPrecondition) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return errkind.Wrap(errkind.Timeout, err)
		}
	}
	return errkind.Newf(errkind.Conflict, "append to %q: retries exhausted after %d attempts", key, m.appendRetries)
}

func (m *MemStore) snapshot(key string) ([]byte, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, 0, false
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, obj.version, true
}

func (m *MemStore) putIfAbsent(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppends > 0 {
		m.failAppends--
		return errPrecondition
	}
	if _, ok := m.objects[key]; ok {
		return errPrecondition
	}
	m.objects[key] = &memObject{data: data, version: 1}
	return nil
}

func (m *MemStore) putIfVersion(key string, data []byte, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppends > 0 {
		m.failAppends--
		return errPrecondition
	}
	obj, ok := m.objects[key]
	if !ok || obj.version != version {
		return errPrecondition
	}
	obj.data = data
	obj.version++
	return nil
}

// List returns the keys under a prefix in lexical order.
func (m *MemStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errkind.Wrap(errkind.Timeout, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Head checks object existence.
func (m *MemStore) Head(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return errkind.Wrap(errkind.Timeout, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	return nil
}
