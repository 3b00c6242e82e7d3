package blob

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Memory is an in-process Store for tests.
type Memory struct {
	mu         sync.Mutex
	Objects    map[string][]byte
	Deleted    []string
	ShouldFail bool
}

func NewMemory() *Memory {
	return &Memory{Objects: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	if m.ShouldFail {
		return "", errors.New("mock blob put failed")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = data
	return key, nil
}

func (m *Memory) Delete(_ context.Context, ref string) error {
	if m.ShouldFail {
		return errors.New("mock blob delete failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, ref)
	m.Deleted = append(m.Deleted, ref)
	return nil
}

func (m *Memory) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return "mem://" + ref
}

// Has reports whether ref is currently stored.
func (m *Memory) Has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Objects[ref]
	return ok
}
