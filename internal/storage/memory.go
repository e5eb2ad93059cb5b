package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
)

func init() {
	Register(BackendMemory, func(cfg config.StorageConfig) (Store, error) {
		return NewMemory(cfg.LocalBaseURL), nil
	})
}

// Memory is an in-process store used by tests.
type Memory struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]memObject
	puts    int

	// FailPut, when set, is returned by Put for matching keys.
	FailPut func(key string) error
	// FailDelete, when set, is returned by every Delete.
	FailDelete error
}

type memObject struct {
	data []byte
	opts PutOptions
}

func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "https://cdn.test"
	}
	return &Memory{baseURL: baseURL, objects: map[string]memObject{}}
}

func (m *Memory) Name() Backend { return BackendMemory }

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) (Object, error) {
	if m.FailPut != nil {
		if err := m.FailPut(key); err != nil {
			return Object{}, err
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Object{}, err
	}
	m.mu.Lock()
	m.objects[key] = memObject{data: data, opts: opts}
	m.puts++
	m.mu.Unlock()
	return Object{Key: key, URL: m.PublicURL(key), Size: int64(len(data))}, nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if m.FailDelete != nil {
		return m.FailDelete
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) PublicURL(key string) string { return joinURL(m.baseURL, key) }

func (m *Memory) PresignPut(ctx context.Context, key string, expires time.Duration) (string, error) {
	return m.PublicURL(key) + "?X-Amz-Expires=" + expires.String(), nil
}

// Get returns a stored object's bytes.
func (m *Memory) Get(key string) ([]byte, PutOptions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, PutOptions{}, errors.New("not found")
	}
	return bytes.Clone(o.data), o.opts, nil
}

func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts counts successful writes, including overwrites.
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
