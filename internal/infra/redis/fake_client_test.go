//go:build !integration

package redis

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type fakeEntry struct {
	val string
	ttl time.Duration
}

type fakeClient struct {
	mu   sync.Mutex
	data map[string]*fakeEntry
	err  error
}

func newFakeClient() *fakeClient { return &fakeClient{data: map[string]*fakeEntry{}} }

func (f *fakeClient) Ping(context.Context) error { return f.err }

func (f *fakeClient) Load(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.data[key]
	if !ok {
		return nil, Nil
	}
	return []byte(e.val), nil
}

func (f *fakeClient) Store(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = &fakeEntry{val: string(value), ttl: ttl}
	return nil
}

func (f *fakeClient) Remove(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.data[key]
	delete(f.data, key)
	return ok, nil
}

func (f *fakeClient) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	e, ok := f.data[key]
	if !ok {
		e = &fakeEntry{val: "0", ttl: window}
		f.data[key] = e
	}
	n, _ := strconv.ParseInt(e.val, 10, 64)
	n++
	e.val = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeClient) Acquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = &fakeEntry{val: token, ttl: ttl}
	return true, nil
}

func (f *fakeClient) Release(_ context.Context, key, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	e, ok := f.data[key]
	if !ok || e.val != token {
		return false, nil
	}
	delete(f.data, key)
	return true, nil
}

func (f *fakeClient) Close() error { return nil }

// expire simulates the TTL running out.
func (f *fakeClient) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
}
