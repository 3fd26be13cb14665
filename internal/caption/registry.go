package caption

import (
	"context"
	"sync"
)

type registryKey struct {
	sessionID string
	lang      string
}

type registryEntry struct {
	client *Client
	refs   int
}

// Registry shares one Client per (session, language) between consumers. The
// client's buffer has a single writer, the stream reader, and any number of
// readers through Captions.
type Registry struct {
	base    context.Context
	newOpts func() Options

	mu      sync.Mutex
	entries map[registryKey]*registryEntry
}

// NewRegistry creates clients with opts. Subscriptions live until released
// or until base ends.
func NewRegistry(base context.Context, opts func() Options) *Registry {
	return &Registry{base: base, newOpts: opts, entries: make(map[registryKey]*registryEntry)}
}

// Acquire returns the shared client for the pair, subscribing on first use.
// A pair that already exists keeps its original transport.
func (r *Registry) Acquire(sessionID, lang string, kind Kind) (*Client, error) {
	key := registryKey{sessionID: sessionID, lang: lang}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		e.refs++
		if !e.client.Connected() {
			// explicit re-acquire is the manual reconnect
			if err := e.client.Connect(r.base); err != nil {
				e.refs--
				return nil, err
			}
		}
		return e.client, nil
	}

	client := NewClient(r.newOpts())
	if err := client.Subscribe(r.base, sessionID, lang, kind); err != nil {
		return nil, err
	}
	r.entries[key] = &registryEntry{client: client, refs: 1}
	return client, nil
}

func (r *Registry) Get(sessionID, lang string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[registryKey{sessionID: sessionID, lang: lang}]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// Release drops one reference and disconnects when none remain. It reports
// whether the pair was known.
func (r *Registry) Release(sessionID, lang string) bool {
	key := registryKey{sessionID: sessionID, lang: lang}

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return false
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return true
	}
	delete(r.entries, key)
	r.mu.Unlock()

	e.client.Disconnect()
	return true
}

// Close disconnects every client.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[registryKey]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.client.Disconnect()
	}
}
