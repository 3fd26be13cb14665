// Package fence hands out monotonically increasing tokens so that a result
// produced for an older request can be recognised and dropped once a newer
// request for the same logical query has started.
package fence

import "sync/atomic"

type Token uint64

// Fence is safe for concurrent use. The zero value is ready.
type Fence struct {
	seq atomic.Uint64
}

// Next starts a new logical request and invalidates every earlier token.
func (f *Fence) Next() Token {
	return Token(f.seq.Add(1))
}

// Current reports whether t belongs to the most recent request.
func (f *Fence) Current(t Token) bool {
	return t != 0 && uint64(t) == f.seq.Load()
}

// Invalidate makes every outstanding token stale without starting a request.
func (f *Fence) Invalidate() {
	f.seq.Add(1)
}
