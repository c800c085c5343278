package api

import "sync"

// TokenSource holds the auth token for backend requests and notifies
// subscribers when it changes (after a re-login elsewhere in the app).
// It is injected explicitly wherever needed; there is no package-level
// singleton.
type TokenSource struct {
	mu    sync.RWMutex
	token string
	subs  map[int]func(string)
	next  int
}

// NewTokenSource creates a TokenSource with an initial token, which may be empty.
func NewTokenSource(initial string) *TokenSource {
	return &TokenSource{token: initial, subs: make(map[int]func(string))}
}

// Token returns the current token.
func (t *TokenSource) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// Set replaces the token and notifies all subscribers.
func (t *TokenSource) Set(token string) {
	t.mu.Lock()
	t.token = token
	subs := make([]func(string), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(token)
	}
}

// Subscribe registers a callback invoked on every token change. The returned
// function removes the subscription.
func (t *TokenSource) Subscribe(fn func(string)) func() {
	t.mu.Lock()
	id := t.next
	t.next++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}
