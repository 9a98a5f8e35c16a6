// Package auth supplies the application's identity collaborators: a local
// credential store for development and an OAuth2-backed hosted provider,
// both publishing sign-in/sign-out transitions through a Notifier.
package auth

import "sync"

// Identity is the authenticated user context. Consumers treat it as opaque
// beyond UserID.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Listener receives the new identity on sign-in and nil on sign-out
type Listener func(*Identity)

// Notifier fans identity transitions out to subscribers synchronously and
// tracks the current identity.
type Notifier struct {
	mu        sync.Mutex
	listeners map[int]Listener
	next      int
	current   *Identity
}

func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[int]Listener)}
}

// Subscribe registers fn; the returned function cancels the subscription
func (n *Notifier) Subscribe(fn Listener) (cancel func()) {
	n.mu.Lock()
	idx := n.next
	n.next++
	n.listeners[idx] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, idx)
		n.mu.Unlock()
	}
}

// Publish records ident as the current identity and notifies subscribers
func (n *Notifier) Publish(ident *Identity) {
	n.mu.Lock()
	n.current = ident
	listeners := make([]Listener, 0, len(n.listeners))
	for _, fn := range n.listeners {
		listeners = append(listeners, fn)
	}
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(ident)
	}
}

// Current returns the last published identity, nil when signed out
func (n *Notifier) Current() *Identity {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
