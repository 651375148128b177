package testfixtures

import "sync"

// Navigator records redirects.
type Navigator struct {
	mu        sync.Mutex
	redirects []string
}

func (n *Navigator) Redirect(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, route)
}

// Redirects returns every route redirected to, in order.
func (n *Navigator) Redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.redirects...)
}
