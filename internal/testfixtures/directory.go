package testfixtures

import (
	"context"
	"sync"

	"github.com/fleetconsole/console/internal/visibility"
)

// Directory serves a fixed user table. ListByClient filters on the server
// side the way a scoped backend endpoint would.
type Directory struct {
	mu    sync.Mutex
	Users []visibility.User
	Err   error

	AllCalls    int
	ClientCalls []string
}

func (d *Directory) ListAll(ctx context.Context) ([]visibility.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.AllCalls++
	if d.Err != nil {
		return nil, d.Err
	}
	return append([]visibility.User(nil), d.Users...), nil
}

func (d *Directory) ListByClient(ctx context.Context, clientID string) ([]visibility.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ClientCalls = append(d.ClientCalls, clientID)
	if d.Err != nil {
		return nil, d.Err
	}
	var out []visibility.User
	// Reverse order so callers cannot rely on the directory's ordering.
	for i := len(d.Users) - 1; i >= 0; i-- {
		if d.Users[i].ClientID == clientID {
			out = append(out, d.Users[i])
		}
	}
	return out, nil
}
