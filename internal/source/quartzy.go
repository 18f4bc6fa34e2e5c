package source

import (
	"context"
	"sync"

	"github.com/gallowaylab/plasmiddb/internal/plasmid"
	"github.com/gallowaylab/plasmiddb/internal/quartzy"
)

// Quartzy adapts a quartzy.Client to Source, logging in once before the
// first fetch.
type Quartzy struct {
	client *quartzy.Client

	mu       sync.Mutex
	loggedIn bool
}

// NewQuartzy wraps client.
func NewQuartzy(client *quartzy.Client) *Quartzy {
	return &Quartzy{client: client}
}

func (q *Quartzy) login(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.loggedIn {
		return nil
	}
	if err := q.client.Login(ctx); err != nil {
		return err
	}
	q.loggedIn = true
	return nil
}

// FetchPlasmids implements Source.
func (q *Quartzy) FetchPlasmids(ctx context.Context) ([]plasmid.RawPlasmid, error) {
	if err := q.login(ctx); err != nil {
		return nil, err
	}
	return q.client.FetchPlasmids(ctx)
}

// FetchUsers implements Source.
func (q *Quartzy) FetchUsers(ctx context.Context) ([]plasmid.RawUser, error) {
	if err := q.login(ctx); err != nil {
		return nil, err
	}
	return q.client.FetchUsers(ctx)
}
