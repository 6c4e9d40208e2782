package runaccess

import (
	"context"
	"fmt"

	"contentfactory/internal/ipc"
	"contentfactory/internal/store"
)

// Session represents an access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback uses the daemon API when it answers a status probe, then
// falls back to direct store access.
func OpenWithFallback(
	ctx context.Context,
	client *ipc.Client,
	openStore func() (*store.Store, error),
) (Session, error) {
	if client != nil {
		if _, err := client.Status(ctx); err == nil {
			return Session{Access: NewAPIAccess(client)}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open store: no store opener configured")
	}
	st, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(st),
		close:  st.Close,
	}, nil
}
