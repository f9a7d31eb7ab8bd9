package bootstrap

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"

	"github.com/fitforge/fitforge-backend/config"
	"github.com/fitforge/fitforge-backend/internal/remote"
	"github.com/fitforge/fitforge-backend/internal/storage/postgres"
)

// OpenRemote opens the document store selected by REMOTE_BACKEND. app is
// only needed for the firestore backend.
func OpenRemote(ctx context.Context, cfg *config.Config, app *firebase.App) (remote.DocumentStore, error) {
	switch cfg.Remote.Backend {
	case config.RemoteFirestore:
		if app == nil {
			return nil, fmt.Errorf("firestore backend needs an initialized firebase app")
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		return remote.NewFirestoreStore(client), nil

	case config.RemotePostgres:
		db, err := postgres.NewConnection(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		store := remote.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil

	case config.RemoteMemory:
		return remote.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
}
