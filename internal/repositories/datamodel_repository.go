package repositories

import (
	"context"

	"github.com/asakaida/relata/internal/entities"
)

// DatamodelRepository stores versions of the datamodel DSL
type DatamodelRepository interface {
	// Create stores a new version and returns its id
	Create(ctx context.Context, dsl string) (string, error)

	// GetLatestVersion returns the newest version; ErrNotFound when none exists
	GetLatestVersion(ctx context.Context) (*entities.Datamodel, error)

	// GetByVersion returns a specific version; ErrNotFound when missing
	GetByVersion(ctx context.Context, version string) (*entities.Datamodel, error)

	// ListVersions returns all versions, newest first
	ListVersions(ctx context.Context) ([]*entities.DatamodelVersion, error)
}
