package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
	"github.com/google/uuid"
)

// DatamodelRepository implements repositories.DatamodelRepository
type DatamodelRepository struct {
	store *Store
}

// NewDatamodelRepository creates a new datamodel version repository
func NewDatamodelRepository(store *Store) repositories.DatamodelRepository {
	return &DatamodelRepository{store: store}
}

// Create stores a new version with a generated UUID
func (r *DatamodelRepository) Create(ctx context.Context, dsl string) (string, error) {
	version := uuid.NewString()
	_, err := r.store.insert(ctx, "datamodels", "datamodel_id",
		[]string{"version", "dsl", "created_at"},
		[]interface{}{version, dsl, time.Now().UTC()},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create datamodel version: %w", err)
	}
	return version, nil
}

func (r *DatamodelRepository) one(ctx context.Context, query string, args ...interface{}) (*entities.Datamodel, error) {
	rows, err := r.store.Select(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get datamodel: %w", err)
	}
	if len(rows) == 0 {
		return nil, repositories.ErrNotFound
	}
	return &entities.Datamodel{
		Version:   rows[0].String("version"),
		DSL:       rows[0].String("dsl"),
		CreatedAt: timeValue(rows[0]["created_at"]),
	}, nil
}

// GetLatestVersion returns the newest version
func (r *DatamodelRepository) GetLatestVersion(ctx context.Context) (*entities.Datamodel, error) {
	return r.one(ctx, "SELECT version, dsl, created_at FROM datamodels ORDER BY datamodel_id DESC LIMIT 1")
}

// GetByVersion returns a specific version
func (r *DatamodelRepository) GetByVersion(ctx context.Context, version string) (*entities.Datamodel, error) {
	return r.one(ctx, "SELECT version, dsl, created_at FROM datamodels WHERE version = ?", version)
}

// ListVersions returns all versions, newest first
func (r *DatamodelRepository) ListVersions(ctx context.Context) ([]*entities.DatamodelVersion, error) {
	rows, err := r.store.Select(ctx, "SELECT version, created_at FROM datamodels ORDER BY datamodel_id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list datamodel versions: %w", err)
	}

	versions := make([]*entities.DatamodelVersion, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, &entities.DatamodelVersion{
			Version:   row.String("version"),
			CreatedAt: timeValue(row["created_at"]),
		})
	}
	return versions, nil
}
