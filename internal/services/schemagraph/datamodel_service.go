package schemagraph

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
	"github.com/asakaida/relata/internal/services/parser"
	"go.uber.org/zap"
)

// DatamodelService handles datamodel versions and builds graphs from them
type DatamodelService struct {
	repo   repositories.DatamodelRepository
	logger *zap.Logger
}

// NewDatamodelService creates a new DatamodelService
func NewDatamodelService(repo repositories.DatamodelRepository, logger *zap.Logger) *DatamodelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatamodelService{repo: repo, logger: logger}
}

// Validate checks a DSL string without saving it
func (s *DatamodelService) Validate(dsl string) error {
	if dsl == "" {
		return fmt.Errorf("datamodel DSL is required")
	}
	_, err := parser.Parse(dsl)
	return err
}

// Format parses the DSL and prints it back in canonical form
func (s *DatamodelService) Format(dsl string) (string, error) {
	if err := s.Validate(dsl); err != nil {
		return "", err
	}
	model, err := parser.Parse(dsl)
	if err != nil {
		return "", err
	}
	return parser.NewGenerator().Generate(parser.DatamodelToAST(model)), nil
}

// Push validates the DSL and stores it as a new version
func (s *DatamodelService) Push(ctx context.Context, dsl string) (string, error) {
	if err := s.Validate(dsl); err != nil {
		return "", err
	}

	version, err := s.repo.Create(ctx, dsl)
	if err != nil {
		return "", fmt.Errorf("failed to create datamodel version: %w", err)
	}

	s.logger.Info("datamodel version created", zap.String("version", version))
	return version, nil
}

// Get returns a parsed datamodel version; an empty version means the latest
func (s *DatamodelService) Get(ctx context.Context, version string) (*entities.Datamodel, error) {
	var stored *entities.Datamodel
	var err error
	if version == "" {
		stored, err = s.repo.GetLatestVersion(ctx)
	} else {
		stored, err = s.repo.GetByVersion(ctx, version)
	}
	if errors.Is(err, repositories.ErrNotFound) {
		if version == "" {
			return nil, fmt.Errorf("no datamodel has been pushed")
		}
		return nil, fmt.Errorf("datamodel version not found: %s", version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get datamodel: %w", err)
	}

	model, err := parser.Parse(stored.DSL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored datamodel %s: %w", stored.Version, err)
	}
	model.Version = stored.Version
	model.CreatedAt = stored.CreatedAt
	return model, nil
}

// Load returns the graph of a stored datamodel version; an empty version means the latest
func (s *DatamodelService) Load(ctx context.Context, version string) (*Graph, error) {
	model, err := s.Get(ctx, version)
	if err != nil {
		return nil, err
	}
	return New(model), nil
}

// Versions lists the stored versions, newest first
func (s *DatamodelService) Versions(ctx context.Context) ([]*entities.DatamodelVersion, error) {
	versions, err := s.repo.ListVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datamodel versions: %w", err)
	}
	return versions, nil
}

// FromDSL parses a DSL string into a graph
func FromDSL(dsl string) (*Graph, error) {
	model, err := parser.Parse(dsl)
	if err != nil {
		return nil, err
	}
	return New(model), nil
}

// LoadFile parses a DSL file into a graph
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read datamodel file: %w", err)
	}
	return FromDSL(string(data))
}
