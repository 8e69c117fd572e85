// Command relata manages datamodels and relationships from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/asakaida/relata/internal/infrastructure/config"
	"github.com/asakaida/relata/internal/infrastructure/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	envFlag    string
	userFlag   int64
	localeFlag string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "relata",
	Short: "Relationship engine for catalogued collections",
	Long: `Relata relates rows of entity tables through link tables, foreign keys and
polymorphic references described by a datamodel.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
	rootCmd.PersistentFlags().Int64Var(&userFlag, "user", 0, "User id for access checks")
	rootCmd.PersistentFlags().StringVar(&localeFlag, "locale", "", "Locale for labels (e.g. en_US)")

	rootCmd.AddCommand(datamodelCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(relationshipsCmd)
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(reindexCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if err := config.InitConfig(envFlag); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	var err error
	if cfg, err = config.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logger, err = logging.New(&cfg.Log); err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	return nil
}

// withApp runs fn with wired services. withGraph also loads the datamodel.
func withApp(ctx context.Context, withGraph bool, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if withGraph {
		if err := a.loadGraph(ctx); err != nil {
			return err
		}
	}
	return fn(a.scope(ctx), a)
}
