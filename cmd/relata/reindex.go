package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/infrastructure/config"
	"github.com/asakaida/relata/internal/repositories/sqlstore"
	"github.com/asakaida/relata/internal/services/search"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reindexPollInterval time.Duration
	reindexBatchSize    int
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Process the search reindex queue",
}

var reindexListenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Drain reindex notifications until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return withApp(ctx, true, func(ctx context.Context, a *app) error {
			connString := ""
			if a.cfg.Database.Driver == config.DriverPostgres {
				connString = a.cfg.Database.ConnectionString()
			}
			listener := search.NewListener(
				sqlstore.NewReindexQueueRepository(a.store),
				a.store,
				logIndexEntries(a),
				search.ListenerConfig{
					ConnString:   connString,
					PollInterval: reindexPollInterval,
					BatchSize:    reindexBatchSize,
				},
				a.logger,
				a.instr,
			)

			var server *http.Server
			if a.cfg.Metrics.Enabled {
				server = metricsServer(a)
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("metrics server failed", zap.Error(err))
					}
				}()
				a.logger.Info("metrics server listening", zap.String("addr", server.Addr))
			}

			if err := listener.Start(ctx); err != nil {
				return err
			}
			a.logger.Info("reindex listener started",
				zap.Duration("poll_interval", reindexPollInterval),
				zap.Bool("notify", connString != ""))

			<-ctx.Done()
			a.logger.Info("shutting down reindex listener")
			if err := listener.Stop(); err != nil {
				a.logger.Warn("failed to stop listener", zap.Error(err))
			}
			listener.Wait()

			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					a.logger.Warn("metrics server shutdown failed", zap.Error(err))
				}
			}
			return nil
		})
	},
}

func init() {
	reindexListenCmd.Flags().DurationVar(&reindexPollInterval, "poll-interval", 5*time.Second, "Queue poll interval")
	reindexListenCmd.Flags().IntVar(&reindexBatchSize, "batch-size", 100, "Entries handled per transaction")

	reindexCmd.AddCommand(reindexListenCmd)
}

// logIndexEntries is the handler used until a search backend is attached
func logIndexEntries(a *app) search.Handler {
	return func(ctx context.Context, batch []*entities.IndexEntry) error {
		for _, entry := range batch {
			table, ok := a.graph.TableName(entry.TableNum)
			if !ok {
				table = fmt.Sprintf("#%d", entry.TableNum)
			}
			a.logger.Info("reindex",
				zap.String("table", table),
				zap.Int64("row_id", entry.RowID),
				zap.Bool("delete", entry.IsDelete),
				zap.Strings("exclusions", entry.Exclusions))
		}
		return nil
	}
}

func metricsServer(a *app) *http.Server {
	handler := promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	mux := http.NewServeMux()
	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.exporter.Update()
		handler.ServeHTTP(w, r)
	}))
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
