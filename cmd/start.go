/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/spf13/cobra"
	"github.com/tieubaoca/tables-retriever/database"
	"github.com/tieubaoca/tables-retriever/handler"
	"github.com/tieubaoca/tables-retriever/metrics"
	"github.com/tieubaoca/tables-retriever/repository"
	"github.com/tieubaoca/tables-retriever/service"
)

const shutdownTimeout = 10 * time.Second

// startServerCmd represents the start command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Serve queries about an HTML file over HTTP",
	Long: `Builds the pipeline for --file and serves it over HTTP and websocket.
Redis caching and MongoDB query logging are enabled when configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		file, _ := cmd.Flags().GetString("file")
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}

		p, err := buildPack(ctx, cfg, file)
		if err != nil {
			return err
		}

		m := metrics.New()
		opts := []service.QueryServiceOption{service.WithMetrics(m)}

		if cfg.Redis.Addr != "" {
			redisClient, err := database.NewRedisClient(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			defer redisClient.Close()
			opts = append(opts, service.WithQueryCache(database.NewQueryCache(redisClient, cfg.Redis.TTL, cfg.Redis.KeyPrefix)))
			logger.Infow("query cache enabled", "addr", cfg.Redis.Addr)
		}

		if cfg.MongoDB.URI != "" {
			mongoClient, err := database.NewMongoClient(ctx, cfg.MongoDB)
			if err != nil {
				return err
			}
			defer mongoClient.Disconnect(context.Background())
			repo := repository.NewQueryLogRepo(database.QueryLogCollection(mongoClient, cfg.MongoDB))
			opts = append(opts, service.WithQueryLogRepo(repo))
			logger.Infow("query log enabled", "database", cfg.MongoDB.Database, "collection", cfg.MongoDB.Collection)
		}

		queries := service.NewQueryService(p, opts...)

		gin.SetMode(gin.ReleaseMode)
		srv := &http.Server{
			Addr:    ":" + cfg.Port,
			Handler: handler.NewRouter(queries, modulesResponse(p), m),
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Infof("Starting server on port %s...", cfg.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(startServerCmd)
	startServerCmd.Flags().StringP("file", "f", "", "HTML file to serve")
	startServerCmd.Flags().StringP("port", "p", "", "listen port (overrides config)")
}
