package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rpattn/fieldmap/internal/api"
	"github.com/rpattn/fieldmap/internal/db"
	"github.com/rpattn/fieldmap/internal/lookup"
	"github.com/rpattn/fieldmap/internal/mapper"
	"github.com/rpattn/fieldmap/internal/repository"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		withDB  bool
		migrate bool
		lookups []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mapping HTTP API",
		Long: `Serve exposes POST /map, POST /preview, GET /definitions and GET /healthz.

With --db, stored definitions can be referenced by name, lookups resolve
against the database and row failures are written to the run log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var (
				definitions repository.MappingRepository
				source      lookup.Source
				extra       []mapper.Option
			)
			if withDB {
				if migrate {
					if err := db.RunMigrations(a.cfg.Database, log.Logger); err != nil {
						return err
					}
				}
				conn, err := a.connect(ctx)
				if err != nil {
					return err
				}
				defer conn.Close()
				definitions = repository.NewMappingRepository(conn.Pool)
				source = repository.NewLookupRepository(conn.Pool)
				extra = append(extra, mapper.WithRunLog(repository.NewRunLogRepository(conn.Pool)))
			} else if len(lookups) > 0 {
				memory, err := loadLookupFiles(lookups)
				if err != nil {
					return err
				}
				source = memory
			}

			handler := api.NewHandler(mapper.NewExecutor(a.executorOptions(extra...)...), definitions, log.Logger)
			corsHandler := cors.New(cors.Options{
				AllowedOrigins:   a.cfg.Server.AllowedOrigins,
				AllowCredentials: true,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders:   []string{"*"},
				ExposedHeaders:   []string{"X-Request-ID", "X-Run-ID", "Content-Disposition"},
			})

			server := &http.Server{
				Addr:         a.cfg.Server.Addr,
				Handler:      corsHandler.Handler(handler.Routes(source)),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 5 * time.Minute,
				IdleTimeout:  60 * time.Second,
			}
			return serve(ctx, server)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "", "listen address")
	flags.StringSlice("allowed-origins", nil, "CORS allowed origins")
	flags.BoolVar(&withDB, "db", false, "use the database for definitions, lookups and run logs")
	flags.BoolVar(&migrate, "migrate", false, "apply database migrations before serving (requires --db)")
	flags.StringArrayVar(&lookups, "lookup", nil, "lookup table as name=path (repeatable, ignored with --db)")
	bindFlag(a.v, "server.addr", flags.Lookup("addr"))
	bindFlag(a.v, "server.allowed_origins", flags.Lookup("allowed-origins"))
	return cmd
}

// serve runs server until ctx is done or the process is interrupted, then
// shuts it down gracefully.
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting mapping API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-quit:
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("server exited")
	return nil
}
