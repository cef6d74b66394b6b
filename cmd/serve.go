package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/hiddenpicture/internal/httpserver"
	"github.com/robalobadob/hiddenpicture/internal/notify"
	"github.com/robalobadob/hiddenpicture/internal/session"
	"github.com/robalobadob/hiddenpicture/internal/users"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the game HTTP server",
	Long:  `Starts the HTTP API (game, auth, stats and the WebSocket status stream) on the configured port.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != "" {
			cfg.Server.Port = servePort
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		reg := session.NewRegistry(b.store, sessionOptions(cfg))
		go reg.RunSweeper(ctx, cfg.Session.SweepInterval, cfg.Session.IdleTimeout)

		srv := httpserver.New(httpserver.Deps{
			Config:   cfg,
			Registry: reg,
			Users:    users.NewStore(b.db),
			Hub:      notify.NewHub(),
		})

		errc := make(chan error, 1)
		go func() {
			log.Info().Str("port", cfg.Server.Port).Str("version", Version).Msg("starting hiddenpicture server")
			errc <- srv.Start(":" + cfg.Server.Port)
		}()

		select {
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
