package main

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"mathsnap/api/internal/capture"
	"mathsnap/api/internal/config"
	"mathsnap/api/internal/handle"
	"mathsnap/api/internal/httpserver"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the JSON API used by browser and mobile clients: solve uploaded
images, drive capture sessions, and manage per-client history.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			mux := http.NewServeMux()
			h, sessions := newAPI(a)
			go sessions.Run(ctx)
			h.Routes(mux)

			return httpserver.Run(ctx, net.JoinHostPort("0.0.0.0", cfg.Port), mux, slog.Default())
		},
	}
}

func newCamera(cfg *config.Config) capture.Camera {
	cam := capture.NewSnapshotCamera(cfg.CameraFrontURL, cfg.CameraBackURL)
	if !cam.Configured() {
		return capture.NoCamera{}
	}
	return cam
}

func newAPI(a *app) (*handle.Handle, *capture.Registry) {
	sessions := capture.NewRegistry(a.cfg.SessionIdleTimeout, slog.Default())
	h := handle.New(handle.Options{
		Pipeline:       a.pipe,
		History:        a.repo,
		Sessions:       sessions,
		Camera:         newCamera(a.cfg),
		Log:            slog.Default(),
		MaxUploadBytes: a.cfg.MaxUploadBytes,
		Deadline:       a.cfg.RequestTimeout,
	})
	return h, sessions
}
