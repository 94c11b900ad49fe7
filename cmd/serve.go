package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvierd/thirdtime/internal/adapters/httpapi"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host the cycle without a UI",
	Long: `Host the cycle in the background with the control API, desktop
notifications and event logging. Drive it with the start, end-in, end-at,
end-now, long-break and kill commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := setupSignalHandler(cmd.Context())
		defer cancel()

		h, err := newHost()
		if err != nil {
			return err
		}
		defer h.Close()

		router := httpapi.NewRouter(h.cycle, h.history, httpapi.RouterOptions{
			AllowedOrigins: app.config.Server.AllowedOrigins,
			Logger:         app.logger,
		})
		if err := httpapi.NewServer(controlAddr(), router, app.logger).ListenAndServe(ctx); err != nil {
			return fmt.Errorf("control API error: %w", err)
		}
		return nil
	},
}
