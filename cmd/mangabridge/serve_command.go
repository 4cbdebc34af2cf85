package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mangabridge/internal/app"
	"mangabridge/internal/server"
)

func newServeCommand(session *cliSession) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := session.loadConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			logger, err := session.logger()
			if err != nil {
				return err
			}
			return session.withApp(cmd.Context(), func(a *app.App) error {
				srv, err := server.New(a, logger)
				if err != nil {
					return err
				}
				if err := srv.Start(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", srv.Addr())
				<-cmd.Context().Done()
				srv.Stop()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind")
	return cmd
}
