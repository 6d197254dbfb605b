// serve.go - Server-Command.
package cmd

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/latentforge/latentforge/backend"
	"github.com/latentforge/latentforge/envconfig"
	"github.com/latentforge/latentforge/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the latentforge server",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := backend.Open(envconfig.Models())
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", envconfig.Host().Host)
			if err != nil {
				return err
			}
			return server.Serve(ln, pipeline)
		},
	}
}
