package cli

import (
	"github.com/spf13/cobra"

	"example.com/notetools/internal/config"
	"example.com/notetools/internal/receiver"
)

func NewReceiverCmd() *cobra.Command {
	var cfgPath, addr, dir string

	cmd := &cobra.Command{
		Use:   "receiver",
		Short: "Serve a directory and accept file uploads",
		Long: `Serve the directory over plain HTTP and write multipart uploads (form field
"file") into it. An upload form is written to ` + config.DefaultFormPage + `
for the lifetime of the server.

There is no authentication and no TLS. Only run this on a network you trust.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			r := cfg.Receive
			if cmd.Flags().Changed("addr") {
				r.Addr = addr
			}
			if cmd.Flags().Changed("dir") {
				r.Dir = dir
			}
			return receiver.Run(cmd.Context(), receiver.Config{
				Addr:     r.Addr,
				Dir:      r.Dir,
				FormPage: r.FormPage,
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", config.DefaultAddr, "Listen address")
	f.StringVar(&dir, "dir", ".", "Directory to serve and store uploads in")
	f.StringVar(&cfgPath, "config", "", "Path to a TOML config file")
	return cmd
}
