// Package cli holds the cobra commands behind the combine and receiver
// binaries.
package cli

import (
	"time"

	"github.com/spf13/cobra"

	"example.com/notetools/internal/combiner"
	"example.com/notetools/internal/config"
)

// NewCombineCmd builds the combine command. Flags win over the config file,
// which wins over the built-in defaults.
func NewCombineCmd() *cobra.Command {
	var (
		cfgPath     string
		keepFiles   bool
		resolveHTML bool
		timeout     time.Duration
		workDir     string
		userAgent   string
	)

	cmd := &cobra.Command{
		Use:   "combine <input_file> <output_file>",
		Short: "Download and combine PDFs from a list of URLs",
		Long: `Download every URL listed in input_file (one per line) and concatenate the
PDFs that arrived, in list order, into output_file.

URLs that fail to download are reported and skipped. Downloads are staged in a
temporary directory that is removed afterwards unless --keep-files is given.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			c := cfg.Combine
			flags := cmd.Flags()
			if flags.Changed("keep-files") {
				c.KeepFiles = keepFiles
			}
			if flags.Changed("resolve-html") {
				c.ResolveHTML = resolveHTML
			}
			if flags.Changed("timeout") {
				c.Timeout.Duration = timeout
			}
			if flags.Changed("work-dir") {
				c.WorkDir = workDir
			}
			if flags.Changed("user-agent") {
				c.UserAgent = userAgent
			}

			dl := combiner.NewDownloader(c.Timeout.Duration, c.UserAgent)
			dl.ResolveHTML = c.ResolveHTML
			_, err = combiner.Run(cmd.Context(), combiner.Options{
				InputFile:  args[0],
				OutputFile: args[1],
				WorkDir:    c.WorkDir,
				KeepFiles:  c.KeepFiles,
				Downloader: dl,
				Out:        cmd.OutOrStdout(),
			})
			return err
		},
	}

	f := cmd.Flags()
	f.BoolVar(&keepFiles, "keep-files", false, "Keep the downloaded PDF files.")
	f.BoolVar(&resolveHTML, "resolve-html", false, "Follow a PDF link when a URL returns an HTML page")
	f.DurationVar(&timeout, "timeout", config.DefaultTimeout, "Per-request timeout")
	f.StringVar(&workDir, "work-dir", config.DefaultWorkDir, "Directory for downloaded files")
	f.StringVar(&userAgent, "user-agent", config.DefaultUserAgent, "User-Agent header sent with downloads")
	f.StringVar(&cfgPath, "config", "", "Path to a TOML config file")
	return cmd
}
