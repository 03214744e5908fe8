// Package combiner downloads a list of PDFs and concatenates them into one
// document.
package combiner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"example.com/notetools/internal/config"
)

// Options configures a single Run.
type Options struct {
	InputFile  string
	OutputFile string
	WorkDir    string // defaults to config.DefaultWorkDir
	KeepFiles  bool

	Downloader *Downloader
	Out        io.Writer // progress lines; defaults to os.Stdout
}

// Skip records a URL that produced no file.
type Skip struct {
	URL string
	Err error
}

// Result reports the outcome of a Run.
type Result struct {
	Downloaded []string // local paths, input order
	Skipped    []Skip
	Output     string // empty when nothing was combined
}

// Run reads the URL list, downloads every entry into the work dir, combines
// whatever arrived and cleans up. Per-URL failures are skipped; an unreadable
// list, a malformed PDF or cancellation are returned as errors.
func Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	dir := opts.WorkDir
	if dir == "" {
		dir = config.DefaultWorkDir
	}
	dl := opts.Downloader
	if dl == nil {
		dl = NewDownloader(config.DefaultTimeout, config.DefaultUserAgent)
	}

	urls, err := ReadURLs(opts.InputFile)
	if err != nil {
		return res, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("create work dir: %w", err)
	}

	runErr := func() error {
		for _, u := range urls {
			if err := ctx.Err(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Downloading %s...\n", u)
			p, err := dl.Download(ctx, u, dir)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Printf("[skip] %s -> %v", u, err)
				fmt.Fprintf(out, "Failed to download %s\n", u)
				res.Skipped = append(res.Skipped, Skip{URL: u, Err: err})
				continue
			}
			res.Downloaded = append(res.Downloaded, p)
		}

		if len(res.Downloaded) == 0 {
			fmt.Fprintln(out, "No PDFs were downloaded.")
			return nil
		}
		if err := CombinePDFs(res.Downloaded, opts.OutputFile); err != nil {
			return err
		}
		res.Output = opts.OutputFile
		fmt.Fprintf(out, "Combined PDF created at %s\n", opts.OutputFile)
		return nil
	}()

	if opts.KeepFiles {
		fmt.Fprintf(out, "Downloaded files are kept in %s\n", dir)
		return res, runErr
	}
	if err := cleanup(dir, res.Downloaded); err != nil {
		log.Printf("[cleanup] %v", err)
	} else {
		fmt.Fprintln(out, "Temporary files have been cleaned up.")
	}
	return res, runErr
}

// cleanup removes the downloaded files and then the work dir itself. The dir
// is only removed when empty, so files it held before the run survive.
func cleanup(dir string, files []string) error {
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
