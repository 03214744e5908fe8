package combiner

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrMalformedPDF     = errors.New("malformed pdf")
	ErrNothingToCombine = errors.New("nothing to combine")
)

func init() {
	// no pdfcpu config dir under the user's home
	model.ConfigPath = "disable"
}

// CombinePDFs concatenates the pages of paths, in order, into out. Every
// input is validated first; out is only replaced once the merge succeeded.
func CombinePDFs(paths []string, out string) error {
	if len(paths) == 0 {
		return ErrNothingToCombine
	}
	conf := model.NewDefaultConfiguration()
	for _, p := range paths {
		if err := pdfapi.ValidateFile(p, conf); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedPDF, p, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".*.partial")
	if err != nil {
		return fmt.Errorf("combine: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("combine: %w", err)
	}

	if err := pdfapi.MergeCreateFile(paths, tmpPath, false, model.NewDefaultConfiguration()); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("combine: merge: %w", err)
	}
	if err := os.Rename(tmpPath, out); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("combine: %w", err)
	}
	log.Printf("[merge] %d files -> %s", len(paths), out)
	return nil
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	n, err := pdfapi.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedPDF, path, err)
	}
	return n, nil
}
