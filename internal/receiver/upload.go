package receiver

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

const uploadField = "file"

var (
	errNoFileParts   = errors.New("no file parts in request")
	errEmptyFilename = errors.New("file part without a file name")
)

// handleUpload stores every "file" part of a multipart POST in dir and
// answers with one word for the whole request.
func handleUpload(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		saved, err := receiveFiles(dir, r)
		body := "Success\n"
		if err != nil {
			body = "Failed\n"
			log.Printf("[upload] failed (%d saved) by %s: %v", len(saved), r.RemoteAddr, err)
		} else {
			log.Printf("[upload] saved %v by %s", saved, r.RemoteAddr)
		}

		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, body)
	}
}

// receiveFiles streams the multipart body and writes each "file" part to dir.
// A failing part does not stop the others; files already written stay. The
// returned error joins every failure.
func receiveFiles(dir string, r *http.Request) (saved []string, err error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("bad multipart: %w", err)
	}

	var errs []error
	seen := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("bad multipart: %w", err))
			break
		}
		if part.FormName() != uploadField {
			continue
		}
		seen++

		clientName := part.FileName()
		if clientName == "" {
			errs = append(errs, errEmptyFilename)
			continue
		}
		name := StorageName(clientName)
		if name != clientName {
			log.Printf("[upload] client name %q stored as %q", clientName, name)
		}
		dst := filepath.Join(dir, name)
		if err := writePart(dst, part); err != nil {
			errs = append(errs, err)
			continue
		}
		saved = append(saved, name)
	}

	if seen == 0 && len(errs) == 0 {
		return nil, errNoFileParts
	}
	return saved, errors.Join(errs...)
}

func writePart(dst string, src io.Reader) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("can't create file to write, do you have permission to write? %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return f.Close()
}
