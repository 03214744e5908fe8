package combiner

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pdfServer serves makePDF(widths...) for each path in pages and 404 for
// everything else.
func pdfServer(t *testing.T, pages map[string][]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		widths, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(makePDF(widths...))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeList(t *testing.T, dir string, urls ...string) string {
	t.Helper()
	p := filepath.Join(dir, "urls.txt")
	require.NoError(t, os.WriteFile(p, []byte(strings.Join(urls, "\n")+"\n"), 0o644))
	return p
}

type runFixture struct {
	dir     string
	workDir string
	out     string
	stdout  bytes.Buffer
}

func newRunFixture(t *testing.T) *runFixture {
	dir := t.TempDir()
	return &runFixture{
		dir:     dir,
		workDir: filepath.Join(dir, "temp_pdfs"),
		out:     filepath.Join(dir, "combined.pdf"),
	}
}

func (f *runFixture) options(list string, keep bool) Options {
	return Options{
		InputFile:  list,
		OutputFile: f.out,
		WorkDir:    f.workDir,
		KeepFiles:  keep,
		Downloader: NewDownloader(2*time.Second, ""),
		Out:        &f.stdout,
	}
}

func TestRun_AllSucceed(t *testing.T) {
	srv := pdfServer(t, map[string][]int{
		"/a.pdf": {100},
		"/b.pdf": {200, 201},
		"/c.pdf": {300},
	})
	f := newRunFixture(t)
	list := writeList(t, f.dir, srv.URL+"/a.pdf", srv.URL+"/b.pdf", srv.URL+"/c.pdf")

	res, err := Run(context.Background(), f.options(list, false))
	require.NoError(t, err)

	assert.Equal(t, f.out, res.Output)
	assert.Len(t, res.Downloaded, 3)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, []int{100, 200, 201, 300}, pageWidths(t, f.out))
	assert.NoDirExists(t, f.workDir)
	assert.Contains(t, f.stdout.String(), "Combined PDF created at "+f.out)
	assert.Contains(t, f.stdout.String(), "Temporary files have been cleaned up.")
}

func TestRun_SkipsFailedDownloadAndKeepsOrder(t *testing.T) {
	srv := pdfServer(t, map[string][]int{
		"/a.pdf": {100},
		"/c.pdf": {300},
	})
	f := newRunFixture(t)
	list := writeList(t, f.dir, srv.URL+"/a.pdf", srv.URL+"/b.pdf", srv.URL+"/c.pdf")

	res, err := Run(context.Background(), f.options(list, false))
	require.NoError(t, err)

	assert.Equal(t, []int{100, 300}, pageWidths(t, f.out))
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, srv.URL+"/b.pdf", res.Skipped[0].URL)
	var se *HTTPStatusError
	assert.True(t, errors.As(res.Skipped[0].Err, &se))
	assert.Contains(t, f.stdout.String(), "Failed to download "+srv.URL+"/b.pdf")
}

func TestRun_NetworkFailureIsSkippedNotFatal(t *testing.T) {
	good := pdfServer(t, map[string][]int{"/a.pdf": {100}})
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/b.pdf"
	dead.Close()

	f := newRunFixture(t)
	list := writeList(t, f.dir, good.URL+"/a.pdf", deadURL, "not a url at all")

	res, err := Run(context.Background(), f.options(list, false))
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 2)
	assert.Equal(t, []int{100}, pageWidths(t, f.out))
}

func TestRun_KeepFiles(t *testing.T) {
	srv := pdfServer(t, map[string][]int{
		"/a.pdf": {100},
		"/c.pdf": {300},
	})
	f := newRunFixture(t)
	list := writeList(t, f.dir, srv.URL+"/a.pdf", srv.URL+"/b.pdf", srv.URL+"/c.pdf")

	_, err := Run(context.Background(), f.options(list, true))
	require.NoError(t, err)

	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"a.pdf", "c.pdf"}, names)
	assert.Contains(t, f.stdout.String(), "Downloaded files are kept in "+f.workDir)
}

func TestRun_NothingDownloaded(t *testing.T) {
	srv := pdfServer(t, nil)
	f := newRunFixture(t)
	list := writeList(t, f.dir, srv.URL+"/a.pdf", srv.URL+"/b.pdf")

	res, err := Run(context.Background(), f.options(list, false))
	require.NoError(t, err)

	assert.Empty(t, res.Output)
	assert.NoFileExists(t, f.out)
	assert.NoDirExists(t, f.workDir)
	assert.Contains(t, f.stdout.String(), "No PDFs were downloaded.")
}

func TestRun_NothingDownloadedLeavesExistingOutput(t *testing.T) {
	f := newRunFixture(t)
	require.NoError(t, os.WriteFile(f.out, []byte("previous"), 0o644))
	list := filepath.Join(f.dir, "urls.txt")
	require.NoError(t, os.WriteFile(list, nil, 0o644))

	_, err := Run(context.Background(), f.options(list, false))
	require.NoError(t, err)

	got, err := os.ReadFile(f.out)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(got))
	assert.Contains(t, f.stdout.String(), "No PDFs were downloaded.")
}

func TestRun_MalformedPDFAbortsAndCleansUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/a.pdf" {
			_, _ = w.Write(makePDF(100))
			return
		}
		_, _ = w.Write([]byte("this is not a pdf"))
	}))
	defer srv.Close()
	f := newRunFixture(t)
	list := writeList(t, f.dir, srv.URL+"/a.pdf", srv.URL+"/broken.pdf")

	res, err := Run(context.Background(), f.options(list, false))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedPDF)
	assert.Empty(t, res.Output)
	assert.NoFileExists(t, f.out)
	assert.NoDirExists(t, f.workDir)
}

func TestRun_MissingInput(t *testing.T) {
	f := newRunFixture(t)

	_, err := Run(context.Background(), f.options(filepath.Join(f.dir, "missing.txt"), false))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoDirExists(t, f.workDir)
}

func TestRun_WorkDirWithForeignFilesSurvives(t *testing.T) {
	srv := pdfServer(t, map[string][]int{"/a.pdf": {100}})
	f := newRunFixture(t)
	require.NoError(t, os.MkdirAll(f.workDir, 0o755))
	keep := filepath.Join(f.workDir, "mine.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))
	list := writeList(t, f.dir, srv.URL+"/a.pdf")

	_, err := Run(context.Background(), f.options(list, false))
	require.NoError(t, err)
	assert.FileExists(t, keep)
	assert.NoFileExists(t, filepath.Join(f.workDir, "a.pdf"))
}

func TestRun_Cancelled(t *testing.T) {
	srv := pdfServer(t, map[string][]int{"/a.pdf": {100}})
	f := newRunFixture(t)
	list := writeList(t, f.dir, srv.URL+"/a.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, f.options(list, false))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, f.out)
	assert.NoDirExists(t, f.workDir)
}

func TestRun_CancelledDuringDownload(t *testing.T) {
	pdf := makePDF(100)
	entered := make(chan struct{})
	var lateHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.pdf":
			_, _ = w.Write(pdf)
		case "/hang.pdf":
			close(entered)
			<-r.Context().Done()
		default:
			lateHits.Add(1)
			_, _ = w.Write(pdf)
		}
	}))
	defer srv.Close()

	f := newRunFixture(t)
	list := writeList(t, f.dir, srv.URL+"/a.pdf", srv.URL+"/hang.pdf", srv.URL+"/c.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-entered
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := Run(ctx, f.options(list, false))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Skipped, "a cancelled download is not a skip")
	assert.Len(t, res.Downloaded, 1)
	assert.Zero(t, lateHits.Load(), "no request after cancellation")
	assert.NotContains(t, f.stdout.String(), "Failed to download")
	assert.NoFileExists(t, f.out)
	assert.NoDirExists(t, f.workDir)
}
