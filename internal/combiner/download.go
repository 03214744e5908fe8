package combiner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"example.com/notetools/internal/config"
)

// ErrNoFilename is returned for URLs whose last path segment is unusable as
// a local file name.
var ErrNoFilename = errors.New("url has no file name")

// HTTPStatusError reports a response other than 200 OK.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http %d for %s", e.StatusCode, e.URL)
}

// Downloader fetches one resource per call. The zero value is not usable;
// build one with NewDownloader.
type Downloader struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string

	// ResolveHTML follows a PDF link found on an HTML landing page instead
	// of saving the page itself.
	ResolveHTML bool
}

// NewDownloader returns a Downloader whose timeout bounds each network step
// (connect, TLS handshake, waiting for headers, and every body read) rather
// than the whole transfer, so a large file that keeps arriving is never cut
// off.
func NewDownloader(timeout time.Duration, userAgent string) *Downloader {
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = timeout
	tr.ResponseHeaderTimeout = timeout
	return &Downloader{
		client:    &http.Client{Transport: tr},
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Download GETs rawURL and stores the body in dir under the last path segment
// of rawURL. It returns the local path.
func (d *Downloader) Download(ctx context.Context, rawURL, dir string) (string, error) {
	name, err := FileNameFromURL(rawURL)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dir, name)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := d.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body := d.watch(resp.Body, cancel)
	defer body.stop()

	if d.ResolveHTML && isHTML(resp.Header.Get("Content-Type")) {
		page, err := io.ReadAll(body)
		body.stop()
		if err != nil {
			return "", body.explain(fmt.Errorf("read %s: %w", rawURL, err))
		}
		base, err := url.Parse(rawURL)
		if err != nil {
			return "", err
		}
		pdfURL := pdfLinkOn(string(page), base)
		if pdfURL == "" {
			return "", fmt.Errorf("no PDF link found in HTML page %s", rawURL)
		}
		// one hop only; a second landing page is saved as-is
		resp2, err := d.get(ctx, pdfURL)
		if err != nil {
			return "", err
		}
		defer resp2.Body.Close()
		body = d.watch(resp2.Body, cancel)
		defer body.stop()
	}

	if err := writeBody(dst, body); err != nil {
		return "", body.explain(err)
	}
	return dst, nil
}

// idleReader cancels the request when no Read completes within d.
type idleReader struct {
	r       io.Reader
	d       time.Duration
	t       *time.Timer
	expired atomic.Bool
}

func (d *Downloader) watch(r io.Reader, cancel context.CancelFunc) *idleReader {
	ir := &idleReader{r: r, d: d.timeout}
	ir.t = time.AfterFunc(d.timeout, func() {
		ir.expired.Store(true)
		cancel()
	})
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.t.Reset(ir.d)
	}
	return n, err
}

func (ir *idleReader) stop() { ir.t.Stop() }

func (ir *idleReader) explain(err error) error {
	if ir.expired.Load() {
		return fmt.Errorf("no data for %s: %w", ir.d, err)
	}
	return err
}

func (d *Downloader) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func writeBody(dst string, body io.Reader) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return f.Close()
}

// FileNameFromURL returns the text after the last "/" of rawURL, undecoded.
// Query strings and fragments are dropped so they never reach the file name.
func FileNameFromURL(rawURL string) (string, error) {
	s := rawURL
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	name := s[strings.LastIndex(s, "/")+1:]
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `\`+"\x00") {
		return "", fmt.Errorf("%w: %q", ErrNoFilename, rawURL)
	}
	return name, nil
}

func isHTML(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "text/html"
}

// pdfLinkOn picks the PDF a landing page at base points to. Links to .pdf
// files next to the page win over .pdf links elsewhere, which win over links
// whose text mentions "download" or "pdf". Links back to the page itself and
// non-HTTP schemes are ignored.
func pdfLinkOn(page string, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}
	self := *base
	self.Fragment = ""
	dir := path.Dir(base.Path)

	var near, far, labelled []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		u, err := base.Parse(strings.TrimSpace(a.AttrOr("href", "")))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		if u.String() == self.String() {
			return
		}
		link := u.String()
		switch {
		case strings.EqualFold(path.Ext(u.Path), ".pdf"):
			if u.Host == base.Host && path.Dir(u.Path) == dir {
				near = append(near, link)
			} else {
				far = append(far, link)
			}
		case mentionsPDF(a.Text()):
			labelled = append(labelled, link)
		}
	})

	for _, group := range [][]string{near, far, labelled} {
		if len(group) > 0 {
			return group[0]
		}
	}
	return ""
}

func mentionsPDF(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "download") || strings.Contains(t, "pdf")
}
