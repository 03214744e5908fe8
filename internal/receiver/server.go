// Package receiver is a small HTTP server that shares its directory over GET
// and stores multipart uploads into it.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/netutil"

	"example.com/notetools/internal/config"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Addr     string // default config.DefaultAddr
	Dir      string // served and written to; default "."
	FormPage string // default config.DefaultFormPage
}

// NewHandler serves dir over GET and HEAD and accepts uploads over POST on
// any path.
func NewHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	upload := handleUpload(dir)
	return loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			files.ServeHTTP(w, r)
		case http.MethodPost:
			upload(w, r)
		default:
			w.Header().Set("Allow", "GET, HEAD, POST")
			http.Error(w, "unsupported method", http.StatusNotImplemented)
		}
	}))
}

// Server handles one connection at a time. The upload form page exists from
// Start until Serve returns.
type Server struct {
	cfg     Config
	hs      *http.Server
	ln      net.Listener
	release func() error
}

func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = config.DefaultAddr
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.FormPage == "" {
		cfg.FormPage = config.DefaultFormPage
	}
	hs := &http.Server{
		Handler:           NewHandler(cfg.Dir),
		ReadHeaderTimeout: 30 * time.Second,
		ErrorLog:          log.New(os.Stderr, "[http] ", log.LstdFlags),
	}
	// a kept-alive idle connection would hold the only slot
	hs.SetKeepAlivesEnabled(false)
	return &Server{cfg: cfg, hs: hs}
}

// Start writes the form page and binds the listener.
func (s *Server) Start() error {
	release, err := AcquireFormPage(s.cfg.Dir, s.cfg.FormPage)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		if rerr := release(); rerr != nil {
			log.Printf("[serve] %v", rerr)
		}
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = netutil.LimitListener(ln, 1)
	s.release = release
	return nil
}

// Addr is the bound address; nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled or the listener fails,
// then shuts down and removes the form page.
func (s *Server) Serve(ctx context.Context) (err error) {
	if s.ln == nil {
		return errors.New("receiver: Serve called before Start")
	}
	defer func() {
		if rerr := s.release(); rerr != nil {
			log.Printf("[serve] %v", rerr)
			err = errors.Join(err, rerr)
		}
	}()

	log.Printf("[serve] serving %s at %s", s.cfg.Dir, s.ln.Addr())
	errCh := make(chan error, 1)
	go func() { errCh <- s.hs.Serve(s.ln) }()

	select {
	case <-ctx.Done():
		log.Printf("[serve] shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.hs.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Printf("[serve] %v", err)
		return err
	}
}

// Run starts a Server for cfg and serves until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	s := New(cfg)
	if err := s.Start(); err != nil {
		return err
	}
	return s.Serve(ctx)
}
