// Package httpserver runs an http.Handler until its context ends.
package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"
)

// Timeouts bound a single request. WriteTimeout stays generous because
// uploads of phone photos can be slow.
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
	Shutdown   time.Duration
}

var DefaultTimeouts = Timeouts{
	ReadHeader: 10 * time.Second,
	Read:       60 * time.Second,
	Write:      60 * time.Second,
	Idle:       120 * time.Second,
	Shutdown:   15 * time.Second,
}

func New(addr string, h http.Handler, t Timeouts) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: t.ReadHeader,
		ReadTimeout:       t.Read,
		WriteTimeout:      t.Write,
		IdleTimeout:       t.Idle,
		MaxHeaderBytes:    1 << 20,
	}
}

// Serve listens on addr and shuts down gracefully once ctx is done. It
// returns nil after a clean shutdown.
func Serve(ctx context.Context, addr string, h http.Handler, t Timeouts) error {
	srv := New(addr, h, t)
	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	grace := t.Shutdown
	if grace <= 0 {
		grace = DefaultTimeouts.Shutdown
	}
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Printf("http server on %s stopped", addr)
	return nil
}
