package sim

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// RunWithSignals runs the http server until it shuts down, ctx is done, or
// an interrupt signal is received. In the latter two cases a graceful
// shutdown is attempted for graceTime before performing a hard shutdown.
func RunWithSignals(ctx context.Context, s *http.Server, graceTime time.Duration) error {
	done := make(chan error, 1)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	go func() { done <- s.ListenAndServe() }()

	var err error
	select {
	case <-sig:
		err = shutdown(s, graceTime, done)
	case <-ctx.Done():
		err = shutdown(s, graceTime, done)
	case err = <-done:
		// continue...
	}

	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdown(s *http.Server, graceTime time.Duration, done <-chan error) error {
	ctx, cancel := context.WithTimeout(context.Background(), graceTime)
	defer cancel()

	s.Shutdown(ctx)
	s.Close()
	return <-done
}
