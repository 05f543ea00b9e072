package graceful

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ottsonly-backend/pkg/logger"
)

// SetupGracefulShutdown calls cancel on the first SIGINT/SIGTERM/SIGHUP.
func SetupGracefulShutdown(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)

	signal.Notify(sigCh,
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)

	go func() {
		sig := <-sigCh
		logger.Infof("received signal %v, shutting down", sig)
		signal.Stop(sigCh)
		cancel()
	}()
}
