package main

import (
	"context"
	"os"
	"os/signal"
)

// interruptContext returns a context cancelled by the first interrupt. The
// signal is then released, so a second interrupt takes the default action
// and kills the process even if cleanup hangs.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	go stopOnDone(ctx, stop)
	return ctx, stop
}

func stopOnDone(ctx context.Context, stop context.CancelFunc) {
	<-ctx.Done()
	stop()
}
