// Command flowpanel designs flow cytometry staining panels: it keeps the
// reagent catalog and tube layout of a project, computes master mixes and
// experiment plans, renders the staining protocol and serves the same
// operations over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
