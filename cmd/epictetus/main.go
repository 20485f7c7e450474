// Command epictetus runs the DNS reconciliation controller: it keeps a
// set of CloudFlare A records synchronized with the healthy worker
// nodes of a Kubernetes cluster.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/magicorntech/epictetus/internal/app"
	"github.com/magicorntech/epictetus/internal/config"
)

func main() {
	opts := &config.Options{}
	opts.AddFlags(pflag.CommandLine)
	pflag.Parse()

	if errs := opts.Validate(); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "epictetus: invalid configuration:", err)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "epictetus: startup failed:", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		a.Logger.Errorw("controller exited with error", "error", err)
		os.Exit(1)
	}
}
