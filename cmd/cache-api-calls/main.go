// Command cache-api-calls refreshes the cached IBM Cloud API responses used
// as front-end fixtures.
//
// Usage:
//
//	IBMCLOUD_API_KEY=... cache-api-calls [--out-dir DIR] [--keep-going]
//	cache-api-calls <api-key>
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icse/api-cache/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.Run(os.Args[1:], app.Dependencies{
		Context: ctx,
		Out:     os.Stdout,
		Err:     os.Stderr,
		Getenv:  os.Getenv,
		Now:     time.Now,
	})
	stop()
	os.Exit(code)
}
