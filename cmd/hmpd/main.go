package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lherron/hmp/internal/cli"
)

func main() {
	addr := flag.String("addr", "", "Listen address (default from HMP_ADDR, then 127.0.0.1:3001)")
	dbPath := flag.String("db", "", "Database path override (defaults to config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := cli.DaemonOptions{
		Addr:   *addr,
		DBPath: *dbPath,
	}
	if err := cli.ServeDaemon(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
