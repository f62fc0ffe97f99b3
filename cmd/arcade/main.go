// Package main starts the arcade game service.
//
// This process owns the HTTP surface for session play, quota reads, and
// reward settlement, backed by a single SQLite database.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	arcadecmd "github.com/gemfall/arcade/internal/cmd/arcade"
)

func main() {
	cfg, err := arcadecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[ARCADE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := arcadecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
