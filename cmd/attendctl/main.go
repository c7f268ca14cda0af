package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/arnavshah/attendance-api-go/pkg/client"
	"github.com/arnavshah/attendance-api-go/pkg/config"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ATTENDCTL : ", log.LstdFlags)

	cfg, err := config.Load()
	errAndDie(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli := newCommandLine(client.New(cfg.APIBaseURL), sessionPath(), cfg.PositionMaxAge)
	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			logger.Printf("error: %s", err)
		}
		stop()
		os.Exit(1)
	}
}

// sessionPath is ATTENDCTL_SESSION or a file in the user's config dir
func sessionPath() string {
	if p := os.Getenv("ATTENDCTL_SESSION"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "attendctl", "session.json")
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
