// Package main provides the LINE bot server entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/garyellow/eyecare-linebot-go/internal/app"
	"github.com/garyellow/eyecare-linebot-go/internal/config"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "eyecare-linebot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	application, err := app.Initialize(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	return application.Run()
}
