// Package main provides the disease database seeding tool.
//
//	seed load --file diseases.json [--upload]
//	seed upload
//	seed list
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyellow/eyecare-linebot-go/internal/config"
	"github.com/garyellow/eyecare-linebot-go/internal/logger"
	"github.com/garyellow/eyecare-linebot-go/internal/r2client"
	"github.com/garyellow/eyecare-linebot-go/internal/snapshot"
	"github.com/garyellow/eyecare-linebot-go/internal/storage"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Manage the eye-disease database",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newLoadCommand(),
		newUploadCommand(),
		newListCommand(),
	)
	return cmd
}

func newLoadCommand() *cobra.Command {
	var (
		file   string
		upload bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Upsert disease descriptions from a JSON file",
		Args:  cobra.NoArgs,
		Example: `  seed load --file diseases.json
  seed load --file diseases.json --upload`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, log *logger.Logger, db *storage.DB) error {
				n, err := loadFile(ctx, db, file)
				if err != nil {
					return err
				}
				log.WithField("file", file).WithField("rows", n).Info("Disease descriptions loaded")
				if upload {
					return uploadSnapshot(ctx, cfg, log, db)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with disease rows")
	cmd.Flags().BoolVar(&upload, "upload", false, "Publish a snapshot to R2 after loading")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Publish the local database as an R2 snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), uploadSnapshot)
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every stored disease description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, _ *config.Config, _ *logger.Logger, db *storage.DB) error {
				diseases, err := db.ListDiseases(ctx)
				if err != nil {
					return err
				}
				printDiseases(cmd.OutOrStdout(), diseases)
				return nil
			})
		},
	}
}

// withDB loads seed-mode configuration and opens the database around fn.
func withDB(ctx context.Context, fn func(context.Context, *config.Config, *logger.Logger, *storage.DB) error) error {
	cfg, err := config.LoadForMode(config.SeedMode)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel).WithModule("seed")

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := fn(ctx, cfg, log, db); err != nil {
		log.WithError(err).Error("Seed command failed")
		return err
	}
	return nil
}

func uploadSnapshot(ctx context.Context, cfg *config.Config, log *logger.Logger, db *storage.DB) error {
	if !cfg.R2Enabled {
		return fmt.Errorf("%s must be true to upload a snapshot", config.EnvR2Enabled)
	}

	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    cfg.R2Endpoint(),
		AccessKeyID: cfg.R2AccessKeyID,
		SecretKey:   cfg.R2SecretAccessKey,
		BucketName:  cfg.R2BucketName,
	})
	if err != nil {
		return err
	}

	mgr := snapshot.New(client, snapshot.Config{
		SnapshotKey: cfg.R2SnapshotKey,
		TempDir:     cfg.DataDir,
	})
	etag, err := mgr.UploadSnapshot(ctx, db)
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	log.WithField("key", cfg.R2SnapshotKey).WithField("etag", etag).Info("Snapshot uploaded")
	return nil
}
