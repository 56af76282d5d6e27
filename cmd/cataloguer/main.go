package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/internal/indexer"
	"github.com/thep200/github-cataloguer/pkg/db"
	"github.com/thep200/github-cataloguer/pkg/kafka"
	"github.com/thep200/github-cataloguer/pkg/log"
)

var opts indexer.Options

func main() {
	root := &cobra.Command{
		Use:           "cataloguer",
		Short:         "Build and maintain a persistent catalog of GitHub repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringSliceVar(&opts.Targets, "targets", nil, "specific repositories to process, as owner/name")
	root.PersistentFlags().Int64Var(&opts.StartID, "start-id", 0, "minimum repository id to start from")
	root.PersistentFlags().BoolVar(&opts.ApiOnly, "api-only", false, "skip page scraping, use the API for everything")
	root.PersistentFlags().BoolVar(&opts.Force, "force", false, "re-process entries that already have data")
	root.PersistentFlags().IntVar(&opts.MaxFailures, "max-failures", 0, "stop after this many consecutive failures")

	for _, name := range []string{
		"build-index", "rebuild-index", "backfill-languages", "backfill-readmes",
		"backfill-forks", "infer-type", "verify-index", "rebuild-meta",
	} {
		root.AddCommand(opCommand(name))
	}

	root.AddCommand(&cobra.Command{
		Use:   "print-summary",
		Short: "Print aggregate statistics of the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, _, err := setup()
			if err != nil {
				return err
			}
			return ix.PrintSummary(cmd.Context(), os.Stdout)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "print-details",
		Short: "Print everything known about the given repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, _, err := setup()
			if err != nil {
				return err
			}
			targets := append(opts.Targets, args...)
			return ix.PrintDetails(cmd.Context(), os.Stdout, targets)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "mark-deleted",
		Short: "Manually mark the given repositories as deleted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, _, err := setup()
			if err != nil {
				return err
			}
			targets := append(opts.Targets, args...)
			return ix.MarkDeleted(cmd.Context(), targets)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list-deleted",
		Short: "List the catalog entries marked as deleted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, _, err := setup()
			if err != nil {
				return err
			}
			return ix.ListDeleted(cmd.Context(), os.Stdout)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// opCommand dựng subcommand cho một thao tác reconciliation. Tín hiệu
// ngắt đầu tiên yêu cầu dừng hợp tác, tín hiệu thứ hai hủy thẳng.
func opCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: "Run the " + name + " operation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, err := indexer.ParseOp(name)
			if err != nil {
				return err
			}
			ix, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				<-sigCh
				logger.Info(ctx, "Received shutdown signal, finishing the current item...")
				ix.Stop()
				<-sigCh
				cancel()
			}()

			return ix.Run(ctx, op, opts)
		},
	}
}

// setup dựng indexer với toàn bộ dependency từ file cấu hình.
func setup() (*indexer.Indexer, log.Logger, error) {
	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.NewCslLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	mysql, err := db.NewMysql(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var producer indexer.Publisher
	if config.Kafka.Enabled {
		p, err := kafka.NewProducer(config, logger, config.Kafka.Producer.TopicEntry)
		if err != nil {
			logger.Warn(context.Background(), "Change feed disabled: %v", err)
		} else {
			producer = p
		}
	}

	ix, err := indexer.NewIndexer(config, logger, mysql, producer)
	if err != nil {
		return nil, nil, err
	}
	return ix, logger, nil
}
