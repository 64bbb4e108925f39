package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/scribe/internal/agents"
	"github.com/haasonsaas/scribe/internal/blob"
	"github.com/haasonsaas/scribe/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the event listener with health and metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, configPath, false)
			if err != nil {
				return err
			}

			srv := server.New(rt.orch, rt.health, rt.logger)
			if err := srv.Start(ctx, rt.cfg.Server.Addr); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-stop:
				rt.logger.Info(ctx, "shutting down", "signal", sig.String())
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newProcessCmd() *cobra.Command {
	var localFile string
	var key string

	cmd := &cobra.Command{
		Use:   "process [key]",
		Short: "Process one transcript and print its aggregate result",
		Long: `Process a single transcript through the full routing pipeline.

With a key argument, the transcript is read from the configured bucket.
With --local-file, the file is loaded into an in-memory store instead and the
repository processor stays disabled; nothing leaves the machine.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			local := localFile != ""

			switch {
			case local && len(args) > 0:
				return fmt.Errorf("pass either a key or --local-file, not both")
			case !local && len(args) == 0:
				return fmt.Errorf("a transcript key is required unless --local-file is set")
			}

			rt, err := buildRuntime(ctx, configPath, local)
			if err != nil {
				return err
			}

			if local {
				data, err := os.ReadFile(localFile)
				if err != nil {
					return err
				}
				if key == "" {
					name := strings.TrimSuffix(filepath.Base(localFile), filepath.Ext(localFile))
					key = fmt.Sprintf("transcripts/unclassified/%s/%s.txt",
						time.Now().UTC().Format("2006/01/02"), name)
				}
				if err := rt.store.Put(ctx, key, data, "text/plain"); err != nil {
					return err
				}
			} else {
				key = args[0]
			}

			if err := rt.orch.ProcessKey(ctx, key, ""); err != nil {
				return err
			}

			parsed, err := blob.ParseTranscriptKey(key)
			if err != nil {
				return err
			}
			aggregate, err := rt.store.Get(ctx, parsed.OutputKey())
			if err != nil {
				return fmt.Errorf("read aggregate: %w", err)
			}
			fmt.Println(string(aggregate))
			return nil
		},
	}
	cmd.Flags().StringVar(&localFile, "local-file", "", "process a local transcript file with an in-memory store")
	cmd.Flags().StringVar(&key, "key", "", "object key to use for --local-file (default transcripts/unclassified/<today>/<name>.txt)")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe blob store, secrets, and model reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, configPath, false)
			if err != nil {
				return err
			}

			report := rt.health.Run(ctx)
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			if !report.OK {
				return fmt.Errorf("health check failed")
			}
			return nil
		},
	}
}

func newLedgerCmd() *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the repository idempotency ledger",
	}
	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Report duplicate hashes and malformed lines in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, configPath, false)
			if err != nil {
				return err
			}

			report, err := agents.VerifyLedger(ctx, rt.store)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			if !report.Clean() {
				return fmt.Errorf("ledger has defects")
			}
			return nil
		},
	})
	return ledgerCmd
}
