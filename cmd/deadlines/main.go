package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"deadlineTracker/internal/app"
	"deadlineTracker/internal/config"
	"deadlineTracker/internal/export"
	"deadlineTracker/internal/logger"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "deadlines",
		Short: "Academic deadline tracker",
		Long: `Deadlines reads recent course mail, extracts assignment and quiz
deadlines with a language model and keeps them in a local store
that can be browsed over HTTP or Telegram.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yml (default ./config.yml)")

	rootCmd.AddCommand(ingestCmd(), serveCmd(), migrateCmd(), exportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup читает конфиг и поднимает приложение; вызывающий обязан сделать Close
func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("конфигурация: %w", err)
	}
	a := app.New(cfg)
	if err := a.Init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion cycle: cleanup, fetch mail, extract, store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.RunIngest(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), report.String())
			if err != nil {
				logger.Error("Command: Цикл загрузки завершился с ошибкой", err)
				return err
			}
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API, the Telegram bot and scheduled ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Serve(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the deadline store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		filter string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write deadlines matching a filter to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			svc := a.Service()
			f, rows, err := svc.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if err := export.WriteXLSXFile(out, rows, svc.Today()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s deadline(s) written to %s\n", len(rows), f.Name, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "filter text: latest, quiz, assignment or done")
	cmd.Flags().StringVarP(&out, "out", "o", "deadlines.xlsx", "output file")
	return cmd
}
