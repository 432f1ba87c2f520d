package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tradedoc/internal/app"
	"tradedoc/internal/config"
	"tradedoc/internal/db"
	"tradedoc/internal/ingest"
	"tradedoc/internal/logger"
	"tradedoc/internal/reminder"
	"tradedoc/internal/store"
)

func setup() (*config.Config, *store.GormStore, zerolog.Logger, error) {
	log := logger.New()
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, log, fmt.Errorf("failed to load config: %w", err)
	}
	st, err := app.OpenStore(cfg, log)
	if err != nil {
		return nil, nil, log, err
	}
	return cfg, st, log, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New()
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			gdb, err := db.InitDB(cfg.DBDriver, cfg.DatabaseURL, cfg.DBLogLevel)
			if err != nil {
				return err
			}
			return db.Migrate(gdb, log)
		},
	}
}

func readWorkbook(path string) ([]ingest.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.ReadWorkbook(f)
}

func importCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "import [file.xlsx]",
		Short: "Import a batch of transactions from a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, log, err := setup()
			if err != nil {
				return err
			}
			rows, err := readWorkbook(args[0])
			if err != nil {
				return err
			}

			importer := ingest.NewImporter(st, ingest.Options{Strict: strict || cfg.ImportStrict}, log)
			report, err := importer.Import(cmd.Context(), rows)
			var batchErr *ingest.BatchError
			if errors.As(err, &batchErr) {
				for _, re := range batchErr.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), re.String())
				}
				return fmt.Errorf("batch rejected with %d errors", len(batchErr.Errors))
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "require a document and a contract reference on every row")
	return cmd
}

func customersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "Manage customer contacts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import [file.xlsx]",
		Short: "Upsert customers from a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, _, err := setup()
			if err != nil {
				return err
			}
			rows, err := readWorkbook(args[0])
			if err != nil {
				return err
			}
			customers, rowErrs := ingest.NormalizeCustomers(rows)
			if len(rowErrs) > 0 {
				for _, re := range rowErrs {
					fmt.Fprintln(cmd.ErrOrStderr(), re.String())
				}
				return fmt.Errorf("customers rejected with %d errors", len(rowErrs))
			}
			n, err := st.UpsertCustomers(cmd.Context(), customers)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d customers imported\n", n)
			return nil
		},
	})
	return cmd
}

func newScheduler(cfg *config.Config, st *store.GormStore, log zerolog.Logger) (*reminder.Scheduler, func(), error) {
	if cfg.RedisURL == "" {
		return nil, nil, errors.New("REDIS_URL is required: deferred reminders are handed to the worker")
	}
	queue, err := app.OpenQueue(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	s := reminder.NewScheduler(st, app.NewNotifier(cfg, st, log), queue.Deferrer(), reminder.Options{
		LeadDays:     cfg.ReminderLeadDays,
		DispatchHour: cfg.ReminderDispatchHour,
		Location:     cfg.Location,
		DefaultFrom:  cfg.SMTPFrom,
	}, log)
	return s, queue.Close, nil
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, log, err := setup()
			if err != nil {
				return err
			}
			scheduler, closeQueue, err := newScheduler(cfg, st, log)
			if err != nil {
				return err
			}
			defer closeQueue()

			res, err := scheduler.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Inspect and repair reminder state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset [trref]",
		Short: "Release a stuck reminder claim so the next sweep retries it",
		Long: `Release a claimed but unsent reminder.

A reminder whose delivery failed keeps its claim and is never retried on its
own. After checking the customer's address, reset it and the next sweep picks
it up again. Reminders already sent cannot be reset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, _, err := setup()
			if err != nil {
				return err
			}
			if err := st.ResetReminderClaim(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to reset %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reminder claim for %s released\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "recover",
		Short: "Re-queue deferred reminders whose claim is still pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, log, err := setup()
			if err != nil {
				return err
			}
			scheduler, closeQueue, err := newScheduler(cfg, st, log)
			if err != nil {
				return err
			}
			defer closeQueue()

			n, err := scheduler.Recover(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d reminders re-queued\n", n)
			return nil
		},
	})

	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
