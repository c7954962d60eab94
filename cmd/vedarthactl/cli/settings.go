package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thetaxjournal/accountsvedartha/internal/payroll"
	"github.com/thetaxjournal/accountsvedartha/internal/platform/db"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
	"github.com/thetaxjournal/accountsvedartha/internal/store"
)

// LoadSettings decodes a statutory settings seed file and validates it.
func LoadSettings(r io.Reader) (payroll.Settings, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s payroll.Settings
	if err := dec.Decode(&s); err != nil {
		return payroll.Settings{}, shared.NewValidationError("settings", "decode yaml: %v", err)
	}
	if err := shared.ValidateStruct(s); err != nil {
		return payroll.Settings{}, err
	}
	return s, nil
}

func newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and seed payroll statutory settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Validate a settings seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettingsFile(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	})

	var dsn string
	seed := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Write a settings seed file to the document store, bumping its version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettingsFile(args[0])
			if err != nil {
				return err
			}
			if dsn == "" {
				return &shared.ConfigurationError{Setting: "PG_DSN", Message: "required to seed settings"}
			}
			pool, err := db.New(cmd.Context(), dsn, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := store.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			saved, err := seedSettings(cmd.Context(), store.NewPostgres(pool), s)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "payroll settings stored as version %d\n", saved.Version)
			return err
		},
	}
	seed.Flags().StringVar(&dsn, "dsn", os.Getenv("PG_DSN"), "Postgres DSN (default $PG_DSN)")
	cmd.AddCommand(seed)
	return cmd
}

func seedSettings(ctx context.Context, st store.Store, s payroll.Settings) (payroll.Settings, error) {
	svc := payroll.NewService(st, payroll.NewEngine(nil, payroll.MissingFullPay), payroll.NewMemoryLocker())
	return svc.UpsertSettings(ctx, s)
}

func loadSettingsFile(path string) (payroll.Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return payroll.Settings{}, err
	}
	defer f.Close()
	return LoadSettings(f)
}
