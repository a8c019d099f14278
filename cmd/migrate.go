package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dialer/internal/store/reconcile"
)

var ledgerPath string

func resolveLedgerPath() string {
	if ledgerPath != "" {
		return ledgerPath
	}
	if v := os.Getenv("DIALER_LEDGER_PATH"); v != "" {
		return v
	}
	return "dialer-reconcile.db"
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the reconciliation ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := reconcile.Open(resolveLedgerPath())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := reconcile.Migrate(db); err != nil {
				return err
			}
			fmt.Println("dialer: ledger schema up to date")
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "path to the reconciliation ledger SQLite file (default: ./dialer-reconcile.db)")
	return cmd
}
