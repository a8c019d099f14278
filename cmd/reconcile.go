package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dialer/internal/callcenter"
	"github.com/nextlevelbuilder/dialer/internal/config"
	"github.com/nextlevelbuilder/dialer/internal/store"
	"github.com/nextlevelbuilder/dialer/internal/store/reconcile"
)

var reconcileCallCenterID string

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair queue/agent membership drift and record it to the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&reconcileCallCenterID, "call-center", "", "call center id to reconcile (required)")
	cmd.MarkFlagRequired("call-center")
	cmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "path to the reconciliation ledger SQLite file (default: ./dialer-reconcile.db)")
	return cmd
}

func runReconcile(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	backend := store.New(store.Config{Addr: cfg.RedisAddr(), Password: cfg.RedisPassword})
	defer backend.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := backend.Ping(pingCtx); err != nil {
		return err
	}
	repo := callcenter.New(backend)

	db, err := reconcile.Open(resolveLedgerPath())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := reconcile.Migrate(db); err != nil {
		return err
	}
	ledger := reconcile.NewLedger(db)

	repaired, err := reconcile.Reconcile(ctx, repo, ledger, reconcileCallCenterID)
	if err != nil {
		return err
	}
	fmt.Printf("dialer: reconcile complete, %d membership repairs made for %s\n", repaired, reconcileCallCenterID)
	return nil
}
