package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fuelsite-cloud/internal/audit"
	cashbox "fuelsite-cloud/internal/cashbox/domain"
	metering "fuelsite-cloud/internal/metering/domain"
	meteringrepo "fuelsite-cloud/internal/metering/infrastructure/postgres"
	snapshotfile "fuelsite-cloud/internal/metering/infrastructure/yamlfile"
	reconciliation "fuelsite-cloud/internal/reconciliation/domain"
	reconhttp "fuelsite-cloud/internal/reconciliation/interfaces/http"
	"fuelsite-cloud/migrations"
)

var (
	dayFlag      string
	liveFlag     bool
	sessionFlag  string
	snapshotFile string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrations.Up(db); err != nil {
			return err
		}
		version, dirty, err := migrations.Version(db)
		if err != nil {
			return err
		}
		logger.WithField("version", version).WithField("dirty", dirty).Info("schema up to date")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Print the meter reconciliation of an operating day as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := cashbox.ParseOperatingDay(dayFlag)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		mode := reconciliation.ModeFinal
		if liveFlag {
			mode = reconciliation.ModeLive
		}
		report, err := a.reconciliation.Reconcile(cmd.Context(), day, mode)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", cashbox.FormatDay(day), err)
		}
		return printJSON(reconhttp.ToReportResponse(report))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether an operating day has an open session",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := cashbox.ParseOperatingDay(dayFlag)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.lifecycle.OperatingDayStatus(cmd.Context(), day)
		if err != nil {
			return err
		}
		out := map[string]any{
			"operating_day": cashbox.FormatDay(status.OperatingDay),
			"status":        status.Status,
		}
		if status.Session != nil {
			out["session_id"] = status.Session.ID
			out["shift_label"] = status.Session.ShiftLabel
			out["opened_at"] = status.Session.OpenedAt
			out["closed_at"] = status.Session.ClosedAt
		}
		return printJSON(out)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print the audit trail of a session as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := audit.NewRepository(db).ListForResource(cmd.Context(), audit.ResourceSession, sessionFlag)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("no audit entries for session %s", sessionFlag)
		}
		return printJSON(entries)
	},
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Deliver pending session events from the outbox once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		sent, err := a.dispatcher.Dispatch(cmd.Context(), 0)
		if err != nil {
			return err
		}
		logger.WithField("sent", sent).Info("outbox relayed")
		return nil
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage meter snapshots",
}

var snapshotsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load meter snapshots from a YAML export into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := importSnapshots(cmd.Context(), meteringrepo.NewSnapshotRepository(db), snapshotFile)
		if err != nil {
			return err
		}
		logger.WithField("file", snapshotFile).WithField("snapshots", count).Info("snapshots imported")
		return nil
	},
}

// importSnapshots appends every snapshot in path. Already stored readings are skipped.
func importSnapshots(ctx context.Context, writer metering.SnapshotWriter, path string) (int, error) {
	snapshots, err := snapshotfile.Load(path)
	if err != nil {
		return 0, err
	}
	if err := writer.AppendSnapshots(ctx, snapshots); err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	return len(snapshots), nil
}

func init() {
	for _, cmd := range []*cobra.Command{reconcileCmd, statusCmd} {
		cmd.Flags().StringVar(&dayFlag, "day", "", "operating day (YYYY-MM-DD)")
		_ = cmd.MarkFlagRequired("day")
	}
	reconcileCmd.Flags().BoolVar(&liveFlag, "live", false, "preview a still-open session against now")
	auditCmd.Flags().StringVar(&sessionFlag, "session", "", "session id")
	_ = auditCmd.MarkFlagRequired("session")
	snapshotsImportCmd.Flags().StringVar(&snapshotFile, "file", "", "YAML file with a snapshots list")
	_ = snapshotsImportCmd.MarkFlagRequired("file")
	snapshotsCmd.AddCommand(snapshotsImportCmd)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
