package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/ta-engine/engine"
	"github.com/warp/ta-engine/export"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export payroll batches and allocation reports",
	}
	cmd.AddCommand(exportPayrollCmd())
	cmd.AddCommand(exportReportCmd())
	return cmd
}

func exportPayrollCmd() *cobra.Command {
	var stdout bool

	cmd := &cobra.Command{
		Use:   "payroll <posting>",
		Short: "Write the next payroll batch of a posting as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openService()
			if err != nil {
				return err
			}
			defer store.Close()

			batch, err := export.NewExporter(store, log).PayrollBatch(cmd.Context(), engine.PostingID(args[0]))
			if err != nil {
				return err
			}
			if stdout {
				return batch.WriteCSV(cmd.OutOrStdout())
			}

			path := filepath.Join(cfg.Export.Dir, batch.ID+".csv")
			if err := writeFile(path, batch.WriteCSV); err != nil {
				return err
			}
			log.Info("payroll batch written", zap.String("path", path), zap.Int("rows", len(batch.Rows)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&stdout, "stdout", false, "write to stdout instead of export.dir")
	return cmd
}

func exportReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <posting>",
		Short: "Write the allocation workbook of a posting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, service, err := openService()
			if err != nil {
				return err
			}
			defer store.Close()

			p, allocations, err := service.PostingAllocations(cmd.Context(), engine.PostingID(args[0]))
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Export.Dir, fmt.Sprintf("allocations_%s.xlsx", p.ID))
			err = writeFile(path, func(w io.Writer) error {
				return export.WriteAllocationReport(w, p, allocations)
			})
			if err != nil {
				return err
			}
			log.Info("allocation report written", zap.String("path", path), zap.Int("offerings", len(allocations)))
			return nil
		},
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
