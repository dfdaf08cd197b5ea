package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func cleanupCmd() *cobra.Command {
	var (
		dryRun    bool
		olderThan time.Duration
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale rendered documents from the render temp dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir := cfg.Render.TempDir
			if dir == "" {
				return fmt.Errorf("render.temp_dir is not configured; per-process temp dirs are removed when the server shuts down")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cleaning %s (older than %s, dry-run=%v)\n", dir, olderThan, dryRun)
			size, count, err := cleanRenderDir(dir, time.Now().Add(-olderThan), dryRun, out)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, strings.Repeat("=", 40))
			fmt.Fprintf(out, "Deleted files: %d\n", count)
			fmt.Fprintf(out, "Freed space: %s\n", formatSize(size))
			if dryRun {
				fmt.Fprintln(out, "DRY RUN - no files were deleted, run with --dry-run=false")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "only list files that would be deleted")
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "minimum age of files to delete")
	return cmd
}

// cleanRenderDir 删除修改时间早于 cutoff 的渲染残留文件，只处理顶层文件
func cleanRenderDir(dir string, cutoff time.Time, dryRun bool, out io.Writer) (int64, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read render dir: %w", err)
	}

	var totalSize int64
	var count int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		fmt.Fprintf(out, "  - %s (%s, %s old)\n", entry.Name(), formatSize(info.Size()), time.Since(info.ModTime()).Round(time.Minute))
		if !dryRun {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				fmt.Fprintf(out, "    failed to delete: %v\n", err)
				continue
			}
		}
		totalSize += info.Size()
		count++
	}
	return totalSize, count, nil
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
