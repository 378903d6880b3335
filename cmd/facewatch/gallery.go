package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load the gallery and report what the index would contain",
	Long: `Fetch every stored identity, rebuild an index from it and report how many
records were loaded or skipped. Useful to spot corrupt rows before a deploy.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show gallery statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var showCmd = &cobra.Command{
	Use:   "show <label>",
	Short: "Show a stored identity and its metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <label>",
	Short: "Delete an identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, ok := a.Synchronizer.LastReport()
	if !ok {
		return fmt.Errorf("no sync report available")
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(report)
	}

	fmt.Printf("Loaded %d identities, skipped %d, in %s\n", report.Loaded, report.Skipped, report.Duration)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Engine.Stats(ctx)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(stats)
	}

	fmt.Printf("Stored identities: %d\n", stats.Stored)
	fmt.Printf("Index:             %s, %d entries, dim %d, threshold %.2f\n",
		stats.Index.Kind, stats.Index.Size, stats.Index.Dimension, stats.Index.Threshold)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Engine.Delete(ctx, args[0]); err != nil {
		return err
	}

	fmt.Printf("Deleted %q\n", args[0])
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := a.Engine.Identity(ctx, args[0])
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(identity)
	}

	fmt.Printf("Label:      %s\n", identity.Label)
	fmt.Printf("ID:         %s\n", identity.ID)
	fmt.Printf("Photos:     %d\n", identity.PhotoCount)
	fmt.Printf("Registered: %s\n", identity.CreatedAt.Format("2006-01-02 15:04:05"))

	keys := make([]string, 0, len(identity.Metadata))
	for k := range identity.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, identity.Metadata[k])
	}
	return nil
}
