package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/service"
)

var registerCmd = &cobra.Command{
	Use:   "register <label> <photo>...",
	Short: "Register an identity from one or more photos",
	Long: `Register an identity. Every photo is embedded independently; photos without
a usable face are reported and skipped, the rest are averaged into one embedding.

Examples:
  facewatch register alice alice1.jpg alice2.jpg alice3.jpg
  facewatch register bob bob.png --metadata '{"gender":"m"}'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().String("metadata", "", "Identity metadata as a JSON object")
}

func runRegister(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	var metadata map[string]interface{}
	if raw := mustGetString(cmd, "metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return fmt.Errorf("invalid --metadata: %w", err)
		}
	}

	photos, err := readFiles(args[1:])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Engine.Register(ctx, service.RegisterRequest{
		Label:    args[0],
		Metadata: metadata,
		Photos:   photos,
	})
	if result != nil && !jsonOutput {
		printOutcomes(args[1:], result.Photos)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("Registered %q from %d of %d photos\n", result.Identity.Label, result.Used, len(photos))
	if result.LowSampleWarning {
		fmt.Printf("Warning: fewer than %d usable photos, matching may be unreliable\n", service.MinRecommendedPhotos)
	}
	if !result.Synced {
		fmt.Println("Warning: index resync failed, run `facewatch sync` on the server host")
	}

	return nil
}

func readFiles(paths []string) ([][]byte, error) {
	out := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		out = append(out, data)
	}
	return out, nil
}

func printOutcomes(paths []string, outcomes []service.PhotoOutcome) {
	for _, o := range outcomes {
		if o.OK || o.Index >= len(paths) {
			continue
		}
		fmt.Printf("  skipped %s: %s\n", paths[o.Index], o.Reason)
	}
}
