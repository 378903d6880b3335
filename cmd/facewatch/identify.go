package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/vision"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Identify the face in an image file",
	Long: `Identify the most prominent face in an image against the gallery.

Examples:
  facewatch identify suspect.jpg
  facewatch identify suspect.jpg --top 5`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
	identifyCmd.Flags().Int("top", 0, "Also list the k nearest identities regardless of threshold")
}

type identifyOutput struct {
	Result     domain.MatchResult `json:"result"`
	Candidates []domain.Candidate `json:"candidates,omitempty"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	top := mustGetInt(cmd, "top")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	img, err := vision.Decode(data)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := identifyOutput{}
	out.Result, err = a.Engine.Identify(ctx, img)
	if err != nil {
		return err
	}

	embedded := out.Result.Status == domain.MatchStatusMatched || out.Result.Status == domain.MatchStatusUnknown
	if top > 0 && embedded {
		out.Candidates, err = a.Engine.Candidates(ctx, img, top)
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		return outputJSON(out)
	}

	switch out.Result.Status {
	case domain.MatchStatusNoFace:
		fmt.Printf("No face: %s\n", out.Result.Reason)
	case domain.MatchStatusExtractionFailed:
		fmt.Printf("Extraction failed: %s\n", out.Result.Reason)
	case domain.MatchStatusMatched:
		fmt.Printf("Matched %s (score %.4f)\n", out.Result.Label, out.Result.Score)
	default:
		fmt.Printf("Unknown (best score %.4f)\n", out.Result.Score)
	}
	for i, c := range out.Candidates {
		fmt.Printf("  %d. %-24s %.4f\n", i+1, c.Label, c.Similarity)
	}

	return nil
}
