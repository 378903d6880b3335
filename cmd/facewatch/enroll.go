package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/service"
)

var enrollDirCmd = &cobra.Command{
	Use:   "enroll-dir <dir>",
	Short: "Register every identity found in a directory tree",
	Long: `Register identities in bulk. Each subdirectory of <dir> is one identity:
its name is the label and the image files inside are the photos.

  people/
    alice/ 1.jpg 2.jpg 3.jpg
    bob/   front.png

Labels that already exist are skipped.

Examples:
  facewatch enroll-dir ./people
  facewatch enroll-dir ./people --json`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollDir,
}

func init() {
	rootCmd.AddCommand(enrollDirCmd)
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

// enrollment is one identity discovered on disk
type enrollment struct {
	Label  string
	Photos []string
}

// EnrollResult summarizes a bulk enrollment
type EnrollResult struct {
	Registered []string          `json:"registered"`
	Duplicates []string          `json:"duplicates"`
	Failed     map[string]string `json:"failed"`
	LowSample  []string          `json:"low_sample"`
}

// collectEnrollments lists identity directories in label order, skipping those without images
func collectEnrollments(root string) ([]enrollment, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	var out []enrollment
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}

		var photos []string
		for _, f := range files {
			if f.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			photos = append(photos, filepath.Join(dir, f.Name()))
		}
		if len(photos) == 0 {
			continue
		}
		sort.Strings(photos)

		out = append(out, enrollment{Label: entry.Name(), Photos: photos})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func runEnrollDir(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	enrollments, err := collectEnrollments(args[0])
	if err != nil {
		return err
	}
	if len(enrollments) == 0 {
		return fmt.Errorf("no identity directories with images under %s", args[0])
	}

	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(enrollments),
			progressbar.OptionSetDescription("Enrolling"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("identities"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	result := EnrollResult{
		Registered: []string{},
		Duplicates: []string{},
		Failed:     map[string]string{},
		LowSample:  []string{},
	}

	for _, e := range enrollments {
		if err := ctx.Err(); err != nil {
			return err
		}

		reg, err := enrollOne(cmd, a.Engine, e)
		switch {
		case errors.Is(err, domain.ErrDuplicateLabel):
			result.Duplicates = append(result.Duplicates, e.Label)
		case err != nil:
			result.Failed[e.Label] = err.Error()
		default:
			result.Registered = append(result.Registered, e.Label)
			if reg.LowSampleWarning {
				result.LowSample = append(result.LowSample, e.Label)
			}
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("\nRegistered: %d, already present: %d, failed: %d\n",
		len(result.Registered), len(result.Duplicates), len(result.Failed))
	for label, reason := range result.Failed {
		fmt.Printf("  %s: %s\n", label, reason)
	}
	if len(result.LowSample) > 0 {
		fmt.Printf("Fewer than %d usable photos: %s\n", service.MinRecommendedPhotos, strings.Join(result.LowSample, ", "))
	}

	return nil
}

func enrollOne(cmd *cobra.Command, engine *service.Engine, e enrollment) (*service.RegistrationResult, error) {
	photos, err := readFiles(e.Photos)
	if err != nil {
		return nil, err
	}

	return engine.Register(cmd.Context(), service.RegisterRequest{
		Label:  e.Label,
		Photos: photos,
	})
}
