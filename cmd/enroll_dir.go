package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/recognition"
	"github.com/kozaktomas/facegate/internal/source"
)

var enrollDirCmd = &cobra.Command{
	Use:   "enroll-dir <dir>",
	Short: "Enroll every image in a directory tree",
	Long: `Enroll images laid out as one sub-directory per label:

  people/
    Ali/front.jpg
    Ali/side.jpg
    Sara/1.png

Images are enrolled in label order, then file name order. A failing image is
reported and skipped; the rest are still enrolled. A failure to write the
database stops the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollDir,
}

func init() {
	rootCmd.AddCommand(enrollDirCmd)
}

type enrollJob struct {
	label string
	path  string
}

func collectEnrollJobs(root string) ([]enrollJob, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var jobs []enrollJob
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := source.ListImages(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			jobs = append(jobs, enrollJob{label: e.Name(), path: f})
		}
	}
	return jobs, nil
}

func enrollFile(ctx context.Context, enroller *recognition.Enroller, job enrollJob) (recognition.EnrollResult, error) {
	img, err := source.LoadImage(job.path)
	if err != nil {
		return recognition.EnrollResult{}, err
	}
	return enroller.Enroll(ctx, img, job.label)
}

// stopsBatch reports whether an enrollment error means the store can no longer be
// written. Rejected labels or images only fail their own file.
func stopsBatch(err error) bool {
	var persistErr *database.PersistError
	return errors.As(err, &persistErr)
}

func runEnrollDir(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	jobs, err := collectEnrollJobs(args[0])
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No images found")
		return nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	enroller, err := newEnroller(cfg, db)
	if err != nil {
		return err
	}

	fmt.Printf("Enrolling %d images from %s\n", len(jobs), args[0])
	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var successCount, warningCount int
	var failures []string
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}

		res, err := enrollFile(ctx, enroller, job)
		switch {
		case stopsBatch(err):
			_ = bar.Finish()
			return fmt.Errorf("stopping after %d enrolled: %w", successCount, err)
		case err != nil:
			failures = append(failures, fmt.Sprintf("%s: %v", job.path, err))
		case res.Warning != nil:
			warningCount++
			successCount++
		default:
			successCount++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Println()

	fmt.Printf("Enrolled: %d, with multiple faces: %d, failed: %d\n", successCount, warningCount, len(failures))
	for _, f := range failures {
		fmt.Printf("  %s\n", f)
	}
	fmt.Printf("Database now holds %d templates in %s\n", db.Len(), db.StoreName())
	return nil
}
