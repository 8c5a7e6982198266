package cmd

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facematch"
	"github.com/kozaktomas/facegate/internal/inference"
	"github.com/kozaktomas/facegate/internal/recognition"
	"github.com/kozaktomas/facegate/internal/source"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <image> <label>",
	Short: "Add a face template from an image",
	Long: `Detect the face in an image, compute its embedding and append it to the
template database under the given label.

Exactly one face is expected. When several are found the first one reported by the
detector is enrolled and a warning is printed; use --debug-image to check which.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("debug-image", "", "Write a JPEG with the enrolled face outlined in blue, others in green")
}

func newEnroller(cfg *config.Config, db *database.Database) (*recognition.Enroller, error) {
	order, err := facematch.ParseChannelOrder(cfg.Recognition.ChannelOrder)
	if err != nil {
		return nil, err
	}
	return recognition.NewEnroller(
		inference.NewDetector(cfg.Detector.URL, cfg.Detector.Timeout),
		inference.NewEmbedder(cfg.Embedder.URL, cfg.Embedder.Timeout),
		db,
		order,
	), nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	imagePath, label := args[0], args[1]
	debugPath := mustGetString(cmd, "debug-image")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	enroller, err := newEnroller(cfg, db)
	if err != nil {
		return err
	}

	img, err := source.LoadImage(imagePath)
	if err != nil {
		return err
	}

	res, err := enroller.Enroll(ctx, img, label)
	if debugPath != "" && len(res.Regions) > 0 {
		if werr := writeDebugImage(debugPath, img, res.Regions); werr != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", werr)
		} else {
			fmt.Printf("Debug image written to %s\n", debugPath)
		}
	}
	if err != nil {
		if errors.Is(err, recognition.ErrNoFaceDetected) {
			return fmt.Errorf("%s: %w", imagePath, err)
		}
		return err
	}

	if res.Warning != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", res.Warning)
	}
	fmt.Printf("Enrolled %q from %s (face at %v)\n", res.Label, imagePath, res.Region)
	fmt.Printf("Database now holds %d templates in %s\n", db.Len(), db.StoreName())
	return nil
}

// writeDebugImage saves img with the first region outlined as chosen.
func writeDebugImage(path string, img image.Image, regions []image.Rectangle) error {
	f, err := os.Create(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("failed to create debug image: %w", err)
	}
	defer f.Close()

	annotated := facematch.DrawBoxes(img, regions, 0)
	if err := jpeg.Encode(f, annotated, &jpeg.Options{Quality: constants.DebugImageQuality}); err != nil {
		return fmt.Errorf("failed to encode debug image: %w", err)
	}
	return nil
}
