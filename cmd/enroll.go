package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-clock/internal/config"
	"github.com/kozaktomas/face-clock/internal/identitystore"
	"github.com/kozaktomas/face-clock/internal/pipeline"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <employee-id> <photo>",
	Short: "Enroll a worker's face with the identity store",
	Long: `Enroll a worker by extracting a face embedding from a photo and
registering it with the identity store. Re-enrolling an already registered
worker replaces the stored template.

The --box flag passes the detector's face box (x,y,w,h in pixels). Without
it the photo is center-cropped, which only works for tightly framed
portraits.

Examples:
  # Enroll from a portrait photo
  face-clock enroll emp-001 portrait.jpg

  # Enroll with a detector box
  face-clock enroll emp-001 capture.jpg --box 120,80,60,60

  # Let the store extract the embedding server-side
  face-clock enroll emp-001 capture.jpg --upload

  # Batch enroll a directory of <employee-id>.jpg photos
  face-clock enroll --dir ./photos`,
	Args: func(cmd *cobra.Command, args []string) error {
		if mustGetString(cmd, "dir") != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("box", "", "Detector face box as x,y,w,h in pixels")
	enrollCmd.Flags().Bool("upload", false, "Send the raw photo and let the store extract the embedding")
	enrollCmd.Flags().String("dir", "", "Batch enroll every <employee-id>.jpg in a directory")
}

// enrollOne extracts and registers a single worker.
func enrollOne(ctx context.Context, p *pipeline.Pipeline, client *identitystore.Client, employeeID, photoPath, box string, upload bool) (*identitystore.RegistrationResult, error) {
	photo, err := readPhoto(photoPath)
	if err != nil {
		return nil, err
	}

	if upload {
		return client.Register(ctx, employeeID, identitystore.ImagePayload(photo))
	}

	frame, err := parseBox(box)
	if err != nil {
		return nil, err
	}
	return p.Enroll(ctx, client, employeeID, pipeline.Capture{Photo: photo, Frame: frame})
}

// enrollDir walks a directory of <employee-id>.<ext> photos and enrolls each.
func enrollDir(ctx context.Context, p *pipeline.Pipeline, client *identitystore.Client, dir string, upload bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var photos []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".webp":
			photos = append(photos, e.Name())
		}
	}
	if len(photos) == 0 {
		return fmt.Errorf("no photos found in %s", dir)
	}

	bar := progressbar.Default(int64(len(photos)), "enrolling")
	enrolled := 0
	failed := 0
	for _, name := range photos {
		employeeID := strings.TrimSuffix(name, filepath.Ext(name))
		_, err := enrollOne(ctx, p, client, employeeID, filepath.Join(dir, name), "", upload)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "\n%s: %v\n", employeeID, err)
		} else {
			enrolled++
		}
		_ = bar.Add(1)
	}

	fmt.Printf("\nEnrolled: %d, Failed: %d\n", enrolled, failed)
	if failed > 0 {
		return fmt.Errorf("%d enrollments failed", failed)
	}
	return nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	upload := mustGetBool(cmd, "upload")

	client, err := newStoreClient(cfg)
	if err != nil {
		return err
	}

	// The local pipeline is only needed when extracting client-side.
	var p *pipeline.Pipeline
	if !upload {
		if p, err = newPipeline(cfg); err != nil {
			return err
		}
	}

	ctx := cmd.Context()

	if dir := mustGetString(cmd, "dir"); dir != "" {
		return enrollDir(ctx, p, client, dir, upload)
	}

	result, err := enrollOne(ctx, p, client, args[0], args[1], mustGetString(cmd, "box"), upload)
	if err != nil {
		if identitystore.IsRejection(err) {
			return fmt.Errorf("store rejected the enrollment: %w", err)
		}
		return err
	}

	fmt.Printf("Enrolled %s", result.EmployeeID)
	if result.EmployeeName != "" {
		fmt.Printf(" (%s)", result.EmployeeName)
	}
	if result.Message != "" {
		fmt.Printf(": %s", result.Message)
	}
	fmt.Println()
	return nil
}
