package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-clock/internal/config"
	"github.com/kozaktomas/face-clock/internal/identitystore"
	"github.com/kozaktomas/face-clock/internal/pipeline"
)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Submit a clock-in or clock-out verification",
}

var clockInCmd = &cobra.Command{
	Use:   "in <photo>",
	Short: "Verify a face and record a clock-in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClock(cmd, identitystore.ModeClockIn, args[0])
	},
}

var clockOutCmd = &cobra.Command{
	Use:   "out <photo>",
	Short: "Verify a face and record a clock-out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClock(cmd, identitystore.ModeClockOut, args[0])
	},
}

func init() {
	rootCmd.AddCommand(clockCmd)
	clockCmd.AddCommand(clockInCmd)
	clockCmd.AddCommand(clockOutCmd)

	for _, c := range []*cobra.Command{clockInCmd, clockOutCmd} {
		c.Flags().String("box", "", "Detector face box as x,y,w,h in pixels")
		c.Flags().Bool("upload", false, "Send the raw photo and let the store extract the embedding")
		c.Flags().Bool("json", false, "Output the outcome as JSON")
	}
}

func runClock(cmd *cobra.Command, mode identitystore.Mode, photoPath string) error {
	cfg := config.Load()
	upload := mustGetBool(cmd, "upload")

	client, err := newStoreClient(cfg)
	if err != nil {
		return err
	}

	photo, err := readPhoto(photoPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var outcome *identitystore.VerificationOutcome
	if upload {
		outcome, err = client.Verify(ctx, mode, identitystore.ImagePayload(photo))
	} else {
		var p *pipeline.Pipeline
		if p, err = newPipeline(cfg); err != nil {
			return err
		}
		frame, boxErr := parseBox(mustGetString(cmd, "box"))
		if boxErr != nil {
			return boxErr
		}
		outcome, err = p.Clock(ctx, client, mode, pipeline.Capture{Photo: photo, Frame: frame})
	}
	if err != nil {
		if identitystore.IsAuthError(err) {
			return fmt.Errorf("store rejected the credentials: %w", err)
		}
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(outcome)
	}

	printOutcome(outcome)
	return nil
}

// printOutcome renders a verification decision for the terminal operator.
// recognized=false is a normal decision, not a failure exit.
func printOutcome(outcome *identitystore.VerificationOutcome) {
	if outcome.Recognized {
		fmt.Printf("OK: %s", outcome.EmployeeID)
		if outcome.EmployeeName != "" {
			fmt.Printf(" (%s)", outcome.EmployeeName)
		}
	} else {
		fmt.Print("DENIED")
	}
	if outcome.Message != "" {
		fmt.Printf(" - %s", outcome.Message)
	}
	if outcome.Confidence != nil {
		fmt.Printf(" [confidence %.2f]", *outcome.Confidence)
	}
	fmt.Println()
}
