// generate.go - One-Shot Bildgenerierung ueber die Server-API.
//
// Dieses Modul enthaelt:
// - newGenerateCmd mit allen Flags
// - Progress-Anzeige und PNG-Speicherung
package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/latentforge/latentforge/api"
	"github.com/latentforge/latentforge/diffusion"
	"github.com/latentforge/latentforge/progress"
	"github.com/latentforge/latentforge/rng"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate PROMPT",
		Short: "Generate images from a text prompt",
		Args:  cobra.ExactArgs(1),
		RunE:  generateHandler,
	}

	cmd.Flags().String("negative", "", "Negative prompt")
	cmd.Flags().Int("steps", 25, "Denoising steps")
	cmd.Flags().Int("width", 512, "Image width")
	cmd.Flags().Int("height", 512, "Image height")
	cmd.Flags().Int("count", 1, "Number of images")
	cmd.Flags().Uint64("seed", 0, "Random seed")
	cmd.Flags().String("scheduler", "pndm", "Scheduler (pndm, dpm++)")
	cmd.Flags().String("rng", "numpy", "Random source (numpy, torch)")
	cmd.Flags().Float32("guidance", 7.5, "Guidance scale")
	cmd.Flags().String("image", "", "Starting image for image-to-image")
	cmd.Flags().Float32("strength", 0.75, "Image-to-image strength (0-1)")
	return cmd
}

func generateHandler(cmd *cobra.Command, args []string) error {
	schedulerName, _ := cmd.Flags().GetString("scheduler")
	if _, err := diffusion.ParseSchedulerKind(schedulerName); err != nil {
		names := make([]string, 0, 2)
		for _, k := range diffusion.SchedulerKinds() {
			names = append(names, string(k))
		}
		if hint := suggest(schedulerName, names); hint != "" {
			return fmt.Errorf("%w, did you mean %q?", err, hint)
		}
		return err
	}
	rngName, _ := cmd.Flags().GetString("rng")
	if _, err := rng.ParseKind(rngName); err != nil {
		names := make([]string, 0, 2)
		for _, k := range rng.Kinds() {
			names = append(names, string(k))
		}
		if hint := suggest(rngName, names); hint != "" {
			return fmt.Errorf("%w, did you mean %q?", err, hint)
		}
		return err
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	req := &api.GenerateRequest{
		Prompt:    args[0],
		Scheduler: schedulerName,
		RNG:       rngName,
	}
	req.NegativePrompt, _ = cmd.Flags().GetString("negative")
	req.Steps, _ = cmd.Flags().GetInt("steps")
	req.Width, _ = cmd.Flags().GetInt("width")
	req.Height, _ = cmd.Flags().GetInt("height")
	req.ImageCount, _ = cmd.Flags().GetInt("count")
	req.Seed, _ = cmd.Flags().GetUint64("seed")
	guidance, _ := cmd.Flags().GetFloat32("guidance")
	req.GuidanceScale = &guidance

	if path, _ := cmd.Flags().GetString("image"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		req.StartingImage = base64.StdEncoding.EncodeToString(raw)
		req.Strength, _ = cmd.Flags().GetFloat32("strength")
	}

	p := progress.NewProgress(os.Stderr)
	spinner := progress.NewSpinner("")
	p.Add(spinner)

	var stepBar *progress.StepBar
	var images []string
	err = client.Generate(cmd.Context(), req, func(resp api.GenerateResponse) error {
		if resp.TotalSteps > 0 {
			if stepBar == nil {
				spinner.Stop()
				stepBar = progress.NewStepBar("Generating", resp.TotalSteps)
				p.Add(stepBar)
			}
			stepBar.Set(resp.Step)
		}
		if resp.Done {
			images = resp.Images
		}
		return nil
	})
	p.StopAndClear()
	if err != nil {
		return err
	}

	saved := 0
	for i, encoded := range images {
		if encoded == "" {
			fmt.Fprintf(os.Stderr, "image %d was withheld by the safety checker\n", i+1)
			continue
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("decode image %d: %w", i+1, err)
		}

		filename := fmt.Sprintf("%s-%s-%d.png", sanitizeFilename(args[0]),
			time.Now().Format("20060102-150405"), i+1)
		if err := os.WriteFile(filename, data, 0o644); err != nil {
			return fmt.Errorf("save image: %w", err)
		}
		fmt.Printf("Image saved to: %s\n", filename)
		saved++
	}
	if saved == 0 && len(images) == 0 {
		fmt.Fprintln(os.Stderr, "generation produced no images")
	}
	return nil
}

// sanitizeFilename turns a prompt into a safe, short filename stem.
func sanitizeFilename(prompt string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(prompt) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteRune('-')
		}
	}
	name := strings.Trim(sb.String(), "-")
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "image"
	}
	return name
}
