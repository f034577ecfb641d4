package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mathsnap/api/internal/capture"
	"mathsnap/api/internal/pipeline"
)

func solveCmd() *cobra.Command {
	var (
		lang    string
		crop    string
		unit    string
		display string
		noSave  bool
	)
	cmd := &cobra.Command{
		Use:   "solve FILE",
		Short: "Solve the problem in an image file",
		Long: `Read an image (JPEG, PNG, GIF or WebP), optionally crop it, recognize and
solve the problem, and store the result in the --owner history.

Crop rectangles are x,y,width,height in percent (default) or pixels:
  mathsnap solve page.jpg --crop 10,20,80,30
  mathsnap solve page.jpg --crop 40,60,300,120 --unit px --display 800x600`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			var region *capture.CropRegion
			if crop != "" {
				r, err := parseCrop(crop, unit)
				if err != nil {
					return err
				}
				region = &r
			}
			disp, err := parseSize(display)
			if err != nil {
				return err
			}

			img, err := cropImage(cmd, data, region, disp)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			in := pipeline.Input{Image: img.Data, MIME: img.MIME, Language: lang}
			var res pipeline.Result
			if noSave {
				in.Owner = owner
				res, err = a.pipe.Process(ctx, in)
			} else {
				res, err = a.pipe.ProcessAndSave(ctx, owner, in)
			}
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), res.Record)
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "answer language code (e.g. pt)")
	cmd.Flags().StringVar(&crop, "crop", "", "crop rectangle x,y,width,height")
	cmd.Flags().StringVar(&unit, "unit", "%", "crop unit: % or px")
	cmd.Flags().StringVar(&display, "display", "", "display size WxH the px crop refers to (default: natural size)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the result in history")
	return cmd
}

// cropImage runs the bytes through a capture session so the CLI emits
// exactly what an interactive client would.
func cropImage(cmd *cobra.Command, data []byte, region *capture.CropRegion, display capture.Size) (capture.Image, error) {
	s := capture.NewSession(nil, capture.Options{Logger: slog.Default()})
	defer s.Close()

	if err := s.Upload(data); err != nil {
		return capture.Image{}, err
	}
	if region == nil {
		// no crop requested: keep the whole image
		region = &capture.CropRegion{Width: 100, Height: 100, Unit: capture.UnitPercent}
	}
	if err := s.SetCrop(*region, display); err != nil {
		return capture.Image{}, err
	}
	return s.Confirm(cmd.Context())
}

func parseCrop(s, unit string) (capture.CropRegion, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return capture.CropRegion{}, fmt.Errorf("crop must be x,y,width,height: %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return capture.CropRegion{}, fmt.Errorf("crop value %q: %w", p, err)
		}
		v[i] = f
	}
	u := capture.Unit(unit)
	if u != capture.UnitPercent && u != capture.UnitPixel {
		return capture.CropRegion{}, fmt.Errorf("unit must be %% or px, got %q", unit)
	}
	return capture.CropRegion{X: v[0], Y: v[1], Width: v[2], Height: v[3], Unit: u}, nil
}

func parseSize(s string) (capture.Size, error) {
	if s == "" {
		return capture.Size{}, nil
	}
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return capture.Size{}, fmt.Errorf("size must be WIDTHxHEIGHT: %q", s)
	}
	wi, err1 := strconv.Atoi(strings.TrimSpace(w))
	hi, err2 := strconv.Atoi(strings.TrimSpace(h))
	if err1 != nil || err2 != nil || wi <= 0 || hi <= 0 {
		return capture.Size{}, fmt.Errorf("size must be WIDTHxHEIGHT: %q", s)
	}
	return capture.Size{Width: wi, Height: hi}, nil
}
