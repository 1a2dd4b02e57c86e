package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/color-sorter/internal/journal"
	"github.com/sweeney/color-sorter/internal/logic"
	"github.com/sweeney/color-sorter/internal/vision"
)

var errNoImages = errors.New("at least one image FILE is required")

func classifyCommand() *cli.Command {
	flags := append(classifierFlags(),
		&cli.Float64Flag{Name: flagROIWidth, Value: vision.DefaultROIWidth, Usage: "region of interest width as a fraction of the image"},
		&cli.Float64Flag{Name: flagROIHeight, Value: vision.DefaultROIHeight, Usage: "region of interest height as a fraction of the image"},
		&cli.BoolFlag{Name: flagCrop, Usage: "classify only the centered region of interest instead of the whole image"},
		&cli.IntFlag{Name: flagMaxSize, Usage: "downscale images to fit this many pixels per side before cropping (0 keeps full size)"},
	)
	return &cli.Command{
		Name:      "classify",
		Usage:     "classify still images with the same rules as the camera loop",
		ArgsUsage: "FILE...",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			logger, err := newLogger(c.String(flagLogLevel))
			if err != nil {
				return err
			}
			defer logger.Sync()

			ccfg, err := classifierConfig(c.String(flagRanges), c.Float64(flagWhiteCoverage), c.Float64(flagNoiseFloor))
			if err != nil {
				return err
			}
			opts := classifyOptions{
				crop:      c.Bool(flagCrop),
				roiWidth:  c.Float64(flagROIWidth),
				roiHeight: c.Float64(flagROIHeight),
				maxSize:   c.Int(flagMaxSize),
			}
			return classifyFiles(c.App.Writer, vision.NewClassifier(ccfg), opts, c.Args().Slice(), logger)
		},
	}
}

type classifyOptions struct {
	crop      bool
	roiWidth  float64
	roiHeight float64
	maxSize   int
}

// classifyFiles prints "FILE -> LABEL" for each image. A file that cannot be
// read is reported and the rest are still classified.
func classifyFiles(w io.Writer, cls *vision.Classifier, opts classifyOptions, paths []string, logger *zap.SugaredLogger) error {
	if len(paths) == 0 {
		return errNoImages
	}
	var errs error
	for _, path := range paths {
		res, err := classifyImage(cls, opts, path)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		logger.Debugw("pixel counts", "file", path, "area", res.Area, "counts", res.Counts)
		fmt.Fprintf(w, "%s -> %s\n", path, res.Label)
	}
	return errs
}

func classifyImage(cls *vision.Classifier, opts classifyOptions, path string) (vision.Result, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return vision.Result{}, err
	}
	if n := opts.maxSize; n > 0 {
		if b := img.Bounds(); b.Dx() > n || b.Dy() > n {
			// Nearest neighbour keeps pixel colors exact.
			img = imaging.Fit(img, n, n, imaging.NearestNeighbor)
		}
	}
	if opts.crop {
		img, err = cropCenter(img, opts.roiWidth, opts.roiHeight)
		if err != nil {
			return vision.Result{}, err
		}
	}
	return cls.Classify(img), nil
}

func cropCenter(img image.Image, fracW, fracH float64) (image.Image, error) {
	b := img.Bounds()
	roi, err := vision.CenteredROI(b.Dx(), b.Dy(), fracW, fracH)
	if err != nil {
		return nil, err
	}
	region, ok := vision.Crop(img, roi.Add(b.Min))
	if !ok {
		return nil, fmt.Errorf("region of interest is empty for a %dx%d image", b.Dx(), b.Dy())
	}
	return region, nil
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "print recent gate transitions and detection totals from the journal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagJournal, Required: true, Usage: "SQLite journal `FILE`", EnvVars: envVar(flagJournal)},
			&cli.IntFlag{Name: flagLimit, Value: 20, Usage: "number of transitions to print"},
		},
		Action: func(c *cli.Context) error {
			path := c.String(flagJournal)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("journal: %w", err)
			}
			store, err := journal.Open(c.Context, path, nil)
			if err != nil {
				return err
			}
			defer store.Close()
			return printHistory(c.Context, c.App.Writer, store, c.Int(flagLimit))
		},
	}
}

type historyReader interface {
	RecentTransitions(ctx context.Context, limit int) ([]logic.Transition, error)
	DetectionCounts(ctx context.Context) (map[vision.Bucket]int, error)
}

// printHistory writes transitions newest first, then confirmed detection
// totals in bucket order.
func printHistory(ctx context.Context, w io.Writer, h historyReader, limit int) error {
	trs, err := h.RecentTransitions(ctx, limit)
	if err != nil {
		return err
	}
	counts, err := h.DetectionCounts(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "transitions (%d):\n", len(trs))
	for _, tr := range trs {
		fmt.Fprintf(w, "  %s  %-5s  %s -> %s  (%s)\n",
			tr.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"), tr.Command, tr.From, tr.To, tr.Label)
	}

	fmt.Fprintln(w, "detections:")
	for _, b := range sortedBuckets(counts) {
		fmt.Fprintf(w, "  %-24s %d\n", b, counts[b])
	}
	return nil
}

// sortedBuckets orders physical colors the way the classifier ranks them,
// followed by any other labels alphabetically.
func sortedBuckets(counts map[vision.Bucket]int) []vision.Bucket {
	rank := make(map[vision.Bucket]int, len(vision.Order))
	for i, b := range vision.Order {
		rank[b] = i
	}
	out := make([]vision.Bucket, 0, len(counts))
	for b := range counts {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return out[i] < out[j]
	})
	return out
}
