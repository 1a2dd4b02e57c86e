package main

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/color-sorter/internal/camera"
	"github.com/sweeney/color-sorter/internal/journal"
	"github.com/sweeney/color-sorter/internal/logic"
	"github.com/sweeney/color-sorter/internal/vision"
)

// writePNG writes a solid size x size image and returns its path.
func writePNG(t *testing.T, dir, name string, size int, c [3]uint8) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, camera.Solid(size, size, c)); err != nil {
		t.Fatal(err)
	}
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"color-sorter"}, args...))
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()
	redPath := writePNG(t, dir, "red.png", 50, red)
	greenPath := writePNG(t, dir, "green.png", 50, green)
	whitePath := writePNG(t, dir, "white.png", 50, white)

	out, err := runApp(t, "classify", redPath, greenPath, whitePath)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	want := redPath + " -> red\n" + greenPath + " -> green\n" + whitePath + " -> white_background\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestClassifyCommandUsesWholeImageByDefault(t *testing.T) {
	// Blue image with a red 20x20 square over the centre region.
	img := camera.Solid(100, 100, [3]uint8{0, 0, 255})
	for y := 40; y < 60; y++ {
		for x := 40; x < 60; x++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	path := filepath.Join(t.TempDir(), "cap.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := runApp(t, "classify", path)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if out != path+" -> blue\n" {
		t.Errorf("whole image: got %q, want blue", out)
	}

	out, err = runApp(t, "classify", "--crop", path)
	if err != nil {
		t.Fatalf("classify --crop: %v", err)
	}
	if out != path+" -> red\n" {
		t.Errorf("cropped: got %q, want red", out)
	}
}

func TestClassifyCommandWithRangeFile(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "red.png", 20, red)
	ranges := filepath.Join(dir, "ranges.json")
	body := `{"green": [{"lower": [0, 100, 100], "upper": [10, 255, 255]}]}`
	if err := os.WriteFile(ranges, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "classify", "--ranges", ranges, img)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if out != img+" -> green\n" {
		t.Errorf("output: got %q", out)
	}
}

func TestClassifyCommandRequiresFiles(t *testing.T) {
	if _, err := runApp(t, "classify"); !errors.Is(err, errNoImages) {
		t.Errorf("got %v, want errNoImages", err)
	}
}

func TestClassifyFilesContinuesAfterBadFile(t *testing.T) {
	dir := t.TempDir()
	good := writePNG(t, dir, "red.png", 20, red)
	missing := filepath.Join(dir, "missing.png")

	var out bytes.Buffer
	cls := vision.NewClassifier(vision.DefaultClassifierConfig())
	opts := classifyOptions{crop: true, roiWidth: 0.2, roiHeight: 0.2}
	err := classifyFiles(&out, cls, opts, []string{missing, good}, zaptest.NewLogger(t).Sugar())
	if err == nil || !strings.Contains(err.Error(), missing) {
		t.Errorf("error should name the missing file: %v", err)
	}
	if out.String() != good+" -> red\n" {
		t.Errorf("output: got %q", out.String())
	}
}

func TestClassifyImageDownscalesAndCrops(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "big.png", 200, green)
	cls := vision.NewClassifier(vision.DefaultClassifierConfig())

	res, err := classifyImage(cls, classifyOptions{crop: true, roiWidth: 0.5, roiHeight: 0.5, maxSize: 100}, path)
	if err != nil {
		t.Fatalf("classifyImage: %v", err)
	}
	if res.Label != vision.Green {
		t.Errorf("label: got %s, want green", res.Label)
	}
	if res.Area != 50*50 {
		t.Errorf("area: got %d, want %d", res.Area, 50*50)
	}
}

func TestClassifyImageEmptyROI(t *testing.T) {
	path := writePNG(t, t.TempDir(), "tiny.png", 3, red)
	cls := vision.NewClassifier(vision.DefaultClassifierConfig())
	if _, err := classifyImage(cls, classifyOptions{crop: true, roiWidth: 0.2, roiHeight: 0.2}, path); err == nil {
		t.Error("expected error for empty region of interest")
	}
	res, err := classifyImage(cls, classifyOptions{crop: false}, path)
	if err != nil || res.Label != vision.Red {
		t.Errorf("full frame: got %s, %v", res.Label, err)
	}
}

func TestHistoryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()
	store, err := journal.Open(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range []logic.DetectionEvent{
		{Timestamp: t0, Label: vision.Red},
		{Timestamp: t0.Add(1e9), Label: vision.Green},
		{Timestamp: t0.Add(2e9), Label: vision.Green},
	} {
		if err := store.RecordDetection(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.RecordTransition(ctx, logic.Transition{
		Timestamp: t0, Label: vision.Red, From: logic.StateLowered, To: logic.StateRaised, Command: logic.CommandRaise,
	}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	out, err := runApp(t, "history", "--journal", path)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := "transitions (1):\n" +
		"  2026-01-01T12:00:00.000Z  RAISE  LOWERED -> RAISED  (red)\n" +
		"detections:\n" +
		"  red                      1\n" +
		"  green                    2\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestHistoryCommandMissingJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.db")
	if _, err := runApp(t, "history", "--journal", path); err == nil {
		t.Error("expected error for missing journal")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("history must not create a journal")
	}
}

func TestSortedBuckets(t *testing.T) {
	counts := map[vision.Bucket]int{
		vision.Gray:            1,
		vision.WhiteBackground: 1,
		vision.Red:             1,
		vision.Unknown:         1,
		vision.Blue:            1,
	}
	want := []vision.Bucket{vision.Red, vision.Blue, vision.Gray, vision.Unknown, vision.WhiteBackground}
	if diff := cmp.Diff(want, sortedBuckets(counts)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}
