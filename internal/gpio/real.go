//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// RealReader reads the stop button from the Linux GPIO character device.
type RealReader struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	pin  int
}

// NewRealReader requests pin on gpiochip0 as a pulled-up input.
func NewRealReader(pin int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request stop pin %d: %w", pin, err)
	}

	return &RealReader{chip: chip, line: line, pin: pin}, nil
}

// Read returns true while the button holds the line low.
func (r *RealReader) Read() (bool, error) {
	raw, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read stop pin %d: %w", r.pin, err)
	}
	return raw == 0, nil
}

// Close releases GPIO resources.
// The line is returned to input with pull-down, the Pi boot default, before
// it is released.
func (r *RealReader) Close() error {
	var errs error
	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconfigure stop pin: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close stop pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errs
}
