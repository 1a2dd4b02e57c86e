// Package gpio reads the optional physical stop button.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the stop button.
type Reader interface {
	// Read reports whether the button is held down. The input is active
	// low: the button shorts the pulled-up line to ground.
	Read() (pressed bool, err error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultStopPin is the BCM pin of the stop button. -1 disables the button.
const DefaultStopPin = -1
