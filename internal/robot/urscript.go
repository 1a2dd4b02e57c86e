// Package robot drives the diverter gate and conveyor belts through a
// Universal Robots controller. Commands are URScript programs sent over the
// controller's secondary interface, one TCP connection per program.
package robot

import (
	"fmt"
	"strconv"
	"strings"
)

// Axis names a cartesian axis of the tool pose.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// ParseAxis converts a flag value into an Axis.
func ParseAxis(s string) (Axis, error) {
	switch a := Axis(strings.ToLower(s)); a {
	case AxisX, AxisY, AxisZ:
		return a, nil
	}
	return "", fmt.Errorf("unknown axis %q (want x, y or z)", s)
}

// Vector is a translation in metres along x, y and z.
type Vector [3]float64

// Delta returns a translation of step along the axis.
func (a Axis) Delta(step float64) Vector {
	var v Vector
	switch a {
	case AxisX:
		v[0] = step
	case AxisY:
		v[1] = step
	default:
		v[2] = step
	}
	return v
}

// SetDigitalOut returns a program that switches a controller digital output.
func SetDigitalOut(pin int, on bool) string {
	state := "False"
	if on {
		state = "True"
	}
	return fmt.Sprintf("set_digital_out(%d, %s)\n", pin, state)
}

// MoveRelative returns a program that moves the tool linearly by delta from
// its current pose.
func MoveRelative(delta Vector, accel, vel float64) string {
	var b strings.Builder
	b.WriteString("def move_relative():\n")
	b.WriteString("  pose = get_actual_tcp_pose()\n")
	for i, d := range delta {
		fmt.Fprintf(&b, "  pose[%d] = pose[%d] + %s\n", i, i, formatFloat(d))
	}
	fmt.Fprintf(&b, "  movel(pose, a=%s, v=%s)\n", formatFloat(accel), formatFloat(vel))
	b.WriteString("end\n")
	b.WriteString("move_relative()\n")
	return b.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
