package robot

import "testing"

func TestSetDigitalOut(t *testing.T) {
	if got := SetDigitalOut(2, true); got != "set_digital_out(2, True)\n" {
		t.Errorf("on: got %q", got)
	}
	if got := SetDigitalOut(3, false); got != "set_digital_out(3, False)\n" {
		t.Errorf("off: got %q", got)
	}
}

func TestMoveRelative(t *testing.T) {
	got := MoveRelative(AxisZ.Delta(-0.1), 0.5, 0.2)
	want := "def move_relative():\n" +
		"  pose = get_actual_tcp_pose()\n" +
		"  pose[0] = pose[0] + 0\n" +
		"  pose[1] = pose[1] + 0\n" +
		"  pose[2] = pose[2] + -0.1\n" +
		"  movel(pose, a=0.5, v=0.2)\n" +
		"end\n" +
		"move_relative()\n"
	if got != want {
		t.Errorf("script mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestAxisDelta(t *testing.T) {
	tests := []struct {
		axis Axis
		want Vector
	}{
		{AxisX, Vector{0.1, 0, 0}},
		{AxisY, Vector{0, 0.1, 0}},
		{AxisZ, Vector{0, 0, 0.1}},
	}
	for _, tt := range tests {
		if got := tt.axis.Delta(0.1); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.axis, got, tt.want)
		}
	}
}

func TestParseAxis(t *testing.T) {
	if a, err := ParseAxis("Z"); err != nil || a != AxisZ {
		t.Errorf("ParseAxis(Z): got %q, %v", a, err)
	}
	if _, err := ParseAxis("w"); err == nil {
		t.Error("expected error for unknown axis")
	}
}
