package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/color-sorter/internal/logic"
)

const (
	DefaultStep      = 0.1
	DefaultAccel     = 0.5
	DefaultVelocity  = 0.2
	DefaultBeltPause = 500 * time.Millisecond
)

// DefaultBeltPins are the controller outputs driving the two conveyor belts.
var DefaultBeltPins = []int{2, 3}

// ActuatorConfig describes gate motion and belt wiring.
type ActuatorConfig struct {
	Axis      Axis
	Step      float64
	Accel     float64
	Velocity  float64
	BeltPins  []int
	BeltPause time.Duration
}

// DefaultActuatorConfig returns the stock motion and belt settings.
func DefaultActuatorConfig() ActuatorConfig {
	return ActuatorConfig{
		Axis:      AxisZ,
		Step:      DefaultStep,
		Accel:     DefaultAccel,
		Velocity:  DefaultVelocity,
		BeltPins:  append([]int(nil), DefaultBeltPins...),
		BeltPause: DefaultBeltPause,
	}
}

// Actuator turns gate commands and belt switching into programs on a Channel.
type Actuator struct {
	ch     Channel
	cfg    ActuatorConfig
	clock  clock.Clock
	logger *zap.SugaredLogger
}

// NewActuator creates an actuator. A nil clock uses the wall clock.
func NewActuator(ch Channel, cfg ActuatorConfig, clk clock.Clock, logger *zap.SugaredLogger) *Actuator {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Actuator{ch: ch, cfg: cfg, clock: clk, logger: logger}
}

// Raise moves the gate up by one step.
func (a *Actuator) Raise(ctx context.Context) error {
	return a.move(ctx, a.cfg.Step)
}

// Lower moves the gate down by one step.
func (a *Actuator) Lower(ctx context.Context) error {
	return a.move(ctx, -a.cfg.Step)
}

func (a *Actuator) move(ctx context.Context, step float64) error {
	return a.ch.Send(ctx, MoveRelative(a.cfg.Axis.Delta(step), a.cfg.Accel, a.cfg.Velocity))
}

// Apply runs a gate command.
func (a *Actuator) Apply(ctx context.Context, cmd logic.Command) error {
	switch cmd {
	case logic.CommandRaise:
		return a.Raise(ctx)
	case logic.CommandLower:
		return a.Lower(ctx)
	}
	return fmt.Errorf("robot: unknown command %q", cmd)
}

// BeltsOn energizes every belt output in pin order.
func (a *Actuator) BeltsOn(ctx context.Context) error {
	for _, pin := range a.cfg.BeltPins {
		if err := a.ch.Send(ctx, SetDigitalOut(pin, true)); err != nil {
			return fmt.Errorf("belt %d on: %w", pin, err)
		}
		a.logger.Infow("belt on", "pin", pin)
	}
	return nil
}

// BeltsOff de-energizes every belt output in pin order, pausing BeltPause
// between pins. A failing pin does not stop the remaining ones from being
// switched off; all failures are returned together.
func (a *Actuator) BeltsOff(ctx context.Context) error {
	var errs error
	for i, pin := range a.cfg.BeltPins {
		if i > 0 && a.cfg.BeltPause > 0 {
			a.clock.Sleep(a.cfg.BeltPause)
		}
		if err := a.ch.Send(ctx, SetDigitalOut(pin, false)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("belt %d off: %w", pin, err))
			continue
		}
		a.logger.Infow("belt off", "pin", pin)
	}
	return errs
}
