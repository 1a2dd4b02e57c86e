package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/sweeney/color-sorter/internal/gpio"
	"github.com/sweeney/color-sorter/internal/logic"
	"github.com/sweeney/color-sorter/internal/robot"
	"github.com/sweeney/color-sorter/internal/status"
	"github.com/sweeney/color-sorter/internal/vision"
)

// Flag names.
const (
	flagCamera          = "camera"
	flagROIWidth        = "roi-width"
	flagROIHeight       = "roi-height"
	flagDebounce        = "debounce"
	flagDebounceMode    = "debounce-mode"
	flagRanges          = "ranges"
	flagWhiteCoverage   = "white-coverage"
	flagNoiseFloor      = "noise-floor"
	flagRobot           = "robot"
	flagSettle          = "settle"
	flagAxis            = "axis"
	flagStep            = "step"
	flagAccel           = "accel"
	flagVelocity        = "velocity"
	flagBeltPins        = "belt-pins"
	flagBeltPause       = "belt-pause"
	flagRetries         = "retries"
	flagRetryInterval   = "retry-interval"
	flagQueueSize       = "queue-size"
	flagShutdownTimeout = "shutdown-timeout"
	flagBroker          = "broker"
	flagClientID        = "client-id"
	flagHTTP            = "http"
	flagHeartbeat       = "heartbeat"
	flagStopPin         = "stop-pin"
	flagJournal         = "journal"
	flagOverlay         = "overlay"
	flagLogLevel        = "log-level"
	flagLimit           = "limit"
	flagMaxSize         = "max-size"
	flagCrop            = "crop"
)

// envVar maps a flag name to its SORTER_ environment variable.
func envVar(flag string) []string {
	return []string{"SORTER_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))}
}

// classifierFlags are shared by the run action and the classify command.
func classifierFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagRanges, Usage: "HSV range table `FILE` (JSON); replaces the built-in table", EnvVars: envVar(flagRanges)},
		&cli.Float64Flag{Name: flagWhiteCoverage, Value: vision.DefaultWhiteCoverage, Usage: "fraction of the region white must cover to report an empty belt", EnvVars: envVar(flagWhiteCoverage)},
		&cli.Float64Flag{Name: flagNoiseFloor, Value: vision.DefaultNoiseFloor, Usage: "fraction of the region the best color must cover to be trusted", EnvVars: envVar(flagNoiseFloor)},
	}
}

func runFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.IntFlag{Name: flagCamera, Value: 0, Usage: "video capture device id", EnvVars: envVar(flagCamera)},
		&cli.Float64Flag{Name: flagROIWidth, Value: vision.DefaultROIWidth, Usage: "region of interest width as a fraction of the frame", EnvVars: envVar(flagROIWidth)},
		&cli.Float64Flag{Name: flagROIHeight, Value: vision.DefaultROIHeight, Usage: "region of interest height as a fraction of the frame", EnvVars: envVar(flagROIHeight)},
		&cli.DurationFlag{Name: flagDebounce, Value: logic.DefaultDelay, Usage: "time a detection must age before it is confirmed", EnvVars: envVar(flagDebounce)},
		&cli.StringFlag{Name: flagDebounceMode, Value: string(logic.ModeQueue), Usage: `"queue" confirms every change, "settle" only values that stayed current`, EnvVars: envVar(flagDebounceMode)},
	}
	flags = append(flags, classifierFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: flagRobot, Value: robot.DefaultAddr, Usage: "robot controller URScript address", EnvVars: envVar(flagRobot)},
		&cli.DurationFlag{Name: flagSettle, Value: robot.DefaultSettle, Usage: "time to hold each controller connection open after writing", EnvVars: envVar(flagSettle)},
		&cli.StringFlag{Name: flagAxis, Value: string(robot.AxisZ), Usage: "gate motion axis (x, y or z)", EnvVars: envVar(flagAxis)},
		&cli.Float64Flag{Name: flagStep, Value: robot.DefaultStep, Usage: "gate travel in metres", EnvVars: envVar(flagStep)},
		&cli.Float64Flag{Name: flagAccel, Value: robot.DefaultAccel, Usage: "movel acceleration", EnvVars: envVar(flagAccel)},
		&cli.Float64Flag{Name: flagVelocity, Value: robot.DefaultVelocity, Usage: "movel velocity", EnvVars: envVar(flagVelocity)},
		&cli.IntSliceFlag{Name: flagBeltPins, Value: cli.NewIntSlice(robot.DefaultBeltPins...), Usage: "controller digital outputs driving the belts, in switch order", EnvVars: envVar(flagBeltPins)},
		&cli.DurationFlag{Name: flagBeltPause, Value: robot.DefaultBeltPause, Usage: "pause between switching belts off", EnvVars: envVar(flagBeltPause)},
		&cli.IntFlag{Name: flagRetries, Value: robot.DefaultRetries, Usage: "retries per controller command", EnvVars: envVar(flagRetries)},
		&cli.DurationFlag{Name: flagRetryInterval, Value: robot.DefaultRetryInterval, Usage: "initial retry backoff", EnvVars: envVar(flagRetryInterval)},
		&cli.IntFlag{Name: flagQueueSize, Value: robot.DefaultQueueSize, Usage: "gate commands that may wait for the controller", EnvVars: envVar(flagQueueSize)},
		&cli.DurationFlag{Name: flagShutdownTimeout, Value: 10 * time.Second, Usage: "time allowed to drain queued gate commands on exit", EnvVars: envVar(flagShutdownTimeout)},
		&cli.StringFlag{Name: flagBroker, Value: "", Usage: "MQTT broker address (empty disables MQTT)", EnvVars: envVar(flagBroker)},
		&cli.StringFlag{Name: flagClientID, Value: "color-sorter", Usage: "MQTT client id", EnvVars: envVar(flagClientID)},
		&cli.StringFlag{Name: flagHTTP, Value: ":8080", Usage: "HTTP status address (empty disables)", EnvVars: envVar(flagHTTP)},
		&cli.DurationFlag{Name: flagHeartbeat, Value: 15 * time.Minute, Usage: "heartbeat interval (0 disables)", EnvVars: envVar(flagHeartbeat)},
		&cli.IntFlag{Name: flagStopPin, Value: gpio.DefaultStopPin, Usage: "BCM pin of the stop button (-1 disables)", EnvVars: envVar(flagStopPin)},
		&cli.StringFlag{Name: flagJournal, Value: "", Usage: "SQLite journal `FILE` (empty disables)", EnvVars: envVar(flagJournal)},
		&cli.BoolFlag{Name: flagOverlay, Value: true, Usage: "show the debug overlay window", EnvVars: envVar(flagOverlay)},
	)
	return flags
}

// Config is the daemon configuration, read once at startup.
type Config struct {
	Camera    int
	ROIWidth  float64
	ROIHeight float64

	DebounceDelay time.Duration
	DebounceMode  string

	RangesFile    string
	WhiteCoverage float64
	NoiseFloor    float64

	RobotAddr     string
	Settle        time.Duration
	Axis          string
	Step          float64
	Accel         float64
	Velocity      float64
	BeltPins      []int
	BeltPause     time.Duration
	Retries       int
	RetryInterval time.Duration
	QueueSize     int

	ShutdownTimeout time.Duration

	Broker    string
	ClientID  string
	HTTPAddr  string
	Heartbeat time.Duration
	StopPin   int
	Journal   string
	Overlay   bool
}

func configFromContext(c *cli.Context) Config {
	return Config{
		Camera:          c.Int(flagCamera),
		ROIWidth:        c.Float64(flagROIWidth),
		ROIHeight:       c.Float64(flagROIHeight),
		DebounceDelay:   c.Duration(flagDebounce),
		DebounceMode:    c.String(flagDebounceMode),
		RangesFile:      c.String(flagRanges),
		WhiteCoverage:   c.Float64(flagWhiteCoverage),
		NoiseFloor:      c.Float64(flagNoiseFloor),
		RobotAddr:       c.String(flagRobot),
		Settle:          c.Duration(flagSettle),
		Axis:            c.String(flagAxis),
		Step:            c.Float64(flagStep),
		Accel:           c.Float64(flagAccel),
		Velocity:        c.Float64(flagVelocity),
		BeltPins:        c.IntSlice(flagBeltPins),
		BeltPause:       c.Duration(flagBeltPause),
		Retries:         c.Int(flagRetries),
		RetryInterval:   c.Duration(flagRetryInterval),
		QueueSize:       c.Int(flagQueueSize),
		ShutdownTimeout: c.Duration(flagShutdownTimeout),
		Broker:          c.String(flagBroker),
		ClientID:        c.String(flagClientID),
		HTTPAddr:        c.String(flagHTTP),
		Heartbeat:       c.Duration(flagHeartbeat),
		StopPin:         c.Int(flagStopPin),
		Journal:         c.String(flagJournal),
		Overlay:         c.Bool(flagOverlay),
	}
}

func checkFraction(name string, v float64, allowZero bool) error {
	if v < 0 || v > 1 || (!allowZero && v == 0) {
		bound := "(0,1]"
		if allowZero {
			bound = "[0,1]"
		}
		return fmt.Errorf("--%s must be in %s, got %v", name, bound, v)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs error
	errs = multierr.Append(errs, checkFraction(flagROIWidth, c.ROIWidth, false))
	errs = multierr.Append(errs, checkFraction(flagROIHeight, c.ROIHeight, false))
	errs = multierr.Append(errs, checkFraction(flagWhiteCoverage, c.WhiteCoverage, true))
	errs = multierr.Append(errs, checkFraction(flagNoiseFloor, c.NoiseFloor, true))

	if c.DebounceDelay <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("--%s must be positive, got %v", flagDebounce, c.DebounceDelay))
	}
	if _, err := logic.ParseMode(c.DebounceMode); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("--%s: %w", flagDebounceMode, err))
	}
	if _, err := robot.ParseAxis(c.Axis); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("--%s: %w", flagAxis, err))
	}
	if c.Step <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("--%s must be positive, got %v", flagStep, c.Step))
	}
	if len(c.BeltPins) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("--%s must name at least one output", flagBeltPins))
	}
	if c.RobotAddr == "" {
		errs = multierr.Append(errs, fmt.Errorf("--%s is required", flagRobot))
	}
	if c.Retries < 0 {
		errs = multierr.Append(errs, fmt.Errorf("--%s must not be negative, got %d", flagRetries, c.Retries))
	}
	if c.QueueSize < 1 {
		errs = multierr.Append(errs, fmt.Errorf("--%s must be at least 1, got %d", flagQueueSize, c.QueueSize))
	}
	if c.ShutdownTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("--%s must be positive, got %v", flagShutdownTimeout, c.ShutdownTimeout))
	}
	if c.Heartbeat < 0 {
		errs = multierr.Append(errs, fmt.Errorf("--%s must not be negative, got %v", flagHeartbeat, c.Heartbeat))
	}
	return errs
}

// classifierConfig builds the classifier settings, loading the range table
// file if one is configured.
func classifierConfig(rangesFile string, whiteCoverage, noiseFloor float64) (vision.ClassifierConfig, error) {
	cfg := vision.DefaultClassifierConfig()
	cfg.WhiteCoverage = whiteCoverage
	cfg.NoiseFloor = noiseFloor
	if rangesFile == "" {
		return cfg, nil
	}

	f, err := os.Open(rangesFile)
	if err != nil {
		return cfg, fmt.Errorf("open range table: %w", err)
	}
	defer f.Close()

	table, err := vision.LoadRangeTable(f)
	if err != nil {
		return cfg, fmt.Errorf("load range table %s: %w", rangesFile, err)
	}
	cfg.Ranges = table
	return cfg, nil
}

func (c Config) actuatorConfig() robot.ActuatorConfig {
	axis, _ := robot.ParseAxis(c.Axis)
	return robot.ActuatorConfig{
		Axis:      axis,
		Step:      c.Step,
		Accel:     c.Accel,
		Velocity:  c.Velocity,
		BeltPins:  append([]int(nil), c.BeltPins...),
		BeltPause: c.BeltPause,
	}
}

func (c Config) statusConfig() status.Config {
	return status.Config{
		Camera:       c.Camera,
		ROI:          fmt.Sprintf("%gx%g", c.ROIWidth, c.ROIHeight),
		DebounceMs:   c.DebounceDelay.Milliseconds(),
		DebounceMode: c.DebounceMode,
		RobotAddr:    c.RobotAddr,
		HeartbeatMs:  c.Heartbeat.Milliseconds(),
		Broker:       c.Broker,
		HTTPAddr:     c.HTTPAddr,
	}
}
