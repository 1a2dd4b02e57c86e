// Command color-sorter watches a conveyor belt through a camera, classifies
// the color of each passing object, and drives a robot-arm gate that
// diverts red objects.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sweeney/color-sorter/internal/camera"
	"github.com/sweeney/color-sorter/internal/gpio"
	"github.com/sweeney/color-sorter/internal/journal"
	"github.com/sweeney/color-sorter/internal/logic"
	"github.com/sweeney/color-sorter/internal/mqtt"
	"github.com/sweeney/color-sorter/internal/robot"
	"github.com/sweeney/color-sorter/internal/status"
	"github.com/sweeney/color-sorter/internal/vision"
	"github.com/sweeney/color-sorter/internal/web"
)

// Shutdown reasons published with the SHUTDOWN event.
const (
	reasonSIGINT          = "SIGINT"
	reasonSIGTERM         = "SIGTERM"
	reasonStopButton      = "STOP_BUTTON"
	reasonQuit            = "QUIT"
	reasonFrameError      = "FRAME_ERROR"
	reasonActuatorFailure = "ACTUATOR_FAILURE"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "color-sorter: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "color-sorter",
		Usage: "classify objects on a conveyor by color and divert red ones",
		Flags: append(runFlags(),
			&cli.StringFlag{Name: flagLogLevel, Value: "info", Usage: "debug, info, warn or error", EnvVars: envVar(flagLogLevel)},
		),
		Action: func(c *cli.Context) error {
			logger, err := newLogger(c.String(flagLogLevel))
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg := configFromContext(c)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(c.Context, cfg, logger)
		},
		Commands: []*cli.Command{
			classifyCommand(),
			historyCommand(),
		},
	}
}

// newLogger builds a console logger with ISO8601 timestamps.
func newLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flagLogLevel, err)
	}
	cfg := zap.Config{
		Level:    lvl,
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func run(ctx context.Context, cfg Config, logger *zap.SugaredLogger) error {
	ccfg, err := classifierConfig(cfg.RangesFile, cfg.WhiteCoverage, cfg.NoiseFloor)
	if err != nil {
		return err
	}
	mode, err := logic.ParseMode(cfg.DebounceMode)
	if err != nil {
		return err
	}

	// Initialize MQTT
	var publisher mqtt.Publisher = nopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID, logger.Named("mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	// Initialize journal
	var rec recorder
	var history web.History
	if cfg.Journal != "" {
		store, err := journal.Open(ctx, cfg.Journal, logger.Named("journal"))
		if err != nil {
			return err
		}
		defer store.Close()
		rec, history = store, store
	}

	tracker := status.NewTracker(time.Now(), cfg.statusConfig())

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, history)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infof("http status server listening on %s", cfg.HTTPAddr)
	}

	var stop gpio.Reader
	if cfg.StopPin >= 0 {
		r, err := gpio.NewRealReader(cfg.StopPin)
		if err != nil {
			return fmt.Errorf("init stop button: %w", err)
		}
		defer r.Close()
		stop = r
	}

	source, err := camera.OpenWebcam(cfg.Camera)
	if err != nil {
		return err
	}
	var overlay camera.Overlay = camera.NopOverlay{}
	if cfg.Overlay {
		w, err := camera.NewWindow("color-sorter", logger.Named("overlay"))
		if err != nil {
			logger.Warnw("debug overlay disabled", "error", err)
		} else {
			overlay = w
		}
	}

	clk := clock.New()
	ch := robot.NewTCPChannel(robot.TCPConfig{
		Addr:          cfg.RobotAddr,
		Settle:        cfg.Settle,
		Retries:       cfg.Retries,
		RetryInterval: cfg.RetryInterval,
		Clock:         clk,
		Logger:        logger.Named("robot"),
	})
	defer ch.Close()
	act := robot.NewActuator(ch, cfg.actuatorConfig(), clk, logger.Named("robot"))
	worker := robot.NewWorker(act, cfg.QueueSize, logger.Named("worker"))

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}); err != nil {
		logger.Warnw("failed to publish startup event", "error", err)
	}

	w, h := source.Size()
	logger.Infow("started",
		"camera", cfg.Camera, "frame", fmt.Sprintf("%dx%d", w, h),
		"roi", fmt.Sprintf("%gx%g", cfg.ROIWidth, cfg.ROIHeight),
		"debounce", cfg.DebounceDelay, "mode", mode,
		"robot", cfg.RobotAddr, "broker", cfg.Broker, "heartbeat", cfg.Heartbeat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(loopDeps{
		source:          source,
		overlay:         overlay,
		classifier:      vision.NewClassifier(ccfg),
		roiWidth:        cfg.ROIWidth,
		roiHeight:       cfg.ROIHeight,
		debouncer:       logic.NewDebouncer(cfg.DebounceDelay, mode),
		dispatcher:      logic.NewDispatcher(time.Now()),
		actuator:        act,
		worker:          worker,
		publisher:       publisher,
		mqttStatus:      mqttStatus,
		journal:         rec,
		tracker:         tracker,
		stop:            stop,
		heartbeat:       cfg.Heartbeat,
		shutdownTimeout: cfg.ShutdownTimeout,
		now:             time.Now,
		logger:          logger,
	}, sigCh)
}

// recorder persists confirmed detections and transitions.
type recorder interface {
	RecordDetection(ctx context.Context, ev logic.DetectionEvent) error
	RecordTransition(ctx context.Context, tr logic.Transition) error
}

// loopDeps holds everything the main loop touches. journal, mqttStatus and
// stop may be nil.
type loopDeps struct {
	source     camera.Source
	overlay    camera.Overlay
	classifier *vision.Classifier
	roiWidth   float64
	roiHeight  float64
	debouncer  *logic.Debouncer
	dispatcher *logic.Dispatcher
	actuator   *robot.Actuator
	worker     *robot.Worker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	journal    recorder
	tracker    *status.Tracker
	stop       gpio.Reader

	heartbeat       time.Duration
	shutdownTimeout time.Duration
	now             func() time.Time
	logger          *zap.SugaredLogger
}

// runLoop switches the belts on, then reads and classifies frames until a
// signal, the stop button, the overlay quit key, a frame error or an
// actuator failure. The source and overlay are closed on return and the
// belts are switched off.
func runLoop(d loopDeps, sig <-chan os.Signal) (err error) {
	ctx := context.Background()
	reason := reasonQuit
	defer func() {
		err = multierr.Append(err, d.shutdown(reason))
	}()

	if err := d.actuator.BeltsOn(ctx); err != nil {
		reason = reasonActuatorFailure
		return fmt.Errorf("start belts: %w", err)
	}

	for {
		select {
		case s := <-sig:
			d.logger.Infof("received %v, shutting down", s)
			reason = signalName(s)
			return nil
		case werr := <-d.worker.Err():
			reason = reasonActuatorFailure
			return fmt.Errorf("actuator: %w", werr)
		default:
		}

		if d.stop != nil {
			pressed, err := d.stop.Read()
			if err != nil {
				d.logger.Warnw("stop button read error", "error", err)
			} else if pressed {
				d.logger.Info("stop button pressed, shutting down")
				reason = reasonStopButton
				return nil
			}
		}

		frame, err := d.source.Read()
		if err != nil {
			reason = reasonFrameError
			return fmt.Errorf("read frame: %w", err)
		}

		quit, err := d.process(ctx, frame)
		if err != nil {
			reason = reasonActuatorFailure
			return err
		}
		if quit {
			d.logger.Info("quit requested from overlay, shutting down")
			reason = reasonQuit
			return nil
		}
	}
}

// process classifies one frame and acts on any confirmed detections. It
// reports whether the overlay asked to quit.
func (d *loopDeps) process(ctx context.Context, frame image.Image) (bool, error) {
	b := frame.Bounds()
	roi, err := vision.CenteredROI(b.Dx(), b.Dy(), d.roiWidth, d.roiHeight)
	if err != nil {
		return false, err
	}
	roi = roi.Add(b.Min)

	region, ok := vision.Crop(frame, roi)
	if !ok {
		d.logger.Debugw("empty region of interest, frame skipped", "frame", b)
		d.tracker.RecordSkip()
		return false, nil
	}

	res := d.classifier.Classify(region)
	now := d.now()
	d.logger.Debugw("frame classified", "label", res.Label, "area", res.Area)

	for _, ev := range d.debouncer.Observe(now, res.Label) {
		if err := d.confirm(ctx, ev); err != nil {
			return false, err
		}
	}

	d.tracker.RecordFrame(res.Label, d.debouncer.Pending())
	d.refreshTracker()

	if hb := d.dispatcher.CheckHeartbeat(now, d.heartbeat); hb != nil {
		d.logger.Infow("heartbeat", "uptime", hb.Uptime, "state", hb.State,
			"raises", hb.Counts.Raises, "lowers", hb.Counts.Lowers)
		snap := d.tracker.Snapshot()
		if err := d.publisher.PublishSystem(mqtt.SystemEvent{
			Timestamp:  hb.Timestamp,
			Event:      "HEARTBEAT",
			RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
		}); err != nil {
			d.logger.Warnw("heartbeat publish error", "error", err)
		}
	}

	return d.overlay.Show(frame, roi, res.Label), nil
}

// confirm records and publishes a confirmed detection and queues the gate
// command it causes, if any. Only a failed submit is returned; journal and
// publish failures are logged.
func (d *loopDeps) confirm(ctx context.Context, ev logic.DetectionEvent) error {
	d.logger.Infow("detection confirmed", "label", ev.Label)
	if d.journal != nil {
		if err := d.journal.RecordDetection(ctx, ev); err != nil {
			d.logger.Warnw("journal detection error", "error", err)
		}
	}
	if err := d.publisher.PublishDetection(ev); err != nil {
		d.logger.Warnw("detection publish error", "error", err)
	}

	tr := d.dispatcher.Dispatch(ev)
	if tr == nil {
		return nil
	}
	d.logger.Infow("gate transition", "command", tr.Command, "label", tr.Label, "from", tr.From, "to", tr.To)
	if d.journal != nil {
		if err := d.journal.RecordTransition(ctx, *tr); err != nil {
			d.logger.Warnw("journal transition error", "error", err)
		}
	}
	if err := d.publisher.PublishTransition(*tr); err != nil {
		d.logger.Warnw("transition publish error", "error", err)
	}
	if err := d.worker.Submit(*tr); err != nil {
		return fmt.Errorf("submit %s: %w", tr.Command, err)
	}
	return nil
}

func (d *loopDeps) refreshTracker() {
	d.tracker.Update(d.dispatcher.State(), d.dispatcher.CountsSnapshot(), d.worker.Pending())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		d.tracker.SetMQTTBuffered(d.mqttStatus.Buffered())
	}
}

// shutdown drains queued gate commands, switches the belts off, releases the
// camera and overlay, and publishes SHUTDOWN with reason.
func (d *loopDeps) shutdown(reason string) error {
	var errs error

	ctx, cancel := context.WithTimeout(context.Background(), d.shutdownTimeout)
	defer cancel()
	if err := d.worker.Close(ctx); err != nil {
		d.logger.Warnw("gate commands abandoned", "error", err)
		errs = multierr.Append(errs, err)
	}

	if err := d.actuator.BeltsOff(context.Background()); err != nil {
		d.logger.Errorw("failed to stop belts", "error", err)
		errs = multierr.Append(errs, fmt.Errorf("stop belts: %w", err))
	}

	errs = multierr.Append(errs, d.overlay.Close())
	errs = multierr.Append(errs, d.source.Close())

	d.refreshTracker()
	snap := d.tracker.Snapshot()
	if err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	}); err != nil {
		d.logger.Warnw("failed to publish shutdown event", "error", err)
	} else {
		d.logger.Info("published shutdown event")
	}
	return errs
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return reasonSIGINT
	case syscall.SIGTERM:
		return reasonSIGTERM
	}
	return s.String()
}

// nopPublisher is used when no broker is configured.
type nopPublisher struct{}

func (nopPublisher) PublishDetection(logic.DetectionEvent) error { return nil }
func (nopPublisher) PublishTransition(logic.Transition) error    { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error        { return nil }
func (nopPublisher) Close() error                                { return nil }
