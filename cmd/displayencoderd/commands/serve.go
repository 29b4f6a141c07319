package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tenclass/sweet-encoder/internal/codec"
	"github.com/tenclass/sweet-encoder/internal/config"
	"github.com/tenclass/sweet-encoder/internal/logger"
	"github.com/tenclass/sweet-encoder/internal/pipeline"
	"github.com/tenclass/sweet-encoder/internal/producer"
	"github.com/tenclass/sweet-encoder/internal/screen"
	"github.com/tenclass/sweet-encoder/internal/session"
	"github.com/tenclass/sweet-encoder/internal/statusapi"

	"github.com/tenclass/sweet-encoder/examples/syntheticproducer"
	"github.com/tenclass/sweet-encoder/examples/x11demo"
)

var (
	flagProducer   string
	flagReplayFile string
	flagRecordFile string
	flagOutputFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capture-to-encode pipeline",
	Long: `Start the display encoder daemon: connect a producer (X11, a synthetic
test pattern, or a recorded session replay), feed its updates into the
pipeline, and write the resulting Annex-B stream to --output.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&flagProducer, "producer", "synthetic", "producer to drive the pipeline: synthetic or x11 (use --replay for a recorded session)")
	serveCmd.Flags().StringVar(&flagReplayFile, "replay", "", "session recording to replay (implies --producer=replay)")
	serveCmd.Flags().StringVar(&flagRecordFile, "record", "", "write a session recording of all Render calls to this path on exit")
	serveCmd.Flags().StringVar(&flagOutputFile, "output", "", "write the encoded Annex-B stream to this path (default: discard)")
}

func runServe(cmd *cobra.Command, args []string) error {
	mgr, err := config.NewManager(configFile())
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	cfg := mgr.Get()
	if override := logLevelOverride(); override != "" {
		cfg.LogLevel = override
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log := logger.WithComponent("serve")

	desc := cfg.ScreenDescriptor()

	adapter, err := codec.NewGstAdapter(desc.Width, desc.Height, cfg.StreamConfig(), logger.WithComponent("codec"))
	if err != nil {
		return fmt.Errorf("serve: failed to build codec: %w", err)
	}

	pl, err := pipeline.New(desc, adapter, logger.WithComponent("pipeline"))
	if err != nil {
		return fmt.Errorf("serve: failed to build pipeline: %w", err)
	}

	out, closeOut, err := openOutput(flagOutputFile)
	if err != nil {
		return err
	}
	defer closeOut()

	pl.Start(func(nal []byte) {
		if _, err := out.Write(nal); err != nil {
			log.Warn().Err(err).Msg("failed to write encoded frame")
		}
	})
	defer pl.Close()

	var sink producer.Sink = pl
	var recorder *session.Recorder
	if flagRecordFile != "" {
		recorder = session.NewRecorder(pl, desc)
		sink = recorder
	}

	prod, err := buildProducer(desc, cfg)
	if err != nil {
		return err
	}
	if err := prod.Start(sink); err != nil {
		return fmt.Errorf("serve: failed to start producer: %w", err)
	}
	defer prod.Stop()

	if cfg.StatusAPI.Enabled {
		srv := statusapi.New(pl)
		go func() {
			if err := srv.ListenAndServe(cfg.StatusAPI.Addr); err != nil {
				log.Error().Err(err).Msg("status endpoint stopped")
			}
		}()
	}

	log.Info().
		Int("width", desc.Width).Int("height", desc.Height).
		Str("producer", flagProducer).
		Msg("displayencoderd running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")

	if recorder != nil {
		if err := recorder.Save(flagRecordFile); err != nil {
			log.Warn().Err(err).Msg("failed to save recording")
		}
	}

	return nil
}

// buildProducer resolves --producer (and --replay, which forces replay
// mode regardless of --producer) into a concrete producer.Producer.
func buildProducer(desc screen.Descriptor, cfg config.Config) (producer.Producer, error) {
	if flagReplayFile != "" {
		rec, err := session.Load(flagReplayFile)
		if err != nil {
			return nil, fmt.Errorf("serve: %w", err)
		}
		return newReplayProducer(rec), nil
	}

	switch flagProducer {
	case "x11":
		return x11demo.New(desc, time.Second/time.Duration(cfg.Codec.FPS))
	case "synthetic", "":
		return syntheticproducer.New(desc, time.Second/time.Duration(cfg.Codec.FPS)), nil
	default:
		return nil, fmt.Errorf("serve: unknown producer %q", flagProducer)
	}
}

// replayProducer adapts a session.Player, which blocks for the duration
// of playback, to the start/stop producer.Producer contract.
type replayProducer struct {
	rec  *session.Recording
	stop chan struct{}
	done chan struct{}
}

func newReplayProducer(rec *session.Recording) *replayProducer {
	return &replayProducer{rec: rec}
}

func (p *replayProducer) Start(sink producer.Sink) error {
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		session.NewPlayer(p.rec).Play(sink, p.stop)
	}()
	return nil
}

func (p *replayProducer) Stop() error {
	if p.stop == nil {
		return nil
	}
	close(p.stop)
	<-p.done
	return nil
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return nil, func() {}, fmt.Errorf("serve: failed to open discard output: %w", err)
		}
		return f, func() { f.Close() }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, func() {}, fmt.Errorf("serve: failed to create %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
