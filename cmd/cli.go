// SPDX-License-Identifier: MIT

// Package cmd parses the command line into a validated configuration.
package cmd

import (
	"fmt"
	"strings"
	"time"

	"doppler/internal/config"
	"doppler/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Commands selected on the command line.
const (
	CommandNone    = ""        // help or version flag was printed
	CommandRun     = "run"     // run an analysis session
	CommandList    = "list"    // list input devices
	CommandVersion = "version" // print build information
)

const envPrefix = "DOPPLER"

// Options is the parsed command line.
type Options struct {
	Command     string
	Interactive bool // list: pick a device in the TUI
	Config      *config.Config
}

// flagValues receives the raw flag values before they are layered onto the
// configuration file.
type flagValues struct {
	configPath string

	device          int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	source          string
	file            string
	loop            bool
	tones           []float64

	mode       string
	resolution float64
	tick       time.Duration
	window     string
	backend    string
	channel    int
	gate       float64

	record   bool
	output   string
	bitDepth int

	udp string
	ws  string
	tui bool

	verbose  bool
	logLevel string
}

// ParseArgs parses args (without the program name). Precedence, highest
// first: flags, DOPPLER_* environment variables, the YAML file, defaults.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.Get()
	opts := &Options{Command: CommandNone}
	values := &flagValues{}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var executed *cobra.Command
	rootCmd := &cobra.Command{
		Use:           "doppler",
		Short:         "Dual-tone peak detection and acoustic Doppler motion sensing",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandRun
			executed = cmd
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandList
			executed = cmd
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false,
		"Pick a device and sample rate interactively")
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandVersion
			return nil
		},
	})

	registerFlags(rootCmd.PersistentFlags(), values)

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if executed == nil {
		return opts, nil
	}

	cfg, err := config.LoadConfig(values.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(executed.Flags(), values, cfg)

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts.Config = cfg
	return opts, nil
}

func registerFlags(fs *pflag.FlagSet, f *flagValues) {
	fs.StringVar(&f.configPath, "config", "",
		"Configuration file (default is ./config.yaml when present)")

	// Source
	fs.IntVarP(&f.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	fs.IntVarP(&f.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	fs.Float64VarP(&f.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	fs.IntVarP(&f.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	fs.BoolVarP(&f.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	fs.StringVar(&f.source, "source", config.DefaultSource,
		"Sample source: device, file or tone")
	fs.StringVar(&f.file, "file", "",
		"WAV file replayed when --source=file")
	fs.BoolVar(&f.loop, "loop", false,
		"Loop the WAV file")
	fs.Float64SliceVar(&f.tones, "tones", []float64{1000, 1200},
		"Comma separated tone frequencies in Hz when --source=tone")

	// Analysis
	fs.StringVarP(&f.mode, "mode", "m", config.DefaultMode,
		"Analysis mode: peaks or doppler")
	fs.Float64Var(&f.resolution, "resolution", config.DefaultResolution,
		"Frequency resolution in Hz per bin")
	fs.DurationVar(&f.tick, "tick", config.DefaultTickPeriod,
		"Time between analyses")
	fs.StringVar(&f.window, "window", config.DefaultWindow,
		"Window function: hann, hamming, blackman, blackmannuttall, bartletthann, lanczos, nuttall, rectangular")
	fs.StringVar(&f.backend, "backend", config.DefaultBackend,
		"FFT backend: gonum or godsp")
	fs.IntVar(&f.channel, "channel", 0,
		"Channel analyzed (0-based)")
	fs.Float64Var(&f.gate, "gate", 0,
		"Skip windows whose peak stays below this level (0-1, 0 disables)")

	// Recording
	fs.BoolVarP(&f.record, "record", "r", false,
		"Record the input to a WAV file")
	fs.StringVarP(&f.output, "output", "o", "",
		"Recording file name. Default is doppler-YYYYMMDD-HHMMSS.wav in the output directory")
	fs.IntVar(&f.bitDepth, "bit-depth", config.DefaultBitDepth,
		"Recording bit depth: 16, 24 or 32")

	// Transport
	fs.StringVar(&f.udp, "udp", "",
		"Publish binary result packets to this UDP host:port")
	fs.Lookup("udp").NoOptDefVal = config.DefaultUDPTargetAddress
	fs.StringVar(&f.ws, "ws", "",
		"Serve JSON results over WebSocket on this address")
	fs.Lookup("ws").NoOptDefVal = config.DefaultWebSocketAddress
	fs.BoolVar(&f.tui, "tui", false,
		"Show the live terminal monitor")

	// Debug Configuration
	fs.BoolVarP(&f.verbose, "verbose", "v", false,
		"Show verbose output")
	fs.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn, error")
}

// bindFlags copies DOPPLER_* environment values into flags the user did not
// set, so that Changed reports every explicit override.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if err := v.BindEnv(f.Name, envPrefix+"_"+envVarSuffix); err != nil {
			lastErr = err
			return
		}

		if !f.Changed && v.IsSet(f.Name) {
			val := v.GetString(f.Name)
			if err := cmd.Flags().Set(f.Name, val); err != nil {
				lastErr = fmt.Errorf("%s_%s: %w", envPrefix, envVarSuffix, err)
			}
		}

		if err := v.BindPFlag(f.Name, f); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// applyFlags layers every explicitly set flag onto cfg.
func applyFlags(fs *pflag.FlagSet, f *flagValues, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("device", func() { cfg.Audio.InputDevice = f.device })
	set("channels", func() { cfg.Audio.InputChannels = f.channels })
	set("sample-rate", func() { cfg.Audio.SampleRate = f.sampleRate })
	set("frames-per-buffer", func() { cfg.Audio.FramesPerBuffer = f.framesPerBuffer })
	set("low-latency", func() { cfg.Audio.LowLatency = f.lowLatency })
	set("source", func() { cfg.Audio.Source = f.source })
	set("file", func() { cfg.Audio.File = f.file })
	set("loop", func() { cfg.Audio.Loop = f.loop })
	set("tones", func() { cfg.Audio.Tones = f.tones })

	set("mode", func() { cfg.Analysis.Mode = f.mode })
	set("resolution", func() { cfg.Analysis.Resolution = f.resolution })
	set("tick", func() { cfg.Analysis.TickPeriod = f.tick })
	set("window", func() { cfg.Analysis.Window = f.window })
	set("backend", func() { cfg.Analysis.Backend = f.backend })
	set("channel", func() { cfg.Analysis.Channel = f.channel })
	set("gate", func() { cfg.Analysis.GateThreshold = f.gate })

	set("record", func() { cfg.Recording.Enabled = f.record })
	set("output", func() { cfg.Recording.OutputFile = f.output })
	set("bit-depth", func() { cfg.Recording.BitDepth = f.bitDepth })

	set("udp", func() {
		cfg.Transport.UDPEnabled = f.udp != ""
		cfg.Transport.UDPTargetAddress = f.udp
	})
	set("ws", func() {
		cfg.Transport.WebSocketEnabled = f.ws != ""
		cfg.Transport.WebSocketAddress = f.ws
	})
	set("tui", func() { cfg.Transport.TUI = f.tui })

	set("verbose", func() { cfg.Debug = f.verbose })
	set("log-level", func() { cfg.LogLevel = f.logLevel })
}
