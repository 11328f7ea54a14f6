package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"triviahost/core"
	"triviahost/factories"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "triviahost",
	Short: "Voice trivia game with AI hosts",
	Long: `triviahost runs a spoken trivia game. A host with a personality asks a
generated question out loud, listens to the spoken answer over a live audio
session, judges it and keeps score.

Settings are read from SETTINGS_JSON_B64 or the file at SETTINGS_PATH
(default ./settings.json). API keys come from the environment or .env.local.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(".env.local"); err != nil {
			core.GetLogger().With(map[string]any{"error": err}).Debug("no .env.local file loaded")
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the game to browsers over HTTP and websocket",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play in the terminal with the local microphone and speakers",
	Long: `Play runs one game in the terminal. Audio uses the default sound card
through PortAudio, which requires a binary built with -tags portaudio.`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

var personalitiesCmd = &cobra.Command{
	Use:   "personalities",
	Short: "List the available trivia hosts",
	Args:  cobra.NoArgs,
	RunE:  runPersonalities,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides settings)")
	playCmd.Flags().String("personality", "", "host to preselect")
	personalitiesCmd.Flags().Bool("json", false, "print as JSON")

	rootCmd.AddCommand(serveCmd, playCmd, personalitiesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadSettings loads SettingsConfig and injects API keys from the environment.
func loadSettings(logger *core.Logger) (factories.SettingsConfig, error) {
	settings, source, err := factories.LoadSettings(os.Getenv)
	if err != nil {
		return settings, err
	}
	logger.With(map[string]any{"source": source}).Info("settings loaded")
	settings.Session.InjectAPIKeys(factories.APIKeysFromEnv(os.Getenv))
	return settings, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	core.SetLogger(*core.NewLoggerFromEnv())
	logger := core.GetLogger().With(map[string]any{"component": "serve"})

	settings, err := loadSettings(logger)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		if settings.Transport.WebSocketConfig == nil {
			return errors.New("--addr needs the websocket transport")
		}
		settings.Transport.WebSocketConfig.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := settings.Session.BuildServices(ctx, logger)
	if err != nil {
		return err
	}
	provider, err := settings.Transport.GetProvider(settings.Session.GameConfig().Personalities, logger)
	if err != nil {
		return err
	}

	pipeline := factories.NewPipeline(
		factories.GameHandlerBuilder(settings.Session, services, logger),
		factories.PipelineConfig{Timeout: time.Duration(getEnvAsInt("WORKER_TIMEOUT_SECONDS", 3600)) * time.Second},
		logger,
	)
	err = pipeline.Serve(provider, ctx)
	logger.Info("shut down")
	return err
}

func runPlay(cmd *cobra.Command, _ []string) error {
	// The terminal is the game UI, so logs go to stderr and only warnings show
	// unless LOG_LEVEL says otherwise.
	level := zerolog.WarnLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}
	core.SetLogger(*core.NewZerologLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()))
	logger := core.GetLogger().With(map[string]any{"component": "play"})

	settings, err := loadSettings(logger)
	if err != nil {
		return err
	}
	if id, _ := cmd.Flags().GetString("personality"); id != "" {
		settings.Session.Game.DefaultPersonality = id
	}
	settings.Transport = settings.Transport.ConsoleTransportConfig()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := settings.Session.BuildServices(ctx, logger)
	if err != nil {
		return err
	}
	provider, err := settings.Transport.GetProvider(settings.Session.GameConfig().Personalities, logger)
	if err != nil {
		return err
	}
	console, ok := provider.(*factories.ConsoleProvider)
	if !ok {
		return fmt.Errorf("unexpected provider %T", provider)
	}

	pipeline := factories.NewPipeline(
		factories.GameHandlerBuilder(settings.Session, services, logger),
		factories.PipelineConfig{},
		logger,
	)
	if err := console.RegisterJobHandler(pipeline.Run); err != nil {
		return err
	}
	if err := console.Start(); err != nil {
		return errors.Join(err, console.Stop())
	}

	select {
	case <-console.Done():
	case <-ctx.Done():
	}
	return console.Stop()
}

func runPersonalities(cmd *cobra.Command, _ []string) error {
	core.SetLogger(*core.NewZerologLogger(zerolog.New(os.Stderr).Level(zerolog.WarnLevel)))
	settings, err := loadSettings(core.GetLogger())
	if err != nil {
		return err
	}
	catalog := settings.Session.GameConfig().Personalities

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := sonic.ConfigStd.MarshalIndent(catalog, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVOICE\tDESCRIPTION")
	for _, p := range catalog {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Voice, p.Description)
	}
	return tw.Flush()
}

// getEnvAsInt gets an environment variable as integer with a default fallback
func getEnvAsInt(key string, defaultValue int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}

