package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	orchestration "github.com/exajoy/aider/core"
	"github.com/exajoy/aider/core/events"
	"github.com/exajoy/aider/core/llms/openai"
	"github.com/exajoy/aider/core/session"
	"github.com/exajoy/aider/core/transport"
	"github.com/exajoy/aider/internal/config"
	"github.com/exajoy/aider/internal/tui"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	flagConfig string
	flagStream bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aider",
	Short: "Streaming AI chat in the terminal",
	Long: `aider is a terminal chat client for the OpenAI Responses API.

Run without arguments to start the interactive chat. Type a message and press
Enter to send it; the answer streams in as it is generated. Press Esc or
Ctrl+C to quit.

Examples:
  aider                              # Start interactive chat
  aider ask "what is a goroutine?"   # One answer on stdout
  aider ask --stream explain select  # Stream the answer as it arrives
  aider config schema                # Print the config file JSON schema`,
	Version:      version,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), cfg)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <prompt...>",
	Short: "Send a single prompt and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		return runAsk(cmd.Context(), cfg, strings.Join(args, " "), cmd.OutOrStdout())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(config.Schema()); err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default $XDG_CONFIG_HOME/aider/config.toml)")
	askCmd.Flags().BoolVar(&flagStream, "stream", false, "Print the answer as it streams in")

	configCmd.AddCommand(configSchemaCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(configCmd)
}

func newStreamer(cfg *config.Config) (*openai.Streamer, error) {
	client, err := transport.New(cfg.BaseURL, cfg.Credential())
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	return openai.NewStreamer(client, cfg.StreamerConfig()), nil
}

func runChat(ctx context.Context, cfg *config.Config) error {
	streamer, err := newStreamer(cfg)
	if err != nil {
		return err
	}

	terminal := tui.New()
	orchestrator := orchestration.NewOrchestrator(
		orchestration.WithStreamer(streamer),
		orchestration.WithRenderer(terminal),
		orchestration.WithInputSource(terminal),
		orchestration.WithSession(session.New(session.WithWelcome(cfg.Welcome))),
		orchestration.WithQueueCapacity(cfg.QueueCapacity),
	)

	err = orchestrator.Run(ctx)
	terminal.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runAsk(ctx context.Context, cfg *config.Config, prompt string, out io.Writer) error {
	streamer, err := newStreamer(cfg)
	if err != nil {
		return err
	}

	if !flagStream {
		text, err := streamer.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	for event := range streamer.Stream(ctx, prompt) {
		switch typedEvent := event.(type) {
		case events.StreamTextDelta:
			fmt.Fprint(out, typedEvent.Text)
		case events.StreamCompleted:
			fmt.Fprintln(out)
		case events.StreamFailed:
			fmt.Fprintln(out)
			return errors.New(typedEvent.Message)
		}
	}
	return ctx.Err()
}
