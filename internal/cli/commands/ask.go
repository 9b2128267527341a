package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/leapstack-labs/leapsheet/internal/agent"
	"github.com/leapstack-labs/leapsheet/internal/cli/output"
	"github.com/leapstack-labs/leapsheet/internal/voice"
	"github.com/spf13/cobra"
)

// agentHint explains how to enable natural-language input.
const agentHint = "Set agent.command in leapsheet.yaml (or LEAPSHEET_AGENT__COMMAND) to enable natural-language input."

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <request...>",
		Short: "Run a natural-language request",
		Long: `Translate a request into table operations with the configured agent and
apply them in order.

The agent is an external command (agent.command) that reads a JSON request
on stdin and answers with the tool calls to make.`,
		Example: `  leapsheet ask "make a reading list with title and status"
  leapsheet ask add Dune, status reading`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runRequest(cmd.Context(), cc, strings.Join(args, " "))
		},
	}
}

// NewVoiceCommand creates the voice command.
func NewVoiceCommand() *cobra.Command {
	var transcriptOnly bool

	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Speak a request",
		Long: `Record one spoken request, transcribe it and run it like ask.

Recording stops on Ctrl-C or after voice.max_duration. Capture uses ffmpeg
and transcription uses the voice.transcriber command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			text, err := listen(cmd.Context(), cc)
			if err != nil {
				return err
			}
			if transcriptOnly {
				cc.Renderer.Println(text)
				return nil
			}
			return runRequest(cmd.Context(), cc, text)
		},
	}

	cmd.Flags().BoolVar(&transcriptOnly, "transcript-only", false, "Print the transcript without running it")
	return cmd
}

// runRequest runs input through the agent and renders every result.
func runRequest(ctx context.Context, cc *CommandContext, input string) error {
	a := agent.FromConfig(cc.Cfg.Agent, cc.Logger)
	if a == nil {
		return fmt.Errorf("%w. %s", agent.ErrDisabled, agentHint)
	}

	sp := cc.Renderer.NewSpinner("Thinking...")
	out, err := agent.Run(ctx, a, cc.Dispatcher, input, cc.Logger)
	sp.Stop()
	if err != nil {
		return err
	}

	if err := renderOutcome(cc.Renderer, out); err != nil {
		return err
	}
	if n := out.Failed(); n > 0 {
		return fmt.Errorf("%d of %d operations failed", n, len(out.Results))
	}
	return nil
}

func renderOutcome(r *output.Renderer, out *agent.Outcome) error {
	if ok, err := r.Structured(out); ok {
		return err
	}
	for _, res := range out.Results {
		if err := r.Result(res); err != nil {
			return err
		}
	}
	if out.Reply != "" {
		r.Info(out.Reply)
	}
	if len(out.Results) == 0 && out.Reply == "" {
		r.Muted("Nothing to do.")
	}
	return nil
}

// listen records until Ctrl-C or the maximum duration and returns the
// transcript.
func listen(ctx context.Context, cc *CommandContext) (string, error) {
	in := voice.New(cc.Cfg.Voice, cc.Logger)
	if err := in.Available(); err != nil {
		return "", err
	}

	stop, release := interruptChannel()
	defer release()

	sp := cc.Renderer.NewSpinner(fmt.Sprintf("Listening (Ctrl-C to stop, max %s)...", in.Recorder.MaxDuration))
	text, err := in.Listen(ctx, stop)
	if err != nil {
		sp.Stop()
		if errors.Is(err, voice.ErrNoSpeech) {
			return "", fmt.Errorf("no speech detected")
		}
		return "", err
	}
	sp.Success("Heard: " + text)
	return text, nil
}

// interruptChannel returns a channel closed on the first SIGINT. The
// release func stops catching the signal.
func interruptChannel() (<-chan struct{}, func()) {
	stop := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, os.Interrupt)

	go func() {
		select {
		case <-sigs:
			close(stop)
		case <-done:
		}
	}()

	return stop, func() {
		signal.Stop(sigs)
		close(done)
	}
}
