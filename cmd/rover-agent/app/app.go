// Package app wires the rover-agent command line.
package app

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/voicerover-io/voicerover/cmd/rover-agent/app/options"
	"github.com/voicerover-io/voicerover/internal/rover/parser"
	"github.com/voicerover-io/voicerover/pkg/app"
	"github.com/voicerover-io/voicerover/pkg/log"
)

const (
	commandName = "rover-agent"
	commandDesc = `The rover agent turns natural-language voice transcripts into motion
commands for a serially attached rover controller. Utterances are parsed,
prioritized in a bounded queue and dispatched over a framed serial link;
an emergency stop preempts everything in flight.`
)

// version is injected at build time.
var version = "dev"

// NewApp assembles the rover-agent application.
func NewApp() *app.App {
	opts := options.NewAgentOptions()
	return app.NewApp(
		commandName,
		"Run the voice-command rover agent",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
		app.WithSubcommands(newPatternsCommand(), newVersionCommand()),
	)
}

func run(opts *options.AgentOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		agent, err := cfg.NewAgent()
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}

		return agent.Run(ctx)
	}
}

// newPatternsCommand lists the recognized command patterns in tie-break
// order, useful when tuning phrases.
func newPatternsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the recognized command patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := uitable.New()
			table.MaxColWidth = 80
			table.AddRow("KIND", "CLASS", "PATTERN")
			for _, e := range parser.NewLexicon().Entries() {
				table.AddRow(e.Kind, e.Class, e.Pattern)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s/%s\n", commandName, version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
