// Command bewritten is the command-line front end for a bewritten project.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bit-bot-bit/bewritten/internal/config"
	"github.com/bit-bot-bit/bewritten/internal/logging"
	"github.com/bit-bot-bit/bewritten/internal/project"
	"github.com/bit-bot-bit/bewritten/pkg/review"
)

// app carries state shared by every subcommand for one invocation.
type app struct {
	configFile string
	cfg        *config.Config
	log        *slog.Logger
	logCloser  io.Closer
	ws         *project.Workspace
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes one command line and releases the project and log file afterwards.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	root, a := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)

	err := root.ExecuteContext(ctx)
	if cerr := a.teardown(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "bewritten",
		Short: "Continuity and provenance tooling for long-form fiction",
		Long: `bewritten keeps a novel's story facts in a project directory and checks
scene text against them.

Tag characters as @Name and places as #Place in scene text. Saving a scene
records who and where it involves, writes the manuscript file and logs the
edit. Continuity checks flag dead characters who reappear and can ask an AI
reviewer for a second opinion.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringP("project", "p", "", "Project directory (env BEWRITTEN_PROJECT)")
	root.PersistentFlags().Bool("json", false, "Output JSON")
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (default <project>/.bewritten/config.yaml)")

	root.AddCommand(
		newInitCmd(a),
		newAnalyzeCmd(a),
		newCharacterCmd(a),
		newLocationCmd(a),
		newSceneCmd(a),
		newCheckCmd(a),
		newRecalcCmd(a),
		newRelationshipsCmd(a),
		newProvenanceCmd(a),
		newSettingsCmd(a),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	projectFlag, _ := flags.GetString("project")

	_, v, err := config.Load(a.configFile, projectFlag)
	if err != nil {
		return err
	}
	// Flags override env and file
	if err := v.BindPFlag("project", flags.Lookup("project")); err != nil {
		return err
	}
	if err := v.BindPFlag("json", flags.Lookup("json")); err != nil {
		return err
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	a.cfg = cfg

	a.log, a.logCloser, err = logging.New(cfg)
	if err != nil {
		return err
	}
	if cfg.ConfigFile != "" {
		a.log.Debug("loaded config", "file", cfg.ConfigFile)
	}

	a.ws = project.NewWorkspace(project.Options{
		Logger:      a.log,
		LockTimeout: cfg.LockTimeout,
		Review:      review.Options{Timeout: cfg.ReviewTimeout, Logger: a.log},
	})
	return nil
}

func (a *app) teardown() error {
	var err error
	if a.ws != nil {
		err = a.ws.Close()
		a.ws = nil
	}
	if a.logCloser != nil {
		if cerr := a.logCloser.Close(); err == nil {
			err = cerr
		}
		a.logCloser = nil
	}
	return err
}

// attach opens the configured project. With no project configured the
// workspace stays empty and its operations report project.ErrNoProject.
func (a *app) attach(ctx context.Context) error {
	if a.cfg.Project == "" {
		return nil
	}
	return a.ws.Open(ctx, a.cfg.Project)
}

// emit writes v as indented JSON when --json is set, otherwise calls text.
func (a *app) emit(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if a.cfg.JSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	text(out)
	return nil
}
