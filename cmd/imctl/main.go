// imctl is the control CLI for imbridge: it checks and queries hotkey
// profiles and keymaps, moves profiles in and out of the profile store, and
// probes a live IBus connection.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"imbridge/internal/config"
	"imbridge/internal/hotkey"
	"imbridge/internal/keysym"
	"imbridge/internal/logging"
	"imbridge/internal/store"
)

// errUsage makes run exit with status 2.
var errUsage = errors.New("usage")

type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool

	cfg    *config.Config
	logger *logging.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteC()
	if a.logger != nil {
		a.logger.Close()
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		if err != errUsage {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		if cmd == root {
			fmt.Fprint(stderr, root.UsageString())
		} else {
			fmt.Fprintf(stderr, "Usage: %s\n", cmd.UseLine())
		}
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "imctl",
		Short:         "Control utility for imbridge",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
			}
			return nil
		},
		RunE: func(*cobra.Command, []string) error { return errUsage },
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.AddCommand(
		newCheckCmd(a),
		newLookupCmd(a),
		newKeymapCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newListCmd(a),
		newDeleteCmd(a),
		newConfigCmd(a),
		newProbeCmd(a),
	)
	return root
}

// usageArgs reports argument count errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}

// setup loads the configuration and opens the logger.
func (a *app) setup() error {
	path := a.configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	logger, err := newLogger(cfg, a.verbose, a.stderr)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	a.logger = logger
	return nil
}

func newLogger(cfg *config.Config, verbose bool, console io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = logging.LevelDebug
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  int64(cfg.Logging.MaxSizeMB),
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
		Component:  "imctl",
		Console:    console,
	})
}

// loadProfile reads a profile file, or a JSON export when the name ends in
// .json. Lenient loads return the skipped lines.
func loadProfile(path string, strict bool, ignored keysym.State) (*hotkey.Profile, []*hotkey.LineError, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		p, err := hotkey.DecodeJSON(f)
		return p, nil, err
	}
	return hotkey.LoadFile(path, hotkey.LoadOptions{Strict: strict, IgnoredMask: ignored})
}

func (a *app) openStore(override string) (*store.Store, error) {
	path := a.cfg.Store.Path
	if override != "" {
		path = override
	}
	return store.Open(path)
}
