package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/bednajedna/parabot/internal/log"
	"github.com/bednajedna/parabot/internal/model"

	"github.com/spf13/cobra"
)

var (
	userConfigPath string // /default/config/path/parabot on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	logCloser      io.Closer

	flagConfigFilePath string   // value of --config flag
	flagVerbose        bool     // value of --verbose flag
	flagAll            bool     // value of --all flag
	flagFolders        []string // value of --folders flag
	flagTags           []string // value of --tags flag
	flagTimeout        int      // value of --timeout flag, seconds
	flagConcurrency    int      // value of --concurrency flag
	flagStrategy       string   // value of --strategy flag
	flagCompatExit     bool     // value of --compat-exit flag
)

// errFailed makes the process exit with 1 without printing anything else.
var errFailed = errors.New("some jobs have failed")

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		d = "."
	}
	userConfigPath = filepath.Join(d, "parabot")
}

func main() {
	flags := rootCmd.Flags()
	flags.BoolVar(&flagAll, "all", false, "run every discovered test file in the bounded pool")
	flags.StringSliceVar(&flagFolders, "folders", nil, "run test files under given paths in the bounded pool")
	flags.StringSliceVar(&flagTags, "tags", nil, "run tests with given tags, one process per tag")
	flags.IntVar(&flagTimeout, "timeout", 0, "batch timeout in seconds for --all and --folders (-to), 0 waits indefinitely")
	flags.IntVar(&flagConcurrency, "concurrency", 0, "max parallel processes for --all and --folders, 0 means number of CPUs")
	flags.StringVar(&flagStrategy, "strategy", "", "process creation strategy: inherit or isolated")
	flags.BoolVar(&flagCompatExit, "compat-exit", false, "always exit with 0 like parabot 0.0.1, even if tests failed")

	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is parabot.yaml or parabot.toml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse a config, setup logging
	rootCmd.PersistentPreRunE = initParabot
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	}

	rootCmd.AddCommand(versionCmd)

	// interrupt cancels the pools, which kill and reap their processes
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errFailed) {
			slog.Error("parabot failed", "err", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "parabot",
	Short:        "Execute robotframework test files/tests in parallel",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         doRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a parabot",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("parabot: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:  %s\n", configPath)
		}
		fmt.Printf("parabot: %s\n", info.Main.Version)
		fmt.Printf("go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:    %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:   %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

// normalizeArgs rewrites the single dash -to flag of parabot 0.0.1, pflag
// shorthands are one letter only.
func normalizeArgs(args []string) []string {
	ret := make([]string, len(args))
	for i, a := range args {
		switch {
		case a == "--":
			copy(ret[i:], args[i:])
			return ret
		case a == "-to":
			a = "--timeout"
		case len(a) > 4 && a[:4] == "-to=":
			a = "--timeout=" + a[4:]
		}
		ret[i] = a
	}
	return ret
}

func initParabot(cmd *cobra.Command, _ []string) error {
	configPath = lookupConfig()

	if configPath == "" {
		config = model.DefaultConfig()
	} else {
		var err error
		config, err = model.LoadConfigFile(configPath)
		if err != nil {
			for _, d := range model.ConfigErrDetails(err) {
				slog.Error("invalid config", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config %s: %w", configPath, err)
		}
	}

	// --verbose has a precedence over config file
	if flagVerbose {
		config.Service.Verbose = true
	}

	w, closer, err := logWriter(config.Service.Log)
	if err != nil {
		return err
	}
	logCloser = closer
	slog.SetDefault(log.New(w, log.Options{
		Verbose: config.Service.Verbose,
		JSON:    config.Service.Format != model.FormatText,
	}))

	slog.Debug("parabot run", "configPath", configPath)
	slog.Debug("parabot run", "config", config)
	return nil
}

func lookupConfig() string {
	if envConfig, ok := os.LookupEnv("PARABOTCONFIG"); ok {
		return envConfig
	}
	if flagConfigFilePath != "" {
		return flagConfigFilePath
	}
	for _, d := range []string{".", userConfigPath} {
		for _, name := range []string{"parabot.yaml", "parabot.yml", "parabot.toml"} {
			path := filepath.Join(d, name)
			if exists(path) {
				return path
			}
		}
	}
	return ""
}

// logWriter resolves service.log, a path is opened for appending.
func logWriter(dest string) (io.Writer, io.Closer, error) {
	switch dest {
	case "", model.LogStderr:
		return os.Stderr, nil, nil
	case model.LogStdout:
		return os.Stdout, nil, nil
	case model.LogDiscard:
		return io.Discard, nil, nil
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, f, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
