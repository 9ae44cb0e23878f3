package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/wavebroker/internal/config"
	"github.com/danmuck/wavebroker/internal/observability"
)

const defaultConfigPath = "cmd/brokerctl/config.toml"

type command struct {
	usage   string
	console bool
	run     func(ctx context.Context, s *session, args []string) error
}

var commands = map[string]command{
	"info": {
		usage: "info",
		run: func(_ context.Context, s *session, _ []string) error {
			return runInfo(s.dev, os.Stdout)
		},
	},
	"ls": {
		usage: "ls <dir>...",
		run: func(_ context.Context, s *session, args []string) error {
			return runLs(s.dev, os.Stdout, args)
		},
	},
	"rm": {
		usage: "rm <file>...",
		run: func(_ context.Context, s *session, args []string) error {
			return runRm(s.dev, args)
		},
	},
	"rmdir": {
		usage: "rmdir [-r] <dir>...",
		run: func(_ context.Context, s *session, args []string) error {
			fs := flag.NewFlagSet("rmdir", flag.ContinueOnError)
			recursive := fs.Bool("r", false, "delete contents first")
			if err := fs.Parse(args); err != nil {
				return err
			}
			return runRmdir(s.dev, *recursive, fs.Args())
		},
	},
	"mkdir": {
		usage: "mkdir [-p] <dir>...",
		run: func(_ context.Context, s *session, args []string) error {
			fs := flag.NewFlagSet("mkdir", flag.ContinueOnError)
			parents := fs.Bool("p", false, "create missing parents")
			if err := fs.Parse(args); err != nil {
				return err
			}
			return runMkdir(s.dev, *parents, fs.Args())
		},
	},
	"put": {
		usage: "put <local> <remote>",
		run: func(ctx context.Context, s *session, args []string) error {
			if len(args) != 2 {
				return errUsage
			}
			return runPut(ctx, s.dev, os.Stdout, args[0], args[1])
		},
	},
	"get": {
		usage: "get <remote> <local>",
		run: func(_ context.Context, s *session, args []string) error {
			if len(args) != 2 {
				return errUsage
			}
			return runGet(s.dev, os.Stdout, args[0], args[1])
		},
	},
	"install": {
		usage:   "install <app-id> <exe> [local-dir]",
		console: true,
		run:     install,
	},
	"console": {
		usage:   "console",
		console: true,
		run: func(ctx context.Context, s *session, _ []string) error {
			return echoConsole(ctx, s)
		},
	},
}

var errUsage = errors.New("bad arguments")

func main() {
	observability.InitLogger("brokerctl")
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "brokerctl: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, stderr io.Writer) error {
	flags := flag.NewFlagSet("brokerctl", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cfgPath := flags.String("config", defaultConfigPath, "broker config file")
	port := flags.String("port", "", "command port (overrides config)")
	consolePort := flags.String("console", "", "console port (overrides config)")
	combined := flags.Bool("combined", false, "read console output from the command port")
	wireLog := flags.String("wire-log", "", "append raw link traffic to this file")
	flags.Usage = func() { usage(flags, stderr) }
	if err := flags.Parse(argv); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errUsage
	}
	name, args := flags.Arg(0), flags.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		flags.Usage()
		return fmt.Errorf("unknown command: %s", name)
	}

	cfg, err := resolveConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *consolePort != "" {
		cfg.ConsolePort = *consolePort
	}
	if *combined {
		cfg.CombinedConsole = true
	}
	if *wireLog != "" {
		cfg.WireLog = *wireLog
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openSession(cfg, cmd.console)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := cmd.run(ctx, s, args); err != nil {
		if errors.Is(err, errUsage) {
			return fmt.Errorf("usage: brokerctl %s", cmd.usage)
		}
		return err
	}
	return nil
}

// resolveConfig loads path, or the defaults when the default path is absent.
func resolveConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
			return config.DefaultConfig(), nil
		}
		return config.Config{}, err
	}
	return loadConfig(path)
}

func usage(flags *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: brokerctl [flags] <command> [args]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
	flags.PrintDefaults()
}

func install(ctx context.Context, s *session, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	plan := installPlan{AppID: args[0], Exe: args[1], Root: args[0]}
	if len(args) == 3 {
		plan.Root = args[2]
	}
	plan.Walker = fsWalker{appID: plan.AppID}

	// The combined console shares the command link, so it can only start
	// once the install sequence is done with it.
	if s.cfg.CombinedConsole {
		if err := runInstall(ctx, s.dev, os.Stdout, plan); err != nil {
			return err
		}
		return echoConsole(ctx, s)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return echoConsole(gctx, s)
	})
	g.Go(func() error {
		return runInstall(gctx, s.dev, os.Stdout, plan)
	})
	return g.Wait()
}

// echoConsole forwards console lines until interrupted.
func echoConsole(ctx context.Context, s *session) error {
	out, closeSink, err := s.consoleSink()
	if err != nil {
		return err
	}
	defer closeSink()
	log.Info().Msg("echoing console, interrupt to stop")
	return s.console.Run(ctx, out)
}
