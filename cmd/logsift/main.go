package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/five82/logsift/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: logsift [flags] [file ...]\n       logsift [flags] -- command [arg ...]\n\n")
		flag.PrintDefaults()
	}
	configPath := flag.String("config", "", "override settings path (optional)")
	rule := flag.String("rule", "", "parsing rule to use instead of matching by file name")
	tail := flag.Int("tail", 0, "read only the last N lines of each file (optional)")
	follow := flag.Bool("follow", false, "keep reading lines appended to the files")
	debug := flag.Bool("debug", false, "write debug messages to the log file")
	args, command := splitCommand(os.Args[1:])
	_ = flag.CommandLine.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		Rule:       *rule,
		TailLines:  *tail,
		Follow:     *follow,
		Debug:      *debug,
	}
	opts.Files = flag.Args()
	opts.Command = command
	if len(opts.Command) == 0 && !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		opts.Stdin = os.Stdin
	}
	if len(opts.Files) == 0 && len(opts.Command) == 0 && opts.Stdin == nil {
		flag.Usage()
		return 2
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "logsift: %v\n", err)
		return 1
	}
	return 0
}

// splitCommand separates the arguments after the first "--", which name a
// command whose output is viewed.
func splitCommand(args []string) ([]string, []string) {
	for i, arg := range args {
		if arg == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}
