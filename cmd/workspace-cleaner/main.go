package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/peterbourgon/ff/v3"
	"github.com/pkg/errors"

	"github.com/promptflow/releasekit/pkg/cleanup"
	"github.com/promptflow/releasekit/pkg/contexts/ctxlog"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagset := flag.NewFlagSet("workspace-cleaner", flag.ExitOnError)
	var (
		flDebug = flagset.Bool(
			"debug",
			false,
			"enable debug logging",
		)
		flWorkspaces = flagset.String(
			"workspaces",
			"workspaces.yaml",
			"yaml file listing the workspaces to clean",
		)
		flCommand = flagset.String(
			"command",
			"",
			"the cleanup command to run per workspace, eg 'python scripts/cleanup.py clean'",
		)
	)

	flagset.Usage = usageFor(flagset, "workspace-cleaner [flags]")
	if err := ff.Parse(flagset, args,
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("WORKSPACE_CLEANER"),
	); err != nil {
		return err
	}

	logger := log.NewJSONLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)

	if *flDebug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	ctx := ctxlog.NewContext(context.Background(), logger)

	if *flCommand == "" {
		return errors.New("cleanup command undefined")
	}

	workspaces, err := cleanup.LoadWorkspaces(*flWorkspaces)
	if err != nil {
		return errors.Wrap(err, "loading workspaces")
	}

	submitter, err := cleanup.New(strings.Fields(*flCommand))
	if err != nil {
		return errors.Wrap(err, "configuring submitter")
	}

	if err := submitter.Run(ctx, workspaces); err != nil {
		return errors.Wrap(err, "cleaning workspaces")
	}

	level.Info(logger).Log(
		"msg", "cleanup jobs submitted",
		"workspaces", len(workspaces),
	)

	return nil
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}
