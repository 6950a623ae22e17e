// Command ledgerctl runs the ledger jobs from a terminal: applying recurring
// entries, accruing interest, closing holdings, a full scheduler tick and a
// monthly report.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

var configPath = flag.String("config", "config.yaml", "path to the configuration file")

var commands = []subcommands.Command{
	&applyCmd{},
	&interestCmd{},
	&closeCmd{},
	&tickCmd{},
	&reportCmd{},
}

// completion describes the command line for shell completion.
var completion = &complete.Command{
	Flags: map[string]complete.Predictor{"config": predict.Files("*.yaml")},
	Sub: map[string]*complete.Command{
		"apply": {Flags: map[string]complete.Predictor{
			"user": predict.Something, "year": predict.Something, "month": predict.Something, "day": predict.Something,
		}},
		"interest": {Flags: map[string]complete.Predictor{"user": predict.Something}},
		"close": {Flags: map[string]complete.Predictor{
			"user": predict.Something, "class": predict.Set{"crypto", "stock", "all"},
		}},
		"tick": {},
		"report": {Flags: map[string]complete.Predictor{
			"user": predict.Something, "year": predict.Something, "month": predict.Something,
			"html": predict.Nothing, "o": predict.Files("*"), "width": predict.Something,
		}},
		"help": {},
	},
}

func main() {
	name := path.Base(os.Args[0])
	completion.Complete(name)

	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "jobs")
	}

	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
