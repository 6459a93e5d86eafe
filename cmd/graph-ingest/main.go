package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/growgraph/graph-ingest/internal/app"
	"github.com/growgraph/graph-ingest/internal/logging"
)

func main() {
	runner := app.NewAppRunner()

	err := runner.Run(os.Args[1:])
	if err != nil {
		printUsage := errors.Is(err, app.ErrUsage) || errors.Is(err, app.ErrConfigNotFound)
		if printUsage {
			fmt.Fprintln(os.Stderr, "")
			runner.Usage(os.Stderr)
		}

		if logging.GetLevel() < logging.Error {
			logging.SetLevel(logging.Error)
		}
		logging.Logf(logging.Error, "graph-ingest: %v", err)
		os.Exit(1)
	}

	logging.Logf(logging.Info, "graph-ingest: run completed successfully")
}
