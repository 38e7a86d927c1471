package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/cli"
	"github.com/AngelCh415/dmlab/internal/config"
	"github.com/AngelCh415/dmlab/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	State   string `help:"State file (JSON envelope or any legacy shape)." type:"path" default:"./data/dmlab.json" env:"DMLAB_STATE"`
	Verbose bool   `help:"Log debug output to stderr." short:"v"`

	Report   cli.ReportCmd   `cmd:"" help:"Print the KPI report as JSON."`
	Evaluate cli.EvaluateCmd `cmd:"" help:"Evaluate an experiment's variants."`
	Migrate  cli.MigrateCmd  `cmd:"" help:"Normalize the state file to the current schema."`
	Export   cli.ExportCmd   `cmd:"" help:"Export logs with per-row KPIs as CSV."`
	Import   cli.ImportCmd   `cmd:"" help:"Append CSV rows as logs and save."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("dmlab"),
		kong.Description("LinkedIn DM funnel KPIs and experiment evaluation"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	level := "warn"
	if CLI.Verbose {
		level = "debug"
	}
	log, err := logger.New(&config.LoggingConfig{Level: level, Format: "console"}, &config.AppConfig{Environment: "cli"})
	if err != nil {
		log = zap.NewNop()
	}
	defer func() { _ = log.Sync() }()

	appCtx, err := cli.Open(context.Background(), CLI.State, os.Stdout, log)
	if err == nil {
		err = kctx.Run(appCtx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
