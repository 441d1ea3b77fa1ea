// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/someonegg/rirmatch"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file, using the process environment")
	}
}

func main() {
	app := &cli.App{
		Name:  "alloc-gen",
		Usage: "Utility for allocating registry address blocks to autonomous systems",
		Commands: []*cli.Command{
			createCmd,
			benchCmd,
			genCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("failed", "err", err, "ids", rirmatch.ErrorIDs(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "alloc-gen",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

var createCmd = &cli.Command{
	Name:    "create",
	Usage:   "Allocate blocks to autonomous systems",
	Aliases: []string{"c"},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "as",
			Required: true,
			Usage:    "specify the input as.yaml",
			EnvVars:  []string{"ALLOC_AS"},
		},
		&cli.StringFlag{
			Name:     "block",
			Required: true,
			Usage:    "specify the input block.yaml",
			EnvVars:  []string{"ALLOC_BLOCK"},
		},
		&cli.StringFlag{
			Name:     "alloc",
			Required: true,
			Usage:    "specify the output alloc.json",
			EnvVars:  []string{"ALLOC_OUTPUT"},
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "specify the matcher config.toml",
			EnvVars: []string{"ALLOC_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "proposer",
			Value:   "as",
			Usage:   "specify the proposing side (as, block)",
			EnvVars: []string{"ALLOC_PROPOSER"},
		},
		&cli.StringFlag{
			Name:    "policy",
			Value:   "distinct",
			Usage:   "specify the capacity policy (distinct, shared)",
			EnvVars: []string{"ALLOC_POLICY"},
		},
		&cli.BoolFlag{
			Name:  "parallel",
			Usage: "score and match concurrently",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "log every unmatched autonomous system",
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx.String("config"))
		if err != nil {
			return err
		}
		if ctx.IsSet("proposer") || cfg.Proposer == "" {
			cfg.Proposer = ctx.String("proposer")
		}
		if ctx.IsSet("policy") || cfg.Policy == "" {
			cfg.Policy = ctx.String("policy")
		}
		if ctx.IsSet("parallel") {
			cfg.Matcher.Parallel = ctx.Bool("parallel")
		}

		m, err := cfg.build()
		if err != nil {
			return err
		}
		m.Logger = newLogger(ctx.Bool("verbose"))

		return doCreate(ctx.Context, m,
			ctx.String("as"), ctx.String("block"), ctx.String("alloc"))
	},
}

var benchCmd = &cli.Command{
	Name:    "bench",
	Usage:   "Compare deferred acceptance with the baselines on synthetic populations",
	Aliases: []string{"b"},
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "ases",
			Value: 100,
			Usage: "specify the number of autonomous systems",
		},
		&cli.IntFlag{
			Name:  "blocks",
			Value: 100,
			Usage: "specify the number of blocks",
		},
		&cli.IntFlag{
			Name:  "runs",
			Value: 10,
			Usage: "specify the number of populations",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Value: 1,
			Usage: "specify the first random seed",
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "specify the matcher config.toml",
			EnvVars: []string{"ALLOC_CONFIG"},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
		},
	},
	Action: func(ctx *cli.Context) error {
		var (
			ases   = ctx.Int("ases")
			blocks = ctx.Int("blocks")
			runs   = ctx.Int("runs")
		)
		if ases <= 0 || blocks <= 0 {
			return errors.New("invalid population size")
		}
		if runs <= 0 {
			return errors.New("invalid runs")
		}

		cfg, err := loadConfig(ctx.String("config"))
		if err != nil {
			return err
		}
		m, err := cfg.build()
		if err != nil {
			return err
		}
		if ctx.Bool("verbose") {
			m.Logger = newLogger(true)
		}

		return doBench(ctx.Context, os.Stdout, m, ases, blocks, runs, ctx.Int64("seed"))
	},
}

var genCmd = &cli.Command{
	Name:    "gen",
	Usage:   "Generate synthetic population files",
	Aliases: []string{"g"},
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "ases",
			Value: 100,
			Usage: "specify the number of autonomous systems",
		},
		&cli.IntFlag{
			Name:  "blocks",
			Value: 100,
			Usage: "specify the number of blocks",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Value: 1,
			Usage: "specify the random seed",
		},
		&cli.StringFlag{
			Name:     "out-as",
			Required: true,
			Usage:    "specify the output as.yaml",
		},
		&cli.StringFlag{
			Name:     "out-block",
			Required: true,
			Usage:    "specify the output block.yaml",
		},
	},
	Action: func(ctx *cli.Context) error {
		var (
			ases   = ctx.Int("ases")
			blocks = ctx.Int("blocks")
		)
		if ases <= 0 || blocks <= 0 {
			return errors.New("invalid population size")
		}
		return doGen(ctx.String("out-as"), ctx.String("out-block"), ases, blocks, ctx.Int64("seed"))
	},
}
