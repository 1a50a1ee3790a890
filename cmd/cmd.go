// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// checkCommand verifies access to one account
func checkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Show the retailer, tax mode and outlets of an account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Usage:   "Account to check: source or destination",
				Value:   "destination",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Check,
	}
}

// cloneCommand copies one account into another
func cloneCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "clone",
		Usage: "Clone variant attributes, products (with inventory) and customers from source to destination",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "types",
				Aliases: []string{"t"},
				Usage:   "Comma separated entity types: variant_attributes, products, customers",
				Value:   "variant_attributes,products,customers",
			},
			&cli.BoolFlag{
				Name:  "no-inventory",
				Usage: "Skip copying stock levels",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory for the results file (default: clone.output_dir)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Results file format: json or csv",
				Value: "json",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the summary as JSON instead of tables",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the database",
			},
		},
		Action: r.Clone,
	}
}

// seedCommand creates producer-supplied payloads in the destination
func seedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create products or customers in the destination from a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "type",
				Usage:    "Entity type: products or customers",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "JSON file holding an array of payloads (or {\"data\": [...]})",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Concurrent creates (max 10)",
				Value: 1,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory for the results file (default: clone.output_dir)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Results file format: json or csv",
				Value: "json",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the summary as JSON instead of tables",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the database",
			},
		},
		Action: r.Seed,
	}
}

// historyCommand lists and shows recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded clone and seed runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only runs with this status: done, aborted or running",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.HistoryList,
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show one run and its results",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "failed",
						Usage: "Only list failed results",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "delete",
				Usage: "Remove a run from the history",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}
