// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
		},
	}
}

// channelCommand handles per-channel credential operations
func channelCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "channel",
		Aliases: []string{"ch"},
		Usage:   "Channel credential operations",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Classify the credentials of one channel, or every channel under the root",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "channel", UsageText: "category/name"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.ChannelStatus,
			},
			{
				Name:  "auth",
				Usage: "Authorize a channel through the browser",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "channel", UsageText: "category/name"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the consent URL without opening a browser",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Give up when no redirect arrives in time (overrides oauth.idle_timeout_seconds)",
					},
				},
				Action: r.ChannelAuth,
			},
			{
				Name:  "secret",
				Usage: "Install a client_secret.json for a channel, or write the empty placeholder",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "channel", UsageText: "category/name"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Path to the client secret downloaded from the Google Cloud console",
					},
				},
				Action: r.ChannelSecret,
			},
		},
	}
}

// uploadCommand handles upload queue operations
func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Upload queue operations",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Queue every [[job]] in a manifest and upload them in order",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "channel", UsageText: "category/name"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "manifest",
						Aliases:  []string{"m"},
						Usage:    "TOML file with [[job]] tables",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Validate the manifest and print the jobs without uploading",
					},
					&cli.StringFlag{
						Name:    "report",
						Aliases: []string{"o"},
						Usage:   "Write the run report to this path",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Report format (text, csv, markdown)",
						Value: "text",
					},
				},
				Action: r.UploadRun,
			},
		},
	}
}

// historyCommand lists the upload ledger
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded upload outcomes, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Only show this category/name",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of rows to return",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (text, csv)",
				Value: "text",
			},
		},
		Action: r.History,
	}
}
