// Command relstore is a CLI front end over a disk-backed multi-attribute
// relation: create a relation, insert tuples into it, and run partial-match
// selects against it from the shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

var gitCommitSHA = ""

// sessionID is logged once at the start of each process invocation, for
// correlating a create/insert/select sequence in shared log output.
var sessionID = uuid.New().String() + ":" + time.Now().Format("20060102T150405")

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}

		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "relstore",
		Version:     gitCommitSHA,
		Description: "Create, populate, and query disk-backed multi-attribute relations.",
		Before: func(c *cli.Context) error {
			klog.Infof("session %s", sessionID)
			return nil
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "accepted but not read; log output is the same with or without it",
			},
		},
		Commands: []*cli.Command{
			newCmdCreate(),
			newCmdInsert(),
			newCmdSelect(),
			newCmdStats(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}
