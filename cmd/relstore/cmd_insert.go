package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rpcpool/relstore/internal/parsetext"
	"github.com/rpcpool/relstore/internal/relation"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func newCmdInsert() *cli.Command {
	var file string
	return &cli.Command{
		Name:        "insert",
		Usage:       "Insert tuples into a relation.",
		Description: "Insert one tuple per remaining argument, or one per line of --file, each as value_0,value_1,...",
		ArgsUsage:   "<dir> <name> [tuple...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Usage:       "read one tuple per line from this file instead of (or in addition to) the argument list",
				Destination: &file,
			},
		},
		Action: func(c *cli.Context) error {
			dir := c.Args().Get(0)
			name := c.Args().Get(1)
			if dir == "" || name == "" {
				return cli.Exit(fmt.Errorf("usage: relstore insert <dir> <name> [tuple...]"), 1)
			}

			r, err := relation.Open(dir, name, true)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer r.Close()

			numAttrs := int(r.NumAttrs())
			startedAt := time.Now()
			var inserted int64

			insertLine := func(line string) error {
				tp, err := parsetext.Tuple(line, numAttrs)
				if err != nil {
					return err
				}
				if err := r.Insert(tp); err != nil {
					return err
				}
				inserted++
				if inserted%100_000 == 0 {
					printToStderr(".")
				}
				return nil
			}

			for _, arg := range c.Args().Slice()[2:] {
				if err := insertLine(arg); err != nil {
					return cli.Exit(err, 1)
				}
			}

			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer f.Close()
				scanner := bufio.NewScanner(f)
				scanner.Buffer(make([]byte, 64*1024), 1024*1024)
				for scanner.Scan() {
					if err := insertLine(scanner.Text()); err != nil {
						return cli.Exit(err, 1)
					}
				}
				if err := scanner.Err(); err != nil {
					return cli.Exit(err, 1)
				}
			}

			printToStderr("\n")
			klog.Infof("inserted %s tuples in %s", humanize.Comma(inserted), time.Since(startedAt))
			return nil
		},
	}
}

func printToStderr(msg string) {
	fmt.Fprint(os.Stderr, msg)
}
