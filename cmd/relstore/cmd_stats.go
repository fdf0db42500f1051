package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rpcpool/relstore/internal/relation"
	"github.com/urfave/cli/v2"
)

func newCmdStats() *cli.Command {
	var checkSanity bool
	return &cli.Command{
		Name:        "stats",
		Usage:       "Print a relation's linear-hash state and file sizes.",
		ArgsUsage:   "<dir> <name>",
		Description: "Report num_attrs, depth, split_pointer, num_pages, num_tuples, and on-disk file sizes for a relation.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "check",
				Usage:       "also verify the relation's core addressing invariants",
				Destination: &checkSanity,
			},
		},
		Action: func(c *cli.Context) error {
			dir := c.Args().Get(0)
			name := c.Args().Get(1)
			if dir == "" || name == "" {
				return cli.Exit(fmt.Errorf("usage: relstore stats <dir> <name>"), 1)
			}

			r, err := relation.Open(dir, name, false)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer r.Close()

			s, err := r.Stats()
			if err != nil {
				return cli.Exit(err, 1)
			}

			fmt.Printf("num_attrs:     %d\n", s.NumAttrs)
			fmt.Printf("depth:         %d\n", s.Depth)
			fmt.Printf("split_pointer: %d\n", s.SplitPointer)
			fmt.Printf("num_pages:     %s\n", humanize.Comma(int64(s.NumPages)))
			fmt.Printf("num_tuples:    %s\n", humanize.Comma(int64(s.NumTuples)))
			fmt.Printf("data size:     %s\n", humanize.Bytes(uint64(s.DataBytes)))
			fmt.Printf("overflow size: %s\n", humanize.Bytes(uint64(s.OverflowBytes)))

			if checkSanity {
				if err := r.IsSane(); err != nil {
					fmt.Println("sanity check: FAIL:", err)
					return cli.Exit(err, 1)
				}
				fmt.Println("sanity check: OK")
			}
			return nil
		},
	}
}
