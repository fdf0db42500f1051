package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/rpcpool/relstore/internal/parsetext"
	"github.com/rpcpool/relstore/internal/relation"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func newCmdSelect() *cli.Command {
	return &cli.Command{
		Name:        "select",
		Usage:       "Find every tuple matching a partial query.",
		Description: "Query a relation with value_0,value_1,...,value_{n-1}, using ? for a wildcard attribute.",
		ArgsUsage:   "<dir> <name> <query>",
		Action: func(c *cli.Context) error {
			dir := c.Args().Get(0)
			name := c.Args().Get(1)
			query := c.Args().Get(2)
			if dir == "" || name == "" {
				return cli.Exit(fmt.Errorf("usage: relstore select <dir> <name> <query>"), 1)
			}

			r, err := relation.Open(dir, name, false)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer r.Close()

			q, err := parsetext.Query(query, int(r.NumAttrs()))
			if err != nil {
				return cli.Exit(err, 1)
			}

			it, err := r.Select(q)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer it.Close()

			var count int64
			for {
				tp, err := it.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return cli.Exit(err, 1)
				}
				fmt.Println(joinValues(tp))
				count++
			}

			klog.Infof("matched %s tuples", humanize.Comma(count))
			return nil
		},
	}
}

func joinValues(t [][]byte) string {
	var buf bytes.Buffer
	for i, v := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(v)
	}
	return buf.String()
}
