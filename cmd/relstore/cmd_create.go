package main

import (
	"fmt"

	"github.com/rpcpool/relstore/internal/choicevec"
	"github.com/rpcpool/relstore/internal/relation"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func newCmdCreate() *cli.Command {
	var numAttrs uint
	var estPages uint64
	var choiceVectorSpec string
	return &cli.Command{
		Name:        "create",
		Usage:       "Create a new relation on disk.",
		Description: "Create a new relation: allocate its .info/.data/.ovflow files and write its initial choice vector.",
		ArgsUsage:   "<dir> <name>",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:        "num-attrs",
				Usage:       "number of attributes per tuple",
				Required:    true,
				Destination: &numAttrs,
			},
			&cli.Uint64Flag{
				Name:        "est-pages",
				Usage:       "estimated number of buckets to pre-size for (rounded up to a power of two)",
				Value:       1,
				Destination: &estPages,
			},
			&cli.StringFlag{
				Name:        "choice-vector",
				Usage:       "explicit choice-vector prefix as attr,bit:attr,bit:... (remaining entries are generated at random)",
				Destination: &choiceVectorSpec,
			},
		},
		Action: func(c *cli.Context) error {
			dir := c.Args().Get(0)
			name := c.Args().Get(1)
			if dir == "" || name == "" {
				return cli.Exit(fmt.Errorf("usage: relstore create <dir> <name>"), 1)
			}

			var cv *choicevec.Vector
			var err error
			if choiceVectorSpec != "" {
				cv, err = choicevec.Parse(choiceVectorSpec, uint32(numAttrs))
			} else {
				cv, err = choicevec.New(nil, uint32(numAttrs))
			}
			if err != nil {
				return cli.Exit(err, 1)
			}

			r, err := relation.Create(dir, name, uint32(numAttrs), estPages, cv)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer r.Close()

			klog.Infof("created relation %q in %s (%d attributes)", name, dir, numAttrs)
			return nil
		},
	}
}
