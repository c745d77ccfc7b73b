package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"BlindTally/internal/events"
	"BlindTally/internal/storage"
)

var Events = cli.Command{
	Action: listEvents,
	Name:   "events",
	Usage:  "prints the event journal of the data dir",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "from", Value: 1, Usage: "first sequence number to print"},
		&cli.StringFlag{Name: "kind", Usage: "only print events of this kind, e.g. DataSubmitted"},
	},
}

func listEvents(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	db, err := storage.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open data dir:\n%w", err)
	}

	err = printJournal(db, ctx.Uint64("from"), events.Kind(ctx.String("kind")))
	if cerr := db.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}

	return err
}

func printJournal(db *storage.Storage, from uint64, kind events.Kind) error {
	j, err := events.OpenJournal(db)
	if err != nil {
		return fmt.Errorf("open journal:\n%w", err)
	}

	return j.Replay(from, func(seq uint64, ev events.Event) error {
		if kind != "" && ev.Kind() != kind {
			return nil
		}

		fmt.Printf("%6d %-22s %+v\n", seq, ev.Kind(), ev)
		return nil
	})
}
