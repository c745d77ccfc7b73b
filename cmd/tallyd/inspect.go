package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"BlindTally/internal/snapshot"
	"BlindTally/internal/storage"
)

var Inspect = cli.Command{
	Action:    inspect,
	Name:      "inspect",
	Usage:     "summarizes a snapshot file written by export",
	ArgsUsage: "<snapshot-file>",
}

var Export = cli.Command{
	Action:    export,
	Name:      "export",
	Usage:     "writes the latest checkpoint of the data dir to a file",
	ArgsUsage: "<output-file>",
}

func inspect(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return fmt.Errorf("missing snapshot file")
	}

	data, err := os.ReadFile(ctx.Args().Get(0))
	if err != nil {
		return err
	}

	s, err := snapshot.Unpack(data)
	if err != nil {
		return fmt.Errorf("unpack snapshot:\n%w", err)
	}

	sum := snapshot.Checksum(s)

	fmt.Printf("owner:          %s\n", s.Owner.Hex())
	fmt.Printf("identity:       %s\n", s.Identity.Hex())
	fmt.Printf("paused:         %t\n", s.Paused)
	fmt.Printf("cooldown:       %ds\n", s.Cooldown)
	fmt.Printf("threshold:      %d\n", s.Threshold)
	fmt.Printf("batch:          %d (open=%t)\n", s.Batch.ID, s.Batch.Open)
	fmt.Printf("providers:      %d\n", len(s.Providers))
	fmt.Printf("contributions:  %d\n", len(s.Contributions))
	fmt.Printf("checksum:       %x\n", sum)

	for _, c := range s.Contexts {
		if !c.Processed {
			fmt.Printf("request %d: batch %d pending\n", c.RequestID, c.BatchID)
			continue
		}

		fmt.Printf("request %d: batch %d average=%d anyFlag=%t thresholdExceeded=%t\n",
			c.RequestID, c.BatchID, c.Outcome.Average, c.Outcome.AnyFlagSet, c.Outcome.ThresholdExceeded)
	}

	return nil
}

func export(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return fmt.Errorf("missing output file")
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	db, err := storage.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open data dir:\n%w", err)
	}

	data, err := snapshot.LoadRaw(db)
	if cerr := db.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(ctx.Args().Get(0), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot:\n%w", err)
	}

	fmt.Printf("wrote %d bytes to %s\n", len(data), ctx.Args().Get(0))

	return nil
}
