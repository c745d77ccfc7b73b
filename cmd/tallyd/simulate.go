package main

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"BlindTally/internal/config"
	"BlindTally/internal/events"
	"BlindTally/internal/fhe"
	"BlindTally/internal/ledger"
	"BlindTally/internal/logger"
	"BlindTally/internal/oracle"
	"BlindTally/internal/reveal"
	"BlindTally/internal/snapshot"
	"BlindTally/internal/storage"
	"BlindTally/internal/tally"
)

var Simulate = cli.Command{
	Action: simulate,
	Name:   "simulate",
	Usage:  "runs batches of encrypted submissions through a local oracle and checkpoints the result",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "batches", Value: 3, Usage: "number of batches to run"},
		&cli.IntFlag{Name: "providers", Value: 4, Usage: "number of data providers besides the owner"},
		&cli.Uint64Flag{Name: "max-value", Value: 200, Usage: "submitted values are drawn from [0, max-value)"},
	},
}

// simulation holds everything one simulate run touches.
type simulation struct {
	contract  *tally.Contract
	engine    *fhe.Engine
	gateway   *oracle.Gateway
	owner     common.Address
	providers []common.Address
	now       uint64 // now is the simulated unix time
	step      uint64 // step advances now past the cooldown
	maxValue  uint64
}

func simulate(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	db, err := storage.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open data dir:\n%w", err)
	}

	err = simulateOn(ctx, cfg, db)
	if cerr := db.Close(); cerr != nil {
		return errors.Join(err, fmt.Errorf("close data dir:\n%w", cerr))
	}

	return err
}

func simulateOn(ctx *cli.Context, cfg *config.Config, db *storage.Storage) error {
	if err := requireFresh(db); err != nil {
		return fmt.Errorf("%s:\n%w", cfg.DataDir, err)
	}

	start := time.Now()

	sim, err := newSimulation(ctx, cfg, db)
	if err != nil {
		return err
	}

	for i := 0; i < ctx.Int("batches"); i++ {
		outcome, err := sim.runBatch()
		if err != nil {
			return fmt.Errorf("batch %d:\n%w", i+1, err)
		}

		fmt.Printf("batch %d: average=%d anyFlag=%t thresholdExceeded=%t contributions=%d\n",
			sim.contract.CurrentBatch().ID, outcome.Average, outcome.AnyFlagSet, outcome.ThresholdExceeded, sim.contract.DataCount())
	}

	state, err := sim.contract.Export()
	if err != nil {
		return fmt.Errorf("export:\n%w", err)
	}

	if err := snapshot.Save(db, state); err != nil {
		return fmt.Errorf("save checkpoint:\n%w", err)
	}

	logger.Info("checkpoint saved", "dir", cfg.DataDir, "contributions", len(state.Contributions), "contexts", len(state.Contexts), logger.Timed(start))

	return nil
}

// errUsedDataDir is returned when a data dir holds anything from an earlier run.
var errUsedDataDir = errors.New("data dir already holds a run; use a fresh one")

// requireFresh refuses a data dir with a checkpoint, contributions or journal
// entries. Ciphertexts live in process memory, so an earlier run, finished or
// not, cannot be resumed.
func requireFresh(db *storage.Storage) error {
	if _, err := snapshot.LoadRaw(db); !errors.Is(err, snapshot.ErrNoCheckpoint) {
		if err != nil {
			return err
		}
		return fmt.Errorf("checkpoint present:\n%w", errUsedDataDir)
	}

	contributions, err := ledger.OpenDiskStore(db)
	if err != nil {
		return fmt.Errorf("open contributions:\n%w", err)
	}

	if n := contributions.Count(); n > 0 {
		return fmt.Errorf("%d contributions present:\n%w", n, errUsedDataDir)
	}

	journal, err := events.OpenJournal(db)
	if err != nil {
		return fmt.Errorf("open journal:\n%w", err)
	}

	if n := journal.Len(); n > 0 {
		return fmt.Errorf("%d journal entries present:\n%w", n, errUsedDataDir)
	}

	return nil
}

// newSimulation wires the contract to disk stores, the journal and a local oracle.
func newSimulation(ctx *cli.Context, cfg *config.Config, db *storage.Storage) (*simulation, error) {
	journal, err := events.OpenJournal(db)
	if err != nil {
		return nil, fmt.Errorf("open journal:\n%w", err)
	}

	contributions, err := ledger.OpenDiskStore(db)
	if err != nil {
		return nil, fmt.Errorf("open contributions:\n%w", err)
	}

	quorum := cfg.Oracle.Quorum
	if quorum == 0 {
		quorum = oracle.QuorumSize(cfg.Oracle.CommitteeSize)
	}

	committee, err := oracle.NewCommittee(cfg.Oracle.Seed, cfg.Oracle.CommitteeSize, quorum)
	if err != nil {
		return nil, fmt.Errorf("create committee:\n%w", err)
	}

	engine := fhe.NewEngine()
	gateway := oracle.NewGateway(engine, committee, cfg.Oracle.QueueSize)

	sim := &simulation{
		engine:   engine,
		gateway:  gateway,
		owner:    cfg.Owner,
		now:      1,
		step:     cfg.CooldownSeconds + 1,
		maxValue: ctx.Uint64("max-value"),
	}

	if sim.maxValue == 0 {
		return nil, fmt.Errorf("max-value must be positive")
	}

	sim.contract, err = tally.New(tally.Config{
		Owner:           cfg.Owner,
		Identity:        cfg.Identity,
		CooldownSeconds: cfg.CooldownSeconds,
		Threshold:       cfg.Threshold,
	}, tally.Deps{
		FHE:           engine,
		Oracle:        gateway,
		Verifier:      gateway.Verifier(),
		Contributions: contributions,
		Contexts:      reveal.NewDiskContextStore(db),
		Sink:          events.Multi{events.NewLogSink(), journal},
		Clock:         func() uint64 { return sim.now },
	})
	if err != nil {
		return nil, fmt.Errorf("create contract:\n%w", err)
	}

	gateway.Register(reveal.CallbackSelector, sim.contract.Callback)

	for i := 0; i < ctx.Int("providers"); i++ {
		addr := providerAddress(cfg.Identity, i)
		if err := sim.contract.AddProvider(cfg.Owner, addr); err != nil {
			return nil, fmt.Errorf("add provider:\n%w", err)
		}
		sim.providers = append(sim.providers, addr)
	}

	return sim, nil
}

// runBatch opens a batch, submits one value per provider, closes it and
// reveals the aggregate.
func (s *simulation) runBatch() (reveal.Outcome, error) {
	s.now += s.step

	if err := s.contract.OpenBatch(s.owner); err != nil {
		return reveal.Outcome{}, err
	}

	for _, p := range s.providers {
		value, flag, err := s.encryptSample()
		if err != nil {
			return reveal.Outcome{}, err
		}

		if _, err := s.contract.Submit(p, value, flag); err != nil {
			return reveal.Outcome{}, fmt.Errorf("submit from %s:\n%w", p.Hex(), err)
		}
	}

	if err := s.contract.CloseBatch(s.owner); err != nil {
		return reveal.Outcome{}, err
	}

	rc, err := s.contract.RequestReveal(s.owner)
	if err != nil {
		return reveal.Outcome{}, fmt.Errorf("request reveal:\n%w", err)
	}

	s.gateway.Drain()

	outcome, done, err := s.contract.Result(rc.RequestID)
	if err != nil {
		return reveal.Outcome{}, err
	}

	if !done {
		d, _ := s.gateway.Delivery(rc.RequestID)
		return reveal.Outcome{}, fmt.Errorf("request %d not finalized:\n%w", rc.RequestID, errors.Join(oracle.ErrNotDelivered, d.Err))
	}

	return outcome, nil
}

// encryptSample draws a random value below maxValue and a flag set one time in eight.
func (s *simulation) encryptSample() (fhe.Handle, fhe.Handle, error) {
	var buf [9]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fhe.Handle{}, fhe.Handle{}, fmt.Errorf("draw sample:\n%w", err)
	}

	value, err := s.engine.Encrypt(binary.BigEndian.Uint64(buf[:8]) % s.maxValue)
	if err != nil {
		return fhe.Handle{}, fhe.Handle{}, err
	}

	flag, err := s.engine.EncryptBool(buf[8]&7 == 0)
	if err != nil {
		return fhe.Handle{}, fhe.Handle{}, err
	}

	return value, flag, nil
}

// providerAddress derives a stable simulated provider address.
func providerAddress(identity common.Address, i int) common.Address {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(i))

	return common.BytesToAddress(crypto.Keccak256(identity[:], []byte("provider"), idx[:])[12:])
}
