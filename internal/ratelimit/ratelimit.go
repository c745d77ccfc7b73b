// Package ratelimit enforces per-actor cooldowns between actions.
package ratelimit

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ErrCooldownActive is returned when an actor acts again before its cooldown elapses.
var ErrCooldownActive = errors.New("cooldown active")

// CheckAndTouch fails with ErrCooldownActive if now < last[actor] + cooldown,
// otherwise records now as the actor's last action time.
// An actor with no entry has never acted and always passes.
func CheckAndTouch(actor common.Address, last map[common.Address]uint64, cooldown, now uint64) error {
	if err := Check(actor, last, cooldown, now); err != nil {
		return err
	}

	last[actor] = now

	return nil
}

// Check is CheckAndTouch without the update.
func Check(actor common.Address, last map[common.Address]uint64, cooldown, now uint64) error {
	prev, ok := last[actor]
	if !ok {
		return nil
	}

	// Compared as a difference so prev + cooldown cannot overflow.
	if now < prev || now-prev < cooldown {
		return fmt.Errorf("%s may act again at %d, now %d:\n%w", actor.Hex(), saturatingAdd(prev, cooldown), now, ErrCooldownActive)
	}

	return nil
}

// Entry is one actor's last action time.
type Entry struct {
	Actor common.Address
	Time  uint64
}

// Tracker keeps last action times for one purpose, e.g. submissions.
// It is not safe for concurrent use.
type Tracker struct {
	purpose string                    // purpose names the tracked action in errors
	last    map[common.Address]uint64 // last maps actors to their last action time
}

// NewTracker creates an empty tracker.
func NewTracker(purpose string) *Tracker {
	return &Tracker{
		purpose: purpose,
		last:    make(map[common.Address]uint64),
	}
}

// Check reports whether actor may act at now without recording anything.
func (t *Tracker) Check(actor common.Address, cooldown, now uint64) error {
	if err := Check(actor, t.last, cooldown, now); err != nil {
		return fmt.Errorf("%s:\n%w", t.purpose, err)
	}

	return nil
}

// Touch records now as actor's last action time.
func (t *Tracker) Touch(actor common.Address, now uint64) {
	t.last[actor] = now
}

// CheckAndTouch checks and records in one step.
func (t *Tracker) CheckAndTouch(actor common.Address, cooldown, now uint64) error {
	if err := CheckAndTouch(actor, t.last, cooldown, now); err != nil {
		return fmt.Errorf("%s:\n%w", t.purpose, err)
	}

	return nil
}

// Last returns actor's last action time and whether one exists.
func (t *Tracker) Last(actor common.Address) (uint64, bool) {
	v, ok := t.last[actor]
	return v, ok
}

// Entries returns every entry sorted by actor.
func (t *Tracker) Entries() []Entry {
	out := make([]Entry, 0, len(t.last))
	for actor, at := range t.last {
		out = append(out, Entry{Actor: actor, Time: at})
	}

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Actor[:], out[j].Actor[:]) < 0
	})

	return out
}

// Restore replaces all entries.
func (t *Tracker) Restore(entries []Entry) {
	t.last = make(map[common.Address]uint64, len(entries))
	for _, e := range entries {
		t.last[e.Actor] = e.Time
	}
}

// saturatingAdd returns a + b, clamped at the maximum uint64.
func saturatingAdd(a, b uint64) uint64 {
	if s := a + b; s >= a {
		return s
	}

	return ^uint64(0)
}
