// Package snapshot exports and imports the complete coordinator state as a
// checksummed flatbuffers document, compressed with zstd for storage.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"BlindTally/internal/ledger"
	"BlindTally/internal/ratelimit"
	"BlindTally/internal/reveal"
	"BlindTally/internal/storage"
	"BlindTally/internal/types"
)

// Version is the current snapshot format version.
const Version = 1

var (
	// ErrChecksum is returned when a snapshot's checksum does not match its content.
	ErrChecksum = errors.New("snapshot checksum mismatch")

	// ErrVersion is returned for snapshots written by an unknown format version.
	ErrVersion = errors.New("unsupported snapshot version")

	// ErrNoCheckpoint is returned by Load when nothing was saved.
	ErrNoCheckpoint = errors.New("no checkpoint")

	// ErrMalformed is returned when a document's offsets point outside it.
	ErrMalformed = errors.New("malformed snapshot")
)

// checkpointKey holds the latest compressed snapshot.
var checkpointKey = []byte("k:latest")

// State is everything needed to rebuild a coordinator.
type State struct {
	Owner         common.Address
	Identity      common.Address
	Paused        bool
	Cooldown      uint64
	Threshold     uint64
	Batch         ledger.Batch
	Providers     []common.Address      // Providers is sorted ascending
	Contributions []ledger.Contribution // Contributions is ordered by id
	Contexts      []reveal.Context      // Contexts is ordered by request id
	Submissions   []ratelimit.Entry     // Submissions is sorted by actor
	Decryptions   []ratelimit.Entry     // Decryptions is sorted by actor
}

// Encode builds the flatbuffers document for s.
func Encode(s State) []byte {
	checksum := Checksum(s)

	builder := flatbuffers.NewBuilder(1024 + len(s.Contributions)*160)

	contributionOffsets := make([]flatbuffers.UOffsetT, len(s.Contributions))
	for i, c := range s.Contributions {
		contributionOffsets[i] = ledger.BuildContribution(builder, c)
	}
	contributionsVector := buildVector(builder, types.SnapshotStartContributionsVector, contributionOffsets)

	contextOffsets := make([]flatbuffers.UOffsetT, len(s.Contexts))
	for i, ctx := range s.Contexts {
		contextOffsets[i] = reveal.BuildContext(builder, ctx)
	}
	contextsVector := buildVector(builder, types.SnapshotStartContextsVector, contextOffsets)

	submissionsVector := buildVector(builder, types.SnapshotStartSubmissionsVector, buildEntries(builder, s.Submissions))
	decryptionsVector := buildVector(builder, types.SnapshotStartDecryptionsVector, buildEntries(builder, s.Decryptions))

	ownerOffset := builder.CreateByteVector(s.Owner[:])
	identityOffset := builder.CreateByteVector(s.Identity[:])
	providersOffset := builder.CreateByteVector(joinAddresses(s.Providers))
	checksumOffset := builder.CreateByteVector(checksum[:])

	types.SnapshotStart(builder)
	types.SnapshotAddVersion(builder, Version)
	types.SnapshotAddOwner(builder, ownerOffset)
	types.SnapshotAddIdentity(builder, identityOffset)
	types.SnapshotAddPaused(builder, s.Paused)
	types.SnapshotAddCooldown(builder, s.Cooldown)
	types.SnapshotAddThreshold(builder, s.Threshold)
	types.SnapshotAddBatchId(builder, s.Batch.ID)
	types.SnapshotAddBatchOpen(builder, s.Batch.Open)
	types.SnapshotAddProviders(builder, providersOffset)
	types.SnapshotAddContributions(builder, contributionsVector)
	types.SnapshotAddContexts(builder, contextsVector)
	types.SnapshotAddSubmissions(builder, submissionsVector)
	types.SnapshotAddDecryptions(builder, decryptionsVector)
	types.SnapshotAddChecksum(builder, checksumOffset)
	builder.Finish(types.SnapshotEnd(builder))

	return builder.FinishedBytes()
}

// buildVector writes a vector of table offsets, preserving order.
func buildVector(builder *flatbuffers.Builder, start func(*flatbuffers.Builder, int) flatbuffers.UOffsetT, offsets []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	start(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}

	return builder.EndVector(len(offsets))
}

// buildEntries writes one ActorTime table per entry.
func buildEntries(builder *flatbuffers.Builder, entries []ratelimit.Entry) []flatbuffers.UOffsetT {
	offsets := make([]flatbuffers.UOffsetT, len(entries))

	for i, e := range entries {
		actorOffset := builder.CreateByteVector(e.Actor[:])

		types.ActorTimeStart(builder)
		types.ActorTimeAddActor(builder, actorOffset)
		types.ActorTimeAddTime(builder, e.Time)
		offsets[i] = types.ActorTimeEnd(builder)
	}

	return offsets
}

// Decode parses and verifies a document produced by Encode.
func Decode(data []byte) (s State, err error) {
	// FlatBuffers panics on out-of-range offsets
	defer func() {
		if r := recover(); r != nil {
			s, err = State{}, fmt.Errorf("%v:\n%w", r, ErrMalformed)
		}
	}()

	return decode(data)
}

// decode reads the document, trusting its offsets.
func decode(data []byte) (State, error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return State{}, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}

	snap := types.GetRootAsSnapshot(data, 0)

	if v := snap.Version(); v != Version {
		return State{}, fmt.Errorf("version %d:\n%w", v, ErrVersion)
	}

	s := State{
		Paused:    snap.Paused(),
		Cooldown:  snap.Cooldown(),
		Threshold: snap.Threshold(),
		Batch:     ledger.Batch{ID: snap.BatchId(), Open: snap.BatchOpen()},
	}

	var err error

	if s.Owner, err = readAddress(snap.OwnerBytes()); err != nil {
		return State{}, fmt.Errorf("owner:\n%w", err)
	}

	if s.Identity, err = readAddress(snap.IdentityBytes()); err != nil {
		return State{}, fmt.Errorf("identity:\n%w", err)
	}

	if s.Providers, err = splitAddresses(snap.ProvidersBytes()); err != nil {
		return State{}, fmt.Errorf("providers:\n%w", err)
	}

	var c types.Contribution
	for i := 0; i < snap.ContributionsLength(); i++ {
		snap.Contributions(&c, i)

		contribution, err := ledger.ReadContribution(&c)
		if err != nil {
			return State{}, err
		}
		s.Contributions = append(s.Contributions, contribution)
	}

	var rc types.RevealContext
	for i := 0; i < snap.ContextsLength(); i++ {
		snap.Contexts(&rc, i)

		ctx, err := reveal.ReadContext(&rc)
		if err != nil {
			return State{}, err
		}
		s.Contexts = append(s.Contexts, ctx)
	}

	if s.Submissions, err = readEntries(snap.SubmissionsLength(), snap.Submissions); err != nil {
		return State{}, fmt.Errorf("submissions:\n%w", err)
	}

	if s.Decryptions, err = readEntries(snap.DecryptionsLength(), snap.Decryptions); err != nil {
		return State{}, fmt.Errorf("decryptions:\n%w", err)
	}

	want := Checksum(s)
	if got := snap.ChecksumBytes(); string(got) != string(want[:]) {
		return State{}, ErrChecksum
	}

	return s, nil
}

// readEntries decodes an ActorTime vector.
func readEntries(n int, at func(*types.ActorTime, int) bool) ([]ratelimit.Entry, error) {
	var out []ratelimit.Entry
	var t types.ActorTime

	for i := 0; i < n; i++ {
		at(&t, i)

		actor, err := readAddress(t.ActorBytes())
		if err != nil {
			return nil, err
		}
		out = append(out, ratelimit.Entry{Actor: actor, Time: t.Time()})
	}

	return out, nil
}

// Checksum hashes the canonical form of s with BLAKE3.
func Checksum(s State) [32]byte {
	hasher := blake3.New()

	var buf [8]byte

	writeUint := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		hasher.Write(buf[:])
	}

	writeBlob := func(b []byte) {
		writeUint(uint64(len(b)))
		hasher.Write(b)
	}

	writeBool := func(b bool) {
		if b {
			hasher.Write([]byte{1})
		} else {
			hasher.Write([]byte{0})
		}
	}

	writeUint(Version)
	hasher.Write(s.Owner[:])
	hasher.Write(s.Identity[:])
	writeBool(s.Paused)
	writeUint(s.Cooldown)
	writeUint(s.Threshold)
	writeUint(s.Batch.ID)
	writeBool(s.Batch.Open)
	writeBlob(joinAddresses(s.Providers))

	writeUint(uint64(len(s.Contributions)))
	for _, c := range s.Contributions {
		writeBlob(ledger.EncodeContribution(c))
	}

	writeUint(uint64(len(s.Contexts)))
	for _, ctx := range s.Contexts {
		writeBlob(reveal.EncodeContext(ctx))
	}

	for _, entries := range [][]ratelimit.Entry{s.Submissions, s.Decryptions} {
		writeUint(uint64(len(entries)))
		for _, e := range entries {
			hasher.Write(e.Actor[:])
			writeUint(e.Time)
		}
	}

	var sum [32]byte
	hasher.Sum(sum[:0])

	return sum
}

// Compress compresses an encoded snapshot with zstd.
func Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}

// Save encodes, compresses and stores s as the latest checkpoint.
func Save(db *storage.Storage, s State) error {
	data, err := Compress(Encode(s))
	if err != nil {
		return err
	}

	if err := db.Set(checkpointKey, data); err != nil {
		return fmt.Errorf("write checkpoint:\n%w", err)
	}

	return nil
}

// LoadRaw returns the latest compressed checkpoint as stored.
func LoadRaw(db *storage.Storage) ([]byte, error) {
	data, err := db.Get(checkpointKey)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint:\n%w", err)
	}

	if data == nil {
		return nil, ErrNoCheckpoint
	}

	return data, nil
}

// Load returns the latest checkpoint.
func Load(db *storage.Storage) (State, error) {
	compressed, err := LoadRaw(db)
	if err != nil {
		return State{}, err
	}

	return Unpack(compressed)
}

// Unpack decompresses and decodes a compressed snapshot.
func Unpack(compressed []byte) (State, error) {
	data, err := Decompress(compressed)
	if err != nil {
		return State{}, fmt.Errorf("decompress:\n%w", err)
	}

	return Decode(data)
}

// readAddress converts a 20-byte field.
func readAddress(b []byte) (common.Address, error) {
	if len(b) != common.AddressLength {
		return common.Address{}, fmt.Errorf("address is %d bytes", len(b))
	}

	return common.BytesToAddress(b), nil
}

// joinAddresses concatenates addresses.
func joinAddresses(addrs []common.Address) []byte {
	out := make([]byte, 0, len(addrs)*common.AddressLength)
	for _, a := range addrs {
		out = append(out, a[:]...)
	}

	return out
}

// splitAddresses reverses joinAddresses.
func splitAddresses(b []byte) ([]common.Address, error) {
	if len(b)%common.AddressLength != 0 {
		return nil, fmt.Errorf("address list is %d bytes", len(b))
	}

	var out []common.Address
	for i := 0; i < len(b); i += common.AddressLength {
		out = append(out, common.BytesToAddress(b[i:i+common.AddressLength]))
	}

	return out, nil
}
