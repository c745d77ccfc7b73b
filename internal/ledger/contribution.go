package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	flatbuffers "github.com/google/flatbuffers/go"

	"BlindTally/internal/fhe"
	"BlindTally/internal/types"
)

// Contribution is one admitted, immutable submission.
type Contribution struct {
	ID       uint64         // ID is the 1-based global sequence number
	BatchID  uint64         // BatchID is the batch current at submission
	Provider common.Address // Provider is the submitting actor
	Value    fhe.Handle     // Value is the encrypted TypeUint64 reading
	Flag     fhe.Handle     // Flag is the encrypted TypeBool marker
}

// Batch is the current admission window.
type Batch struct {
	ID   uint64 // ID is the epoch number, bumped by every OpenBatch
	Open bool   // Open is true while submissions are accepted
}

// EncodeContribution serializes c as a types.Contribution table.
func EncodeContribution(c Contribution) []byte {
	builder := flatbuffers.NewBuilder(128)
	offset := BuildContribution(builder, c)
	builder.Finish(offset)

	return builder.FinishedBytes()
}

// BuildContribution writes c into builder and returns the table offset,
// for embedding in larger documents.
func BuildContribution(builder *flatbuffers.Builder, c Contribution) flatbuffers.UOffsetT {
	providerOffset := builder.CreateByteVector(c.Provider[:])
	valueOffset := builder.CreateByteVector(c.Value[:])
	flagOffset := builder.CreateByteVector(c.Flag[:])

	types.ContributionStart(builder)
	types.ContributionAddId(builder, c.ID)
	types.ContributionAddBatchId(builder, c.BatchID)
	types.ContributionAddProvider(builder, providerOffset)
	types.ContributionAddValue(builder, valueOffset)
	types.ContributionAddFlag(builder, flagOffset)

	return types.ContributionEnd(builder)
}

// DecodeContribution parses data produced by EncodeContribution.
func DecodeContribution(data []byte) (c Contribution, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = Contribution{}, fmt.Errorf("%v:\n%w", r, ErrMalformedRecord)
		}
	}()

	if len(data) < flatbuffers.SizeUOffsetT {
		return Contribution{}, fmt.Errorf("contribution record too short: %d bytes", len(data))
	}

	return ReadContribution(types.GetRootAsContribution(data, 0))
}

// ReadContribution converts a decoded table, checking field sizes.
func ReadContribution(t *types.Contribution) (Contribution, error) {
	c := Contribution{ID: t.Id(), BatchID: t.BatchId()}

	provider := t.ProviderBytes()
	if len(provider) != common.AddressLength {
		return Contribution{}, fmt.Errorf("contribution %d: provider is %d bytes", c.ID, len(provider))
	}
	c.Provider = common.BytesToAddress(provider)

	var ok bool
	if c.Value, ok = fhe.HandleFromBytes(t.ValueBytes()); !ok {
		return Contribution{}, fmt.Errorf("contribution %d: malformed value handle", c.ID)
	}

	if c.Flag, ok = fhe.HandleFromBytes(t.FlagBytes()); !ok {
		return Contribution{}, fmt.Errorf("contribution %d: malformed flag handle", c.ID)
	}

	return c, nil
}
