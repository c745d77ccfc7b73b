package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"BlindTally/internal/fhe"
	"BlindTally/internal/reveal"
)

var testSeed = []byte("0123456789abcdef0123456789abcdef")

func TestQuorumSize(t *testing.T) {
	require.Equal(t, 1, QuorumSize(1))
	require.Equal(t, 3, QuorumSize(4))
	require.Equal(t, 5, QuorumSize(7))
}

func TestCommitteeProofs(t *testing.T) {
	c, err := NewCommittee(testSeed, 4, 0)
	require.NoError(t, err)
	require.Equal(t, 3, c.Quorum())

	v := c.Verifier()
	plain := []byte("cleartext")

	proof, err := c.AttestQuorum(7, plain)
	require.NoError(t, err)
	require.NoError(t, v.VerifyProof(7, plain, proof))

	require.ErrorIs(t, v.VerifyProof(8, plain, proof), ErrBadSignature)
	require.ErrorIs(t, v.VerifyProof(7, []byte("other"), proof), ErrBadSignature)

	short, err := c.Attest(7, plain, []int{0, 1})
	require.NoError(t, err)
	require.ErrorIs(t, v.VerifyProof(7, plain, short), ErrQuorumNotReached)

	all, err := c.Attest(7, plain, []int{0, 1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, v.VerifyProof(7, plain, all))

	require.ErrorIs(t, v.VerifyProof(7, plain, nil), ErrMalformedProof)
	require.ErrorIs(t, v.VerifyProof(7, plain, proof[:len(proof)-1]), ErrMalformedProof)
}

func TestForeignCommitteeIsRejected(t *testing.T) {
	ours, err := NewCommittee(testSeed, 3, 2)
	require.NoError(t, err)

	theirs, err := NewCommittee([]byte("another seed entirely, 32 bytes!"), 3, 2)
	require.NoError(t, err)

	proof, err := theirs.AttestQuorum(1, []byte("x"))
	require.NoError(t, err)

	require.ErrorIs(t, ours.Verifier().VerifyProof(1, []byte("x"), proof), ErrBadSignature)
}

func TestNewCommitteeValidation(t *testing.T) {
	_, err := NewCommittee(testSeed, 0, 0)
	require.Error(t, err)

	_, err = NewCommittee(testSeed, 3, 4)
	require.Error(t, err)
}

// collector records receiver calls.
type collector struct {
	mu    sync.Mutex
	calls []Delivery
	err   error
}

func (c *collector) receive(id uint64, cleartext, proof []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Delivery{RequestID: id, Cleartext: cleartext, Proof: proof})
	return c.err
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.calls)
}

func newTestGateway(t *testing.T, queue int) (*Gateway, *fhe.Engine, *collector) {
	t.Helper()

	committee, err := NewCommittee(testSeed, 3, 0)
	require.NoError(t, err)

	engine := fhe.NewEngine()
	g := NewGateway(engine, committee, queue)

	col := &collector{}
	g.Register(reveal.CallbackSelector, col.receive)

	return g, engine, col
}

func TestGatewayDecryptsAndAttests(t *testing.T) {
	g, engine, col := newTestGateway(t, 4)

	avg, _ := engine.Encrypt(20)
	flag, _ := engine.EncryptBool(true)

	id, err := g.RequestDecryption([]fhe.Handle{avg, flag}, reveal.CallbackSelector)
	require.NoError(t, err)
	require.NotZero(t, id)
	require.Equal(t, 1, g.Pending())
	require.Zero(t, col.count())

	require.Equal(t, 1, g.Drain())
	require.Equal(t, 1, col.count())

	d, ok := g.Delivery(id)
	require.True(t, ok)
	require.Equal(t, fhe.PackWords(uint256.NewInt(20), uint256.NewInt(1)), d.Cleartext)
	require.NoError(t, g.Verifier().VerifyProof(id, d.Cleartext, d.Proof))
}

func TestGatewayRunDelivers(t *testing.T) {
	g, engine, col := newTestGateway(t, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	h, _ := engine.Encrypt(5)
	_, err := g.RequestDecryption([]fhe.Handle{h}, reveal.CallbackSelector)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return col.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestGatewayQueueAndSelector(t *testing.T) {
	g, engine, _ := newTestGateway(t, 1)
	h, _ := engine.Encrypt(5)

	_, err := g.RequestDecryption([]fhe.Handle{h}, reveal.NewSelector("other()"))
	require.ErrorIs(t, err, ErrUnknownSelector)

	_, err = g.RequestDecryption([]fhe.Handle{h}, reveal.CallbackSelector)
	require.NoError(t, err)

	_, err = g.RequestDecryption([]fhe.Handle{h}, reveal.CallbackSelector)
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestGatewayRedeliver(t *testing.T) {
	g, engine, col := newTestGateway(t, 4)
	col.err = errors.New("rejected")

	var observed []Delivery
	g.OnDelivery(func(d Delivery) { observed = append(observed, d) })

	h, _ := engine.Encrypt(5)
	id, err := g.RequestDecryption([]fhe.Handle{h}, reveal.CallbackSelector)
	require.NoError(t, err)

	require.ErrorIs(t, g.Redeliver(id), ErrNotDelivered)

	g.Drain()
	require.Len(t, observed, 1)
	require.EqualError(t, observed[0].Err, "rejected")

	col.err = nil
	require.NoError(t, g.Redeliver(id))
	require.Equal(t, 2, col.count())
	require.NoError(t, observed[1].Err)
}

func TestGatewaySkipsUnknownHandles(t *testing.T) {
	g, _, col := newTestGateway(t, 4)

	id, err := g.RequestDecryption([]fhe.Handle{{0xAB}}, reveal.CallbackSelector)
	require.NoError(t, err)

	g.Drain()
	require.Zero(t, col.count())

	_, ok := g.Delivery(id)
	require.False(t, ok)
}
