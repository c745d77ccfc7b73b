package oracle

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"

	"BlindTally/internal/fhe"
	"BlindTally/internal/logger"
	"BlindTally/internal/reveal"
)

const (
	// DefaultQueueSize is the request queue capacity when none is given.
	DefaultQueueSize = 64

	// maxIDAttempts bounds the search for an unused request id.
	maxIDAttempts = 16
)

var (
	// ErrQueueFull is returned when the request queue has no room.
	ErrQueueFull = errors.New("oracle queue full")

	// ErrUnknownSelector is returned when no receiver is registered for a selector.
	ErrUnknownSelector = errors.New("no receiver for selector")

	// ErrNotDelivered is returned by Redeliver for requests not yet answered.
	ErrNotDelivered = errors.New("request not delivered")
)

// Receiver accepts an oracle answer.
type Receiver func(requestID uint64, cleartext, proof []byte) error

// Delivery is an answer the gateway produced.
type Delivery struct {
	RequestID uint64
	Selector  reveal.Selector
	Cleartext []byte
	Proof     []byte
	Err       error // Err is the receiver's result on the last attempt
}

// job is one queued request.
type job struct {
	id       uint64
	handles  []fhe.Handle
	selector reveal.Selector
}

// Gateway queues decryption requests and answers them on its own goroutine.
// It implements reveal.Oracle.
type Gateway struct {
	decryptor fhe.Decryptor // decryptor opens the requested handles
	committee *Committee    // committee attests to every cleartext
	queue     chan job      // queue holds requests not yet processed

	mu         sync.Mutex
	receivers  map[reveal.Selector]Receiver // receivers are callback entry points
	issued     map[uint64]bool              // issued holds every request id handed out
	deliveries map[uint64]*Delivery         // deliveries holds processed answers
	notify     func(Delivery)               // notify observes every delivery attempt

	log *slog.Logger
}

// NewGateway creates a gateway. A non-positive queueSize selects DefaultQueueSize.
func NewGateway(decryptor fhe.Decryptor, committee *Committee, queueSize int) *Gateway {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Gateway{
		decryptor:  decryptor,
		committee:  committee,
		queue:      make(chan job, queueSize),
		receivers:  make(map[reveal.Selector]Receiver),
		issued:     make(map[uint64]bool),
		deliveries: make(map[uint64]*Delivery),
		log:        logger.Component("oracle"),
	}
}

// Register routes answers for selector to r.
func (g *Gateway) Register(selector reveal.Selector, r Receiver) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.receivers[selector] = r
}

// OnDelivery installs fn to observe each delivery attempt after the receiver returns.
func (g *Gateway) OnDelivery(fn func(Delivery)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.notify = fn
}

// RequestDecryption queues handles and returns an unpredictable request id.
// It never blocks: a full queue fails with ErrQueueFull.
func (g *Gateway) RequestDecryption(handles []fhe.Handle, selector reveal.Selector) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.receivers[selector]; !ok {
		return 0, fmt.Errorf("selector %x:\n%w", selector, ErrUnknownSelector)
	}

	id, err := g.freshID()
	if err != nil {
		return 0, err
	}

	j := job{id: id, handles: append([]fhe.Handle(nil), handles...), selector: selector}

	select {
	case g.queue <- j:
	default:
		return 0, ErrQueueFull
	}

	g.issued[id] = true
	g.log.Debug("decryption queued", "request", id, "handles", len(handles))

	return id, nil
}

// freshID draws a random non-zero id not issued before. Caller holds mu.
func (g *Gateway) freshID() (uint64, error) {
	var buf [8]byte

	for i := 0; i < maxIDAttempts; i++ {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("draw request id:\n%w", err)
		}

		id := binary.BigEndian.Uint64(buf[:])
		if id != 0 && !g.issued[id] {
			return id, nil
		}
	}

	return 0, fmt.Errorf("no unused request id after %d attempts", maxIDAttempts)
}

// Run processes queued requests until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-g.queue:
			g.process(j)
		}
	}
}

// Drain processes every request queued so far and returns how many it handled.
func (g *Gateway) Drain() int {
	n := 0

	for {
		select {
		case j := <-g.queue:
			g.process(j)
			n++
		default:
			return n
		}
	}
}

// Pending returns the number of queued requests.
func (g *Gateway) Pending() int {
	return len(g.queue)
}

// process decrypts, attests and delivers one request. Receiver errors are
// recorded on the delivery and never retried here.
func (g *Gateway) process(j job) {
	cleartext, err := g.decrypt(j.handles)
	if err != nil {
		g.log.Error("decryption failed", "request", j.id, "error", err)
		return
	}

	proof, err := g.committee.AttestQuorum(j.id, cleartext)
	if err != nil {
		g.log.Error("attestation failed", "request", j.id, "error", err)
		return
	}

	d := &Delivery{RequestID: j.id, Selector: j.selector, Cleartext: cleartext, Proof: proof}

	g.mu.Lock()
	g.deliveries[j.id] = d
	g.mu.Unlock()

	g.deliver(d)
}

// decrypt opens handles and packs their plaintexts as 32-byte words.
func (g *Gateway) decrypt(handles []fhe.Handle) ([]byte, error) {
	words := make([]*uint256.Int, len(handles))

	for i, h := range handles {
		_, v, err := g.decryptor.Decrypt(h)
		if err != nil {
			return nil, fmt.Errorf("handle %s:\n%w", h, err)
		}
		words[i] = v
	}

	return fhe.PackWords(words...), nil
}

// deliver invokes the receiver for d outside the lock.
func (g *Gateway) deliver(d *Delivery) {
	g.mu.Lock()
	r := g.receivers[d.Selector]
	notify := g.notify
	g.mu.Unlock()

	err := r(d.RequestID, d.Cleartext, d.Proof)

	g.mu.Lock()
	d.Err = err
	snapshot := *d
	g.mu.Unlock()

	if err != nil {
		g.log.Warn("callback rejected", "request", d.RequestID, "error", err)
	} else {
		g.log.Debug("callback accepted", "request", d.RequestID)
	}

	if notify != nil {
		notify(snapshot)
	}
}

// Redeliver sends the stored answer for requestID again, synchronously.
// It returns the receiver's error.
func (g *Gateway) Redeliver(requestID uint64) error {
	g.mu.Lock()
	d, ok := g.deliveries[requestID]
	g.mu.Unlock()

	if !ok {
		return fmt.Errorf("request %d:\n%w", requestID, ErrNotDelivered)
	}

	g.deliver(d)

	g.mu.Lock()
	defer g.mu.Unlock()

	return d.Err
}

// Delivery returns a copy of the stored answer for requestID.
func (g *Gateway) Delivery(requestID uint64) (Delivery, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d, ok := g.deliveries[requestID]
	if !ok {
		return Delivery{}, false
	}

	return *d, true
}

// Verifier returns a verifier for the gateway's committee.
func (g *Gateway) Verifier() *Verifier {
	return g.committee.Verifier()
}
