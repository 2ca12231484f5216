// Package ingress implements C5, the priority-operation watcher: it follows
// the settlement contract's Deposit and FullExit event log, waits out a
// confirmation depth before admitting an event, and feeds the resulting
// priority ops to the state keeper in strict serial-id order, per spec
// §4.5. It is grounded on the original implementation's EthWatch
// (eth_watch.rs): same log-polling shape, same decode-event-into-typed-op
// responsibility, translated from a single-web3-endpoint poller into a Go
// ethclient.Client watcher.
package ingress

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"rollupnode/core"
)

// ConfirmationDepth is the number of settlement-chain blocks a priority-op
// event must sit under the chain head before it is trusted, guarding
// against a short reorg silently reverting it after admission.
const ConfirmationDepth = 24

// Sink receives priority ops in ascending serial-id order. The state
// keeper's SubmitPriorityOp method satisfies this.
type Sink interface {
	SubmitPriorityOp(ctx context.Context, op core.PriorityOp) error
}

// Watcher polls one settlement-chain gateway for Deposit/FullExit log
// entries and feeds them to a Sink once confirmed.
type Watcher struct {
	client          *ethclient.Client
	contractAddr    common.Address
	contractABI     abi.ABI
	sink            Sink
	log             *logrus.Entry
	mu              sync.Mutex
	lastProcessed   uint64
	nextExpectedSer core.SerialId
	pending         map[core.SerialId]core.PriorityOp // held until it's the next expected serial id
}

// NewWatcher constructs a Watcher starting from fromBlock (typically the
// settlement-chain block the last restored/committed block referenced).
func NewWatcher(client *ethclient.Client, contractAddr common.Address, contractABI abi.ABI, sink Sink, fromBlock uint64, firstSerialId core.SerialId) *Watcher {
	return &Watcher{
		client:          client,
		contractAddr:    contractAddr,
		contractABI:     contractABI,
		sink:            sink,
		log:             logrus.WithField("component", "ingress_watcher"),
		lastProcessed:   fromBlock,
		nextExpectedSer: firstSerialId,
		pending:         make(map[core.SerialId]core.PriorityOp),
	}
}

// PollOnce queries [lastProcessed+1, head-ConfirmationDepth] for priority-op
// logs, decodes them, and feeds any that are now in order to the sink.
func (w *Watcher) PollOnce(ctx context.Context) error {
	w.mu.Lock()
	from := w.lastProcessed + 1
	w.mu.Unlock()

	head, err := w.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("ingress: head block: %w", err)
	}
	if head < ConfirmationDepth {
		return nil
	}
	to := head - ConfirmationDepth
	if to < from {
		return nil
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{w.contractAddr},
	}
	logs, err := w.client.FilterLogs(ctx, query)
	if err != nil {
		return fmt.Errorf("ingress: filter logs: %w", err)
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	for _, lg := range logs {
		op, serialId, err := DecodePriorityOpLog(w.contractABI, lg)
		if err != nil {
			w.log.WithError(err).WithField("tx_hash", lg.TxHash).Warn("could not decode priority op log, skipping")
			continue
		}
		w.mu.Lock()
		w.pending[serialId] = core.PriorityOp{SerialId: serialId, Operation: op}
		w.mu.Unlock()
	}

	if err := w.drainInOrder(ctx); err != nil {
		return err
	}

	w.mu.Lock()
	w.lastProcessed = to
	w.mu.Unlock()
	return nil
}

// drainInOrder feeds every contiguous, already-decoded priority op starting
// at nextExpectedSer to the sink, per spec §4.5's strict ordering
// requirement — an event whose predecessor hasn't arrived yet (e.g. due to
// log delivery reordering across RPC calls) is held rather than admitted
// out of order.
func (w *Watcher) drainInOrder(ctx context.Context) error {
	for {
		w.mu.Lock()
		op, ok := w.pending[w.nextExpectedSer]
		w.mu.Unlock()
		if !ok {
			return nil
		}
		if err := w.sink.SubmitPriorityOp(ctx, op); err != nil {
			return fmt.Errorf("ingress: submit priority op %d: %w", op.SerialId, err)
		}
		w.mu.Lock()
		delete(w.pending, w.nextExpectedSer)
		w.nextExpectedSer++
		w.mu.Unlock()
	}
}

// Run polls on every tick from ticks until ctx is cancelled, per spec §5's
// supervised-goroutine model (the caller wraps this in an errgroup).
func (w *Watcher) Run(ctx context.Context, ticks <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			if err := w.PollOnce(ctx); err != nil {
				w.log.WithError(err).Error("poll failed, will retry next tick")
			}
		}
	}
}
