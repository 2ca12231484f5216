package commitqueue

// dispatcher.go drives the Queue against the settlement chain: a single
// goroutine pops the next ready transaction, prices it through a
// GasAdjuster, signs and broadcasts it, and tracks confirmations — the
// same single-writer discipline used by statekeeper's Keeper, applied
// here to the one account (the operator key) allowed to submit commit/
// publish-proof/execute transactions.

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// OperatorSigner wraps the operator's settlement-chain private key, the
// only account permitted to submit commit/publish-proof/execute
// transactions.
type OperatorSigner struct {
	key     *ecdsa.PrivateKey
	Address common.Address
}

// NewOperatorSignerFromHex loads the operator key from a hex-encoded
// secp256k1 private key, matching the format the teacher's config layer
// already uses for settlement-chain credentials.
func NewOperatorSignerFromHex(hexKey string) (*OperatorSigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("commitqueue: parse operator key: %w", err)
	}
	return &OperatorSigner{key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// inFlightTx tracks a submitted transaction awaiting confirmation. A
// transaction that stays unconfirmed past stuckAfter blocks is logged as
// stuck; it is not repriced or resubmitted.
type inFlightTx struct {
	gasPrice  *big.Int
	blockSeen uint64 // settlement-chain block the tx was first submitted at
}

// Dispatcher submits Queue's transactions against a settlement contract
// using a single operator key, never exceeding Queue's configured
// in-flight cap.
type Dispatcher struct {
	client       *ethclient.Client
	contractAddr common.Address
	chainID      *big.Int
	signer       *OperatorSigner
	queue        *Queue
	adjuster     *GasAdjuster
	gasLimit     uint64
	stuckAfter   uint64 // settlement-chain blocks before a pending tx is considered stuck

	log     *logrus.Entry
	pending map[common.Hash]*inFlightTx
}

// NewDispatcher builds a Dispatcher signing with signer for the given
// settlement contract.
func NewDispatcher(client *ethclient.Client, contractAddr common.Address, chainID *big.Int, signer *OperatorSigner, queue *Queue, adjuster *GasAdjuster, gasLimit, stuckAfterBlocks uint64) *Dispatcher {
	return &Dispatcher{
		client:       client,
		contractAddr: contractAddr,
		chainID:      chainID,
		signer:       signer,
		queue:        queue,
		adjuster:     adjuster,
		gasLimit:     gasLimit,
		stuckAfter:   stuckAfterBlocks,
		log:          logrus.WithField("component", "commitqueue_dispatcher"),
		pending:      make(map[common.Hash]*inFlightTx),
	}
}

// Run pulls ready transactions from the queue and submits them until ctx
// is cancelled, polling both for new work and for receipts of pending
// transactions.
func (d *Dispatcher) Run(ctx context.Context, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.dispatchNext(ctx); err != nil {
				d.log.WithError(err).Error("dispatch tick failed")
			}
			if err := d.confirmMined(ctx); err != nil {
				d.log.WithError(err).Error("confirmation tick failed")
			}
		}
	}
}

// dispatchNext signs and submits the next ready transaction, if any.
func (d *Dispatcher) dispatchNext(ctx context.Context) error {
	rawTx, ok := d.queue.PopFront()
	if !ok {
		return nil
	}
	nonce, err := d.client.PendingNonceAt(ctx, d.signer.Address)
	if err != nil {
		return fmt.Errorf("commitqueue: pending nonce: %w", err)
	}
	price, err := d.adjuster.GasPrice(ctx, ethGasOracle{d.client}, nil)
	if err != nil {
		return fmt.Errorf("commitqueue: gas price: %w", err)
	}
	txData := &types.LegacyTx{
		Nonce:    nonce,
		To:       &d.contractAddr,
		Value:    big.NewInt(0),
		Gas:      d.gasLimit,
		GasPrice: price,
		Data:     rawTx.Data,
	}
	signedTx, err := types.SignNewTx(d.signer.key, types.NewEIP155Signer(d.chainID), txData)
	if err != nil {
		return fmt.Errorf("commitqueue: sign tx: %w", err)
	}
	if err := d.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("commitqueue: send tx: %w", err)
	}

	head, err := d.client.BlockNumber(ctx)
	if err != nil {
		head = 0
	}
	d.pending[signedTx.Hash()] = &inFlightTx{gasPrice: price, blockSeen: head}
	d.log.WithField("tx_hash", signedTx.Hash()).WithField("block", rawTx.BlockNumber).Info("submitted settlement transaction")
	return nil
}

// ethGasOracle adapts *ethclient.Client to GasPriceOracle.
type ethGasOracle struct{ client *ethclient.Client }

func (o ethGasOracle) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return o.client.SuggestGasPrice(ctx)
}

// confirmMined checks every pending transaction's receipt and reports
// confirmation to the queue once mined. A transaction that has sat
// unconfirmed for stuckAfter blocks or more is logged as stuck on each
// tick; it stays pending and is not repriced or resubmitted.
func (d *Dispatcher) confirmMined(ctx context.Context) error {
	head, err := d.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("commitqueue: head block: %w", err)
	}
	for hash, tx := range d.pending {
		receipt, err := d.client.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				delete(d.pending, hash)
				if rerr := d.queue.ReportConfirmed(); rerr != nil {
					d.log.WithError(rerr).Warn("report confirmed")
				}
			}
			continue
		}
		if err != nil && err != ethereum.NotFound {
			d.log.WithError(err).WithField("tx_hash", hash).Warn("receipt lookup failed")
			continue
		}
		if head-tx.blockSeen < d.stuckAfter {
			continue
		}
		d.log.WithField("tx_hash", hash).Warn("transaction stuck past threshold, not resubmitted")
	}
	return nil
}
