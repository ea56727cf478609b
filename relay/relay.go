// Package relay implements off-chain part of the payout protocol of the
// payment contract. Relay is run by the processor account: it pays escrowed
// withdrawals out to their recipients and reports the outcome back to the
// contract.
//
// Every withdrawal goes through the following journaled states:
//
//	none -> paying(tx, vub) -> resolving(tx, vub, success) -> done
//
// The signed payout transaction is stored before it is sent, so a restarted
// relay checks the stored transaction instead of signing a new one.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/payment-contract/contracts/payment/paymentconst"
	"github.com/nspcc-dev/payment-contract/rpc/payment"
	"go.uber.org/zap"
)

// Contract groups payment contract methods used by the relay.
// *payment.Contract implements it.
type Contract interface {
	PendingWithdrawalsExpanded(n int) ([]stackitem.Item, error)
	GetWithdrawal(id *big.Int) (*payment.PaymentWithdrawal, error)
	LastWithdrawalID() (*big.Int, error)
	ResolveWithdrawal(id *big.Int, success bool) (util.Uint256, uint32, error)
}

// Token builds signed payout transfers. *nep17.Token implements it.
type Token interface {
	TransferTransaction(from, to util.Uint160, amount *big.Int, data any) (*transaction.Transaction, error)
}

// Chain groups network methods used to track sent transactions.
// *rpcclient.Client implements it.
type Chain interface {
	GetBlockCount() (uint32, error)
	GetApplicationLog(hash util.Uint256, trig *trigger.Type) (*result.ApplicationLog, error)
	SendRawTransaction(tx *transaction.Transaction) (util.Uint256, error)
}

// Default relay parameters.
const (
	DefaultPollInterval = 15 * time.Second
	DefaultBatchSize    = 32
)

// Prm groups relay parameters.
type Prm struct {
	Logger *zap.Logger

	Contract Contract
	Token    Token
	Chain    Chain
	Journal  Journal
	// Metrics are optional.
	Metrics *Metrics

	// ContractHash is a payment contract address used in payout references.
	ContractHash util.Uint160
	// Processor is the account paying withdrawals out.
	Processor util.Uint160

	PollInterval time.Duration
	BatchSize    int
}

// Relay drives pending withdrawals of the payment contract to resolution.
type Relay struct {
	log      *zap.Logger
	contract Contract
	token    Token
	chain    Chain
	journal  Journal
	metrics  *Metrics

	contractHash util.Uint160
	processor    util.Uint160

	pollInterval time.Duration
	batchSize    int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New checks parameters and creates Relay.
func New(prm Prm) (*Relay, error) {
	switch {
	case prm.Logger == nil:
		return nil, errors.New("missing logger")
	case prm.Contract == nil:
		return nil, errors.New("missing payment contract")
	case prm.Token == nil:
		return nil, errors.New("missing token")
	case prm.Chain == nil:
		return nil, errors.New("missing blockchain")
	case prm.Journal == nil:
		return nil, errors.New("missing journal")
	case prm.PollInterval < 0:
		return nil, fmt.Errorf("negative poll interval %v", prm.PollInterval)
	case prm.BatchSize < 0:
		return nil, fmt.Errorf("negative batch size %d", prm.BatchSize)
	}

	r := &Relay{
		log:          prm.Logger,
		contract:     prm.Contract,
		token:        prm.Token,
		chain:        prm.Chain,
		journal:      prm.Journal,
		metrics:      prm.Metrics,
		contractHash: prm.ContractHash,
		processor:    prm.Processor,
		pollInterval: prm.PollInterval,
		batchSize:    prm.BatchSize,
	}

	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	if r.pollInterval == 0 {
		r.pollInterval = DefaultPollInterval
	}
	if r.batchSize == 0 {
		r.batchSize = DefaultBatchSize
	}

	return r, nil
}

// Start runs the relay loop in a separate goroutine. Start is a no-op if the
// relay is already running.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		r.Run(ctx)
	}()
}

// Stop stops the loop started by Start and waits for the current pass to
// finish.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		return
	}

	r.cancel()
	<-r.done
	r.cancel = nil
}

// Run processes withdrawals every poll interval until ctx is done. Errors of
// the single pass are logged and do not stop the loop.
func (r *Relay) Run(ctx context.Context) {
	r.log.Info("payout relay started",
		zap.Duration("poll interval", r.pollInterval), zap.Int("batch size", r.batchSize))

	t := time.NewTicker(r.pollInterval)
	defer t.Stop()

	for {
		err := r.ProcessOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("payout relay pass failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			r.log.Info("payout relay stopped", zap.Error(ctx.Err()))
			return
		case <-t.C:
		}
	}
}

// ProcessOnce makes a single pass: it advances every journaled payout and
// starts payouts of pending withdrawals missing in the journal.
func (r *Relay) ProcessOnce(ctx context.Context) error {
	type journaled struct {
		id    *big.Int
		entry *payoutEntry
	}

	var inProgress []journaled

	err := r.journal.Iterate([]byte{payoutKeyPrefix}, func(key, value []byte) error {
		id, err := payoutIDFromKey(key)
		if err != nil {
			return err
		}

		e, err := decodePayoutEntry(value)
		if err != nil {
			return fmt.Errorf("withdrawal %s: %w", id, err)
		}

		inProgress = append(inProgress, journaled{id, e})
		return nil
	})
	if err != nil {
		r.metrics.errors.WithLabelValues("journal").Inc()
		return fmt.Errorf("read journal: %w", err)
	}

	for i := range inProgress {
		if err := ctx.Err(); err != nil {
			return err
		}

		err = r.advance(inProgress[i].id, inProgress[i].entry)
		if err != nil {
			r.log.Error("failed to advance payout",
				zap.Stringer("id", inProgress[i].id), zap.Error(err))
		}
	}

	// journaled withdrawals are still pending, read past them
	items, err := r.contract.PendingWithdrawalsExpanded(r.batchSize + len(inProgress))
	if err != nil {
		r.metrics.errors.WithLabelValues("read").Inc()
		return fmt.Errorf("read pending withdrawals: %w", err)
	}

	r.metrics.pending.Set(float64(len(items)))

	var started int
	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if started >= r.batchSize {
			break
		}

		id, err := items[i].TryInteger()
		if err != nil {
			r.metrics.errors.WithLabelValues("read").Inc()
			return fmt.Errorf("invalid pending withdrawal #%d: %w", i, err)
		}

		_, err = r.journal.Get(payoutKey(id.Uint64()))
		if err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			r.metrics.errors.WithLabelValues("journal").Inc()
			return fmt.Errorf("read journal: %w", err)
		}

		started++

		err = r.pay(id)
		if err != nil {
			r.log.Error("failed to pay withdrawal out", zap.Stringer("id", id), zap.Error(err))
		}
	}

	var count int
	err = r.journal.Iterate([]byte{payoutKeyPrefix}, func(_, _ []byte) error {
		count++
		return nil
	})
	if err == nil {
		r.metrics.journaled.Set(float64(count))
	}

	return nil
}

// pay signs, journals and sends the payout transaction for the withdrawal.
func (r *Relay) pay(id *big.Int) error {
	w, err := r.contract.GetWithdrawal(id)
	if err != nil {
		r.metrics.errors.WithLabelValues("read").Inc()
		return fmt.Errorf("read withdrawal: %w", err)
	}

	if w == nil || w.Status.Int64() != paymentconst.StatusPending {
		r.log.Debug("withdrawal is already resolved, skip", zap.Stringer("id", id))
		return nil
	}

	payout := new(big.Int).Sub(w.Amount, w.Fee)

	tx, err := r.token.TransferTransaction(r.processor, w.Recipient, payout, PayoutReference(r.contractHash, id))
	if err != nil {
		r.metrics.errors.WithLabelValues("payout").Inc()
		return fmt.Errorf("make payout transaction: %w", err)
	}

	e := &payoutEntry{
		state: statePaying,
		hash:  tx.Hash(),
		vub:   tx.ValidUntilBlock,
		raw:   tx.Bytes(),
	}

	err = r.journal.Put(payoutKey(id.Uint64()), e.bytes())
	if err != nil {
		r.metrics.errors.WithLabelValues("journal").Inc()
		return fmt.Errorf("journal payout transaction: %w", err)
	}

	r.log.Info("sending payout",
		zap.Stringer("id", id),
		zap.Stringer("recipient", w.Recipient),
		zap.Stringer("amount", payout),
		zap.Stringer("tx", e.hash),
		zap.Uint32("vub", e.vub))

	_, err = r.chain.SendRawTransaction(tx)
	if err != nil {
		// journaled transaction will be resent on the next pass
		r.metrics.errors.WithLabelValues("payout").Inc()
		return fmt.Errorf("send payout transaction: %w", err)
	}

	r.metrics.payoutsSent.Inc()

	return nil
}

// advance moves the journaled withdrawal to the next state if possible.
func (r *Relay) advance(id *big.Int, e *payoutEntry) error {
	log, err := r.chain.GetApplicationLog(e.hash, nil)
	if err != nil && !errors.Is(err, neorpc.ErrUnknownScriptContainer) {
		r.metrics.errors.WithLabelValues("read").Inc()
		return fmt.Errorf("read application log of %s: %w", e.hash.StringLE(), err)
	}

	if log == nil || len(log.Executions) == 0 {
		return r.advanceUnaccepted(id, e)
	}

	exec := log.Executions[0]

	switch e.state {
	case statePaying:
		// payout script asserts the transfer result, so false FAULTs
		success := exec.VMState == vmstate.Halt
		if !success {
			r.log.Info("payout failed",
				zap.Stringer("id", id), zap.Stringer("tx", e.hash), zap.String("exception", exec.FaultException))
		}

		return r.resolveIfPending(id, success)
	default:
		if exec.VMState == vmstate.Halt {
			r.log.Info("withdrawal resolved",
				zap.Stringer("id", id), zap.String("outcome", outcomeLabel(e.success)))
			r.metrics.resolved.WithLabelValues(outcomeLabel(e.success)).Inc()

			return r.forget(id)
		}

		// either a temporary condition (e.g. lack of GAS for the escrow
		// return) or the withdrawal is already resolved
		r.log.Warn("resolve transaction failed",
			zap.Stringer("id", id), zap.Stringer("tx", e.hash), zap.String("exception", exec.FaultException))

		return r.resolveIfPending(id, e.success)
	}
}

// advanceUnaccepted handles journaled transaction not yet accepted by the
// network.
func (r *Relay) advanceUnaccepted(id *big.Int, e *payoutEntry) error {
	height, err := r.chain.GetBlockCount()
	if err != nil {
		r.metrics.errors.WithLabelValues("read").Inc()
		return fmt.Errorf("read chain height: %w", err)
	}

	// transaction can still be accepted in the block with index vub
	if height <= e.vub {
		if e.state == statePaying {
			tx, err := transaction.NewTransactionFromBytes(e.raw)
			if err != nil {
				return fmt.Errorf("decode journaled payout transaction: %w", err)
			}

			// the node may have lost the transaction, resending is harmless
			_, err = r.chain.SendRawTransaction(tx)
			if err != nil {
				r.log.Debug("payout transaction resend failed",
					zap.Stringer("id", id), zap.Stringer("tx", e.hash), zap.Error(err))
			}
		}

		return nil
	}

	r.log.Info("transaction expired",
		zap.Stringer("id", id), zap.Stringer("tx", e.hash), zap.Uint32("vub", e.vub), zap.Uint32("height", height))

	if e.state == stateResolving {
		return r.resolveIfPending(id, e.success)
	}

	// payout never happened, so it is safe to sign a new one on the next pass
	return r.forget(id)
}

// resolveIfPending resolves the withdrawal unless it has already been
// resolved, e.g. by the transaction sent before the relay restart. Journal
// entry of the resolved withdrawal is dropped.
func (r *Relay) resolveIfPending(id *big.Int, success bool) error {
	pending, err := r.isPending(id)
	if err != nil {
		return err
	}

	if !pending {
		r.log.Info("withdrawal is already resolved", zap.Stringer("id", id))
		return r.forget(id)
	}

	return r.resolve(id, success)
}

// isPending checks whether the withdrawal still waits for resolution. Missing
// record of the issued withdrawal means it has been resolved and pruned.
func (r *Relay) isPending(id *big.Int) (bool, error) {
	w, err := r.contract.GetWithdrawal(id)
	if err != nil {
		r.metrics.errors.WithLabelValues("read").Inc()
		return false, fmt.Errorf("read withdrawal: %w", err)
	}

	if w != nil {
		return w.Status.Int64() == paymentconst.StatusPending, nil
	}

	last, err := r.contract.LastWithdrawalID()
	if err != nil {
		r.metrics.errors.WithLabelValues("read").Inc()
		return false, fmt.Errorf("read last withdrawal ID: %w", err)
	}

	if id.Cmp(last) > 0 {
		return false, fmt.Errorf("withdrawal %s has not been issued, last is %s", id, last)
	}

	return false, nil
}

// resolve reports payout outcome to the contract and journals the
// transaction.
func (r *Relay) resolve(id *big.Int, success bool) error {
	h, vub, err := r.contract.ResolveWithdrawal(id, success)
	if err != nil {
		r.metrics.errors.WithLabelValues("resolve").Inc()
		return fmt.Errorf("send resolve transaction: %w", err)
	}

	r.log.Info("resolve transaction sent",
		zap.Stringer("id", id), zap.Bool("success", success), zap.Stringer("tx", h), zap.Uint32("vub", vub))

	e := &payoutEntry{
		state:   stateResolving,
		success: success,
		hash:    h,
		vub:     vub,
	}

	err = r.journal.Put(payoutKey(id.Uint64()), e.bytes())
	if err != nil {
		r.metrics.errors.WithLabelValues("journal").Inc()
		return fmt.Errorf("journal resolve transaction: %w", err)
	}

	return nil
}

func (r *Relay) forget(id *big.Int) error {
	err := r.journal.Delete(payoutKey(id.Uint64()))
	if err != nil {
		r.metrics.errors.WithLabelValues("journal").Inc()
		return fmt.Errorf("delete journal entry: %w", err)
	}
	return nil
}

// PayoutReference returns base58-encoded reference attached to the payout
// transfer of the withdrawal: payment contract address followed by the
// withdrawal identifier.
func PayoutReference(contract util.Uint160, id *big.Int) string {
	return base58.Encode(append(contract.BytesBE(), bigint.ToBytes(id)...))
}

// ParsePayoutReference decodes reference made by PayoutReference.
func ParsePayoutReference(ref string) (util.Uint160, *big.Int, error) {
	b, err := base58.Decode(ref)
	if err != nil {
		return util.Uint160{}, nil, fmt.Errorf("decode base58: %w", err)
	}

	if len(b) <= util.Uint160Size {
		return util.Uint160{}, nil, fmt.Errorf("invalid reference length %d", len(b))
	}

	contract, err := util.Uint160DecodeBytesBE(b[:util.Uint160Size])
	if err != nil {
		return util.Uint160{}, nil, err
	}

	return contract, bigint.FromBytes(b[util.Uint160Size:]), nil
}
