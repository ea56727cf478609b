package relay

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/nspcc-dev/neo-go/pkg/core/native/nativenames"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/payment-contract/contracts/payment/paymentconst"
	"github.com/nspcc-dev/payment-contract/rpc/payment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const validityPeriod = 10

// testChain is an in-memory network: it accepts transactions into the pool
// and returns application logs set by the test.
type testChain struct {
	mu     sync.Mutex
	height uint32
	pool   map[util.Uint256]int
	logs   map[util.Uint256]*result.ApplicationLog
}

func newTestChain() *testChain {
	return &testChain{
		height: 100,
		pool:   make(map[util.Uint256]int),
		logs:   make(map[util.Uint256]*result.ApplicationLog),
	}
}

func (c *testChain) GetBlockCount() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height, nil
}

func (c *testChain) GetApplicationLog(h util.Uint256, _ *trigger.Type) (*result.ApplicationLog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log, ok := c.logs[h]
	if !ok {
		return nil, neorpc.ErrUnknownScriptContainer
	}
	return log, nil
}

func (c *testChain) SendRawTransaction(tx *transaction.Transaction) (util.Uint256, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pool[tx.Hash()]++
	return tx.Hash(), nil
}

func (c *testChain) accept(h util.Uint256, st vmstate.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs[h] = &result.ApplicationLog{
		Container: h,
		Executions: []state.Execution{{
			Trigger: trigger.Application,
			VMState: st,
		}},
	}
}

func (c *testChain) sent(h util.Uint256) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool[h]
}

type resolveCall struct {
	id      int64
	success bool
	hash    util.Uint256
}

type testContract struct {
	chain *testChain

	mu          sync.Mutex
	last        int64
	withdrawals map[int64]*payment.PaymentWithdrawal
	resolves    []resolveCall
}

func (c *testContract) PendingWithdrawalsExpanded(n int) ([]stackitem.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res []stackitem.Item
	for id := int64(1); len(res) < n && id <= c.last; id++ {
		if w, ok := c.withdrawals[id]; ok && w.Status.Int64() == paymentconst.StatusPending {
			res = append(res, stackitem.Make(id))
		}
	}
	return res, nil
}

func (c *testContract) GetWithdrawal(id *big.Int) (*payment.PaymentWithdrawal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.withdrawals[id.Int64()], nil
}

func (c *testContract) LastWithdrawalID() (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return big.NewInt(c.last), nil
}

// ResolveWithdrawal fails for resolved withdrawals like the asserted
// invocation does.
func (c *testContract) ResolveWithdrawal(id *big.Int, success bool) (util.Uint256, uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.withdrawals[id.Int64()]
	if !ok || w.Status.Int64() != paymentconst.StatusPending {
		return util.Uint256{}, 0, errors.New("script failed (FAULT state) due to an error: ASSERT is failed")
	}

	h := util.Uint256{byte(len(c.resolves) + 1), 0xee}
	c.resolves = append(c.resolves, resolveCall{id.Int64(), success, h})

	vub, _ := c.chain.GetBlockCount()
	return h, vub + validityPeriod, nil
}

// settle applies the last resolve transaction as accepted by the network.
func (c *testContract) settle(t *testing.T, st vmstate.State) resolveCall {
	c.mu.Lock()
	require.NotEmpty(t, c.resolves)
	call := c.resolves[len(c.resolves)-1]
	if st == vmstate.Halt {
		status := paymentconst.StatusReverted
		if call.success {
			status = paymentconst.StatusSettled
		}
		c.withdrawals[call.id].Status = big.NewInt(int64(status))
	}
	c.mu.Unlock()

	c.chain.accept(call.hash, st)
	return call
}

type transferCall struct {
	to     util.Uint160
	amount int64
	ref    string
	tx     *transaction.Transaction
}

type testToken struct {
	chain *testChain

	mu    sync.Mutex
	calls []transferCall
}

func (tk *testToken) TransferTransaction(from, to util.Uint160, amount *big.Int, data any) (*transaction.Transaction, error) {
	tk.mu.Lock()
	defer tk.mu.Unlock()

	ref, _ := data.(string)
	height, _ := tk.chain.GetBlockCount()

	tx := transaction.New([]byte(ref), 0)
	tx.Nonce = uint32(len(tk.calls))
	tx.ValidUntilBlock = height + validityPeriod
	tx.Signers = []transaction.Signer{{Account: from, Scopes: transaction.CalledByEntry}}
	tx.Scripts = []transaction.Witness{{}}

	tk.calls = append(tk.calls, transferCall{to, amount.Int64(), ref, tx})

	return tx, nil
}

func (tk *testToken) transfers() []transferCall {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return append([]transferCall(nil), tk.calls...)
}

type testEnv struct {
	chain    *testChain
	contract *testContract
	token    *testToken
	fs       vfs.FS
	journal  *PebbleJournal
	reg      *prometheus.Registry
	relay    *Relay

	contractHash util.Uint160
	processor    util.Uint160
}

func newTestEnv(t *testing.T, withdrawals ...*payment.PaymentWithdrawal) *testEnv {
	nc := newTestChain()
	env := &testEnv{
		chain: nc,
		contract: &testContract{
			chain:       nc,
			withdrawals: make(map[int64]*payment.PaymentWithdrawal),
		},
		token:        &testToken{chain: nc},
		fs:           vfs.NewMem(),
		contractHash: util.Uint160{0xc0},
		processor:    util.Uint160{0xaa},
	}

	for i := range withdrawals {
		env.contract.withdrawals[int64(i+1)] = withdrawals[i]
	}
	env.contract.last = int64(len(withdrawals))

	env.restart(t)

	return env
}

// restart emulates relay process restart with persistent journal.
func (e *testEnv) restart(t *testing.T) {
	if e.journal != nil {
		require.NoError(t, e.journal.Close())
	}

	e.journal = newTestJournal(t, e.fs)
	t.Cleanup(func() { _ = e.journal.Close() })

	e.reg = prometheus.NewRegistry()

	var err error
	e.relay, err = New(Prm{
		Logger:       zaptest.NewLogger(t),
		Contract:     e.contract,
		Token:        e.token,
		Chain:        e.chain,
		Journal:      e.journal,
		Metrics:      NewMetrics(e.reg),
		ContractHash: e.contractHash,
		Processor:    e.processor,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
}

func (e *testEnv) pass(t *testing.T) {
	require.NoError(t, e.relay.ProcessOnce(context.Background()))
}

func (e *testEnv) entry(t *testing.T, id uint64) *payoutEntry {
	b, err := e.journal.Get(payoutKey(id))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	require.NoError(t, err)

	res, err := decodePayoutEntry(b)
	require.NoError(t, err)
	return res
}

func newWithdrawal(recipient util.Uint160, amount, fee int64) *payment.PaymentWithdrawal {
	return &payment.PaymentWithdrawal{
		Account:   util.Uint160{0x01},
		Recipient: recipient,
		Amount:    big.NewInt(amount),
		Fee:       big.NewInt(fee),
		Status:    big.NewInt(paymentconst.StatusPending),
		Created:   big.NewInt(1),
	}
}

func TestNew(t *testing.T) {
	_, err := New(Prm{})
	require.Error(t, err)

	env := newTestEnv(t)
	require.Equal(t, DefaultBatchSize, env.relay.batchSize)
	require.Equal(t, 10*time.Millisecond, env.relay.pollInterval)
}

func TestRelay_Settle(t *testing.T) {
	rcv := util.Uint160{0xbb}
	env := newTestEnv(t, newWithdrawal(rcv, 100, 1))

	env.pass(t)

	transfers := env.token.transfers()
	require.Len(t, transfers, 1)
	require.Equal(t, rcv, transfers[0].to)
	require.EqualValues(t, 99, transfers[0].amount)

	contract, id, err := ParsePayoutReference(transfers[0].ref)
	require.NoError(t, err)
	require.Equal(t, env.contractHash, contract)
	require.EqualValues(t, 1, id.Int64())

	payoutTx := transfers[0].tx.Hash()
	require.Equal(t, 1, env.chain.sent(payoutTx))

	e := env.entry(t, 1)
	require.NotNil(t, e)
	require.Equal(t, statePaying, e.state)
	require.Equal(t, payoutTx, e.hash)
	require.Equal(t, 1.0, testutil.ToFloat64(env.relay.metrics.payoutsSent))
	require.Equal(t, 1.0, testutil.ToFloat64(env.relay.metrics.pending))

	// payout is not accepted yet
	env.pass(t)
	require.Len(t, env.token.transfers(), 1)
	require.Empty(t, env.contract.resolves)

	env.chain.accept(payoutTx, vmstate.Halt)
	env.pass(t)

	require.Len(t, env.contract.resolves, 1)
	require.Equal(t, resolveCall{1, true, env.contract.resolves[0].hash}, env.contract.resolves[0])

	e = env.entry(t, 1)
	require.NotNil(t, e)
	require.Equal(t, stateResolving, e.state)
	require.True(t, e.success)

	env.contract.settle(t, vmstate.Halt)
	env.pass(t)

	require.Nil(t, env.entry(t, 1))
	require.Len(t, env.token.transfers(), 1)
	require.Len(t, env.contract.resolves, 1)
	require.Equal(t, 1.0, testutil.ToFloat64(env.relay.metrics.resolved.WithLabelValues("settled")))
	require.Equal(t, 0.0, testutil.ToFloat64(env.relay.metrics.pending))
}

func TestRelay_PayoutFailure(t *testing.T) {
	env := newTestEnv(t, newWithdrawal(util.Uint160{0xbb}, 50, 0))

	env.pass(t)
	transfers := env.token.transfers()
	require.Len(t, transfers, 1)

	env.chain.accept(transfers[0].tx.Hash(), vmstate.Fault)
	env.pass(t)

	require.Len(t, env.contract.resolves, 1)
	require.False(t, env.contract.resolves[0].success)

	env.contract.settle(t, vmstate.Halt)
	env.pass(t)

	require.Nil(t, env.entry(t, 1))
	require.EqualValues(t, paymentconst.StatusReverted, env.contract.withdrawals[1].Status.Int64())
	require.Equal(t, 1.0, testutil.ToFloat64(env.relay.metrics.resolved.WithLabelValues("reverted")))
}

// executeTransfer runs asserted GAS transfer the same way nep17 token writer
// builds it and returns its application log.
func executeTransfer(t *testing.T, amount int64) *result.ApplicationLog {
	bc, validator := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, validator, validator)

	b := smartcontract.NewBuilder()
	b.InvokeWithAssert(e.NativeHash(t, nativenames.Gas), "transfer",
		validator.ScriptHash(), util.Uint160{0xbb}, amount, nil)
	script, err := b.Script()
	require.NoError(t, err)

	tx := e.PrepareInvocation(t, script, []neotest.Signer{validator})
	e.AddNewBlock(t, tx)

	aer := e.GetTxExecResult(t, tx.Hash())

	return &result.ApplicationLog{
		Container:  tx.Hash(),
		Executions: []state.Execution{aer.Execution},
	}
}

func TestRelay_AssertedPayout(t *testing.T) {
	for _, tc := range []struct {
		name    string
		amount  int64
		success bool
	}{
		{name: "transferred", amount: 10, success: true},
		{name: "insufficient funds", amount: math.MaxInt64, success: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, newWithdrawal(util.Uint160{0xbb}, 10, 0))

			env.pass(t)
			payoutTx := env.token.transfers()[0].tx.Hash()

			log := executeTransfer(t, tc.amount)
			if tc.success {
				require.Equal(t, vmstate.Halt, log.Executions[0].VMState)
				require.Empty(t, log.Executions[0].Stack)
			} else {
				require.Equal(t, vmstate.Fault, log.Executions[0].VMState)
			}

			env.chain.mu.Lock()
			env.chain.logs[payoutTx] = log
			env.chain.mu.Unlock()

			env.pass(t)

			require.Len(t, env.contract.resolves, 1)
			require.Equal(t, tc.success, env.contract.resolves[0].success)
		})
	}
}

func TestRelay_ResolvedBeforeJournal(t *testing.T) {
	for _, tc := range []struct {
		name    string
		resolve func(c *testContract)
	}{
		{name: "retained", resolve: func(c *testContract) {
			c.withdrawals[1].Status = big.NewInt(paymentconst.StatusSettled)
		}},
		{name: "pruned", resolve: func(c *testContract) {
			delete(c.withdrawals, 1)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, newWithdrawal(util.Uint160{0xbb}, 10, 0))

			env.pass(t)
			env.chain.accept(env.token.transfers()[0].tx.Hash(), vmstate.Halt)

			// resolve transaction got accepted, but the relay stopped
			// before journaling it
			env.contract.mu.Lock()
			tc.resolve(env.contract)
			env.contract.mu.Unlock()

			env.restart(t)
			env.pass(t)

			require.Nil(t, env.entry(t, 1))
			require.Empty(t, env.contract.resolves)
			require.Len(t, env.token.transfers(), 1)

			env.pass(t)
			require.Len(t, env.token.transfers(), 1)
		})
	}

	t.Run("not issued", func(t *testing.T) {
		env := newTestEnv(t, newWithdrawal(util.Uint160{0xbb}, 10, 0))

		env.pass(t)
		env.chain.accept(env.token.transfers()[0].tx.Hash(), vmstate.Halt)

		env.contract.mu.Lock()
		delete(env.contract.withdrawals, 1)
		env.contract.last = 0
		env.contract.mu.Unlock()

		env.pass(t)

		require.NotNil(t, env.entry(t, 1))
		require.Empty(t, env.contract.resolves)
	})
}

func TestRelay_Restart(t *testing.T) {
	env := newTestEnv(t, newWithdrawal(util.Uint160{0xbb}, 10, 0))

	env.pass(t)
	transfers := env.token.transfers()
	require.Len(t, transfers, 1)
	payoutTx := transfers[0].tx.Hash()

	env.restart(t)
	env.pass(t)

	// the same transaction is resent instead of signing a new one
	require.Len(t, env.token.transfers(), 1)
	require.Equal(t, 2, env.chain.sent(payoutTx))

	env.chain.accept(payoutTx, vmstate.Halt)
	env.restart(t)
	env.pass(t)

	require.Len(t, env.contract.resolves, 1)
	require.True(t, env.contract.resolves[0].success)
}

func TestRelay_ExpiredPayout(t *testing.T) {
	env := newTestEnv(t, newWithdrawal(util.Uint160{0xbb}, 10, 0))

	env.pass(t)
	first := env.token.transfers()[0].tx

	env.chain.mu.Lock()
	env.chain.height = first.ValidUntilBlock + 1
	env.chain.mu.Unlock()

	env.pass(t)

	transfers := env.token.transfers()
	require.Len(t, transfers, 2)
	require.NotEqual(t, first.Hash(), transfers[1].tx.Hash())
	require.Equal(t, transfers[0].ref, transfers[1].ref)

	e := env.entry(t, 1)
	require.NotNil(t, e)
	require.Equal(t, transfers[1].tx.Hash(), e.hash)
}

func TestRelay_ResolveRetry(t *testing.T) {
	env := newTestEnv(t, newWithdrawal(util.Uint160{0xbb}, 10, 0))

	env.pass(t)
	env.chain.accept(env.token.transfers()[0].tx.Hash(), vmstate.Fault)
	env.pass(t)
	require.Len(t, env.contract.resolves, 1)

	// e.g. processor lacks GAS to return the escrow
	env.contract.settle(t, vmstate.Fault)
	env.pass(t)

	require.Len(t, env.contract.resolves, 2)
	require.Equal(t, env.contract.resolves[0].success, env.contract.resolves[1].success)

	e := env.entry(t, 1)
	require.NotNil(t, e)
	require.Equal(t, env.contract.resolves[1].hash, e.hash)

	t.Run("expired", func(t *testing.T) {
		env.chain.mu.Lock()
		env.chain.height = e.vub + 1
		env.chain.mu.Unlock()

		env.pass(t)
		require.Len(t, env.contract.resolves, 3)
		require.Len(t, env.token.transfers(), 1)
	})

	t.Run("resolved elsewhere", func(t *testing.T) {
		env.contract.withdrawals[1].Status = big.NewInt(paymentconst.StatusReverted)
		env.contract.settle(t, vmstate.Fault)

		env.pass(t)
		require.Nil(t, env.entry(t, 1))
		require.Len(t, env.contract.resolves, 3)
	})
}

func TestRelay_Batch(t *testing.T) {
	var ws []*payment.PaymentWithdrawal
	for i := 0; i < 5; i++ {
		ws = append(ws, newWithdrawal(util.Uint160{byte(i)}, int64(i+1), 0))
	}

	env := newTestEnv(t, ws...)
	env.relay.batchSize = 3

	env.pass(t)
	require.Len(t, env.token.transfers(), 3)

	require.Equal(t, 3.0, testutil.ToFloat64(env.relay.metrics.journaled))

	// journaled payouts do not occupy the batch
	env.pass(t)
	require.Len(t, env.token.transfers(), 5)
	require.Equal(t, 5.0, testutil.ToFloat64(env.relay.metrics.journaled))

	env.pass(t)
	require.Len(t, env.token.transfers(), 5)
}

func TestRelay_StartStop(t *testing.T) {
	env := newTestEnv(t, newWithdrawal(util.Uint160{0xbb}, 10, 0))

	env.relay.Start(context.Background())
	env.relay.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(env.token.transfers()) == 1
	}, time.Second, 10*time.Millisecond)

	env.relay.Stop()
	env.relay.Stop()

	require.Len(t, env.token.transfers(), 1)
}

func TestPayoutReference(t *testing.T) {
	contract := util.Uint160{1, 2, 3}

	ref := PayoutReference(contract, big.NewInt(1234))
	c, id, err := ParsePayoutReference(ref)
	require.NoError(t, err)
	require.Equal(t, contract, c)
	require.EqualValues(t, 1234, id.Int64())

	_, _, err = ParsePayoutReference("0OIl")
	require.Error(t, err)

	_, _, err = ParsePayoutReference(PayoutReference(contract, big.NewInt(0)))
	require.Error(t, err)
}
