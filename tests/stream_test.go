package tests

import (
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/payment-contract/common"
	"github.com/stretchr/testify/require"
)

// Stream period in milliseconds. Every block is 1 ms later than the previous
// one in the test chain.
const streamPeriod = 10

func getStream(t *testing.T, c *neotest.ContractInvoker, id int64) []stackitem.Item {
	s, err := c.TestInvoke(t, "getStream", id)
	require.NoError(t, err)

	arr, ok := s.Pop().Item().Value().([]stackitem.Item)
	require.True(t, ok)
	require.Len(t, arr, 7)
	return arr
}

// approveStream approves the stream and returns its start timestamp.
func approveStream(t *testing.T, c *neotest.ContractInvoker, receiver neotest.Signer, id int64) int64 {
	h := c.WithSigners(receiver).Invoke(t, stackitem.Null{}, "approveStream", id)

	started := int64(c.TopBlock(t).Timestamp)
	c.CheckTxNotificationEvent(t, h, 0, state.NotificationEvent{
		ScriptHash: c.Hash,
		Name:       "StreamApproved",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.Make(id),
			stackitem.NewByteArray(receiver.ScriptHash().BytesBE()),
			stackitem.Make(started),
		}),
	})

	return started
}

func TestPayment_Stream(t *testing.T) {
	c, _, _ := newPaymentInvoker(t, paymentPrm{})

	issuer := c.NewAccount(t)
	receiver := c.NewAccount(t)
	cIssuer := c.WithSigners(issuer)
	cReceiver := c.WithSigners(receiver)

	deposit(t, c, issuer, 100)

	h := cIssuer.Invoke(t, 1, "createStream", issuer.ScriptHash(), receiver.ScriptHash(), int64(30), int64(10), int64(streamPeriod))
	c.CheckTxNotificationEvent(t, h, 0, state.NotificationEvent{
		ScriptHash: c.Hash,
		Name:       "StreamCreated",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.Make(1),
			stackitem.NewByteArray(issuer.ScriptHash().BytesBE()),
			stackitem.NewByteArray(receiver.ScriptHash().BytesBE()),
			stackitem.Make(30),
		}),
	})

	c.Invoke(t, 70, "balanceOf", issuer.ScriptHash())
	c.Invoke(t, 70, "liabilities")
	c.Invoke(t, 30, "locked")
	c.Invoke(t, 1, "lastStreamID")
	require.Equal(t, []int64{1}, iteratorInts(t, c, "streamsOf", issuer.ScriptHash()))
	require.Equal(t, []int64{1}, iteratorInts(t, c, "streamsOf", receiver.ScriptHash()))

	t.Run("claim before approval", func(t *testing.T) {
		cReceiver.InvokeFail(t, common.ErrStreamNotApproved, "claimStream", int64(1))
	})

	t.Run("approve by issuer", func(t *testing.T) {
		cIssuer.InvokeFail(t, common.ErrWitnessFailed, "approveStream", int64(1))
	})

	started := approveStream(t, c, receiver, 1)

	start, err := getStream(t, c, 1)[5].TryInteger()
	require.NoError(t, err)
	require.Equal(t, started, start.Int64())

	cReceiver.InvokeFail(t, common.ErrStreamApproved, "approveStream", int64(1))

	t.Run("claim by issuer", func(t *testing.T) {
		cIssuer.InvokeFail(t, common.ErrWitnessFailed, "claimStream", int64(1))
	})

	// claim lands 2.5 periods after the approval
	c.GenerateNewBlocks(t, int(started)+2*streamPeriod+5-1-int(c.TopBlock(t).Timestamp))

	h = cReceiver.Invoke(t, 20, "claimStream", int64(1))
	require.Len(t, contractEvents(t, c, h, "StreamClaimed"), 1)
	c.Invoke(t, 20, "balanceOf", receiver.ScriptHash())
	c.Invoke(t, 10, "locked")

	claimed, err := getStream(t, c, 1)[6].TryInteger()
	require.NoError(t, err)
	require.EqualValues(t, 20, claimed.Int64())

	h = cReceiver.Invoke(t, 0, "claimStream", int64(1))
	require.Empty(t, contractEvents(t, c, h, "StreamClaimed"))

	// schedule is capped by the total amount
	c.GenerateNewBlocks(t, 5*streamPeriod)

	cReceiver.Invoke(t, 10, "claimStream", int64(1))
	c.Invoke(t, 30, "balanceOf", receiver.ScriptHash())
	c.Invoke(t, 0, "locked")
	c.Invoke(t, stackitem.Null{}, "getStream", int64(1))
	require.Empty(t, iteratorInts(t, c, "streamsOf", issuer.ScriptHash()))
	require.Empty(t, iteratorInts(t, c, "streamsOf", receiver.ScriptHash()))

	cReceiver.InvokeFail(t, common.ErrUnknownStream, "claimStream", int64(1))

	c.Invoke(t, 100, "liabilities")
	checkLedger(t, c, issuer.ScriptHash(), receiver.ScriptHash())
}

func TestPayment_StreamCancel(t *testing.T) {
	c, _, _ := newPaymentInvoker(t, paymentPrm{})

	issuer := c.NewAccount(t)
	receiver := c.NewAccount(t)
	cIssuer := c.WithSigners(issuer)
	cReceiver := c.WithSigners(receiver)

	deposit(t, c, issuer, 200)

	cancelled := func(id, toIssuer, toReceiver int64) state.NotificationEvent {
		return state.NotificationEvent{
			ScriptHash: c.Hash,
			Name:       "StreamCancelled",
			Item: stackitem.NewArray([]stackitem.Item{
				stackitem.Make(id),
				stackitem.Make(toIssuer),
				stackitem.Make(toReceiver),
			}),
		}
	}

	t.Run("unapproved", func(t *testing.T) {
		cIssuer.Invoke(t, 1, "createStream", issuer.ScriptHash(), receiver.ScriptHash(), int64(50), int64(10), int64(streamPeriod))
		c.Invoke(t, 150, "balanceOf", issuer.ScriptHash())

		h := cReceiver.Invoke(t, stackitem.Null{}, "cancelStream", int64(1))
		c.CheckTxNotificationEvent(t, h, 0, cancelled(1, 50, 0))

		c.Invoke(t, 200, "balanceOf", issuer.ScriptHash())
		c.Invoke(t, 0, "balanceOf", receiver.ScriptHash())
		c.Invoke(t, stackitem.Null{}, "getStream", int64(1))
	})

	t.Run("partially released", func(t *testing.T) {
		cIssuer.Invoke(t, 2, "createStream", issuer.ScriptHash(), receiver.ScriptHash(), int64(40), int64(10), int64(streamPeriod))
		started := approveStream(t, c, receiver, 2)

		c.WithSigners(c.NewAccount(t)).InvokeFail(t, common.ErrWitnessFailed, "cancelStream", int64(2))

		// cancel lands 1.5 periods after the approval
		c.GenerateNewBlocks(t, int(started)+streamPeriod+5-1-int(c.TopBlock(t).Timestamp))

		h := cIssuer.Invoke(t, stackitem.Null{}, "cancelStream", int64(2))
		c.CheckTxNotificationEvent(t, h, 0, cancelled(2, 30, 10))

		c.Invoke(t, 190, "balanceOf", issuer.ScriptHash())
		c.Invoke(t, 10, "balanceOf", receiver.ScriptHash())
		require.Empty(t, iteratorInts(t, c, "streamsOf", receiver.ScriptHash()))

		cIssuer.InvokeFail(t, common.ErrUnknownStream, "cancelStream", int64(2))
	})

	c.Invoke(t, 0, "locked")
	c.Invoke(t, 2, "lastStreamID")
	checkLedger(t, c, issuer.ScriptHash(), receiver.ScriptHash())
}

func TestPayment_StreamValidation(t *testing.T) {
	c, owner, _ := newPaymentInvoker(t, paymentPrm{})

	issuer := c.NewAccount(t)
	receiver := c.NewAccount(t).ScriptHash()
	cIssuer := c.WithSigners(issuer)

	deposit(t, c, issuer, 100)

	create := func(t *testing.T, errMessage string, receiver any, amount, rate, period int64) {
		cIssuer.InvokeFail(t, errMessage, "createStream", issuer.ScriptHash(), receiver, amount, rate, period)
	}

	t.Run("schedule", func(t *testing.T) {
		create(t, common.ErrInvalidStreamSchedule, receiver, 0, 10, streamPeriod)
		create(t, common.ErrInvalidStreamSchedule, receiver, 30, 0, streamPeriod)
		create(t, common.ErrInvalidStreamSchedule, receiver, 30, 10, 0)
		create(t, common.ErrInvalidStreamSchedule, receiver, 25, 10, streamPeriod)
		create(t, common.ErrInvalidStream, receiver, -30, -10, streamPeriod)
	})

	t.Run("receiver", func(t *testing.T) {
		create(t, common.ErrInvalidStreamReceiver, []byte{1, 2, 3}, 30, 10, streamPeriod)
		create(t, common.ErrInvalidStreamReceiver, util.Uint160{}, 30, 10, streamPeriod)
		create(t, common.ErrInvalidStreamReceiver, issuer.ScriptHash(), 30, 10, streamPeriod)
		create(t, common.ErrInvalidStreamReceiver, c.Hash, 30, 10, streamPeriod)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		c.WithSigners(c.NewAccount(t)).InvokeFail(t, common.ErrWitnessFailed,
			"createStream", issuer.ScriptHash(), receiver, int64(30), int64(10), int64(streamPeriod))
	})

	t.Run("insufficient balance", func(t *testing.T) {
		create(t, common.ErrInsufficientBalance, receiver, 110, 10, streamPeriod)
	})

	t.Run("unknown stream", func(t *testing.T) {
		cIssuer.InvokeFail(t, common.ErrUnknownStream, "approveStream", int64(1))
		cIssuer.InvokeFail(t, common.ErrUnknownStream, "cancelStream", int64(1))
		c.Invoke(t, stackitem.Null{}, "getStream", int64(1))
	})

	c.Invoke(t, 100, "balanceOf", issuer.ScriptHash())
	c.Invoke(t, 0, "lastStreamID")
	c.Invoke(t, 0, "locked")

	t.Run("paused", func(t *testing.T) {
		cIssuer.Invoke(t, 1, "createStream", issuer.ScriptHash(), receiver, int64(30), int64(10), int64(streamPeriod))

		cOwner := c.WithSigners(owner)
		cOwner.Invoke(t, stackitem.Null{}, "setPaused", true)

		create(t, common.ErrContractPaused, receiver, 30, 10, streamPeriod)
		cIssuer.Invoke(t, stackitem.Null{}, "cancelStream", int64(1))
		c.Invoke(t, 100, "balanceOf", issuer.ScriptHash())

		cOwner.Invoke(t, stackitem.Null{}, "setPaused", false)
	})
}
