// Package payment contains RPC wrappers for Payment contract.
package payment

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"math/big"
	"unicode/utf8"
)

// PaymentStream is a contract-specific payment.Stream type used by its methods.
type PaymentStream struct {
	Issuer util.Uint160
	Receiver util.Uint160
	Total *big.Int
	Rate *big.Int
	Period *big.Int
	Started *big.Int
	Claimed *big.Int
}

// PaymentWithdrawal is a contract-specific payment.Withdrawal type used by its methods.
type PaymentWithdrawal struct {
	Account util.Uint160
	Recipient util.Uint160
	Amount *big.Int
	Fee *big.Int
	Status *big.Int
	Created *big.Int
}
// DepositedEvent represents "Deposited" event emitted by the contract.
type DepositedEvent struct {
	Account util.Uint160
	Amount *big.Int
	Timestamp *big.Int
}

// WithdrawalInitiatedEvent represents "WithdrawalInitiated" event emitted by the contract.
type WithdrawalInitiatedEvent struct {
	ID *big.Int
	Account util.Uint160
	Recipient util.Uint160
	Amount *big.Int
}

// WithdrawalSettledEvent represents "WithdrawalSettled" event emitted by the contract.
type WithdrawalSettledEvent struct {
	ID *big.Int
	Account util.Uint160
	Amount *big.Int
}

// WithdrawalRevertedEvent represents "WithdrawalReverted" event emitted by the contract.
type WithdrawalRevertedEvent struct {
	ID *big.Int
	Account util.Uint160
	Amount *big.Int
}

// PauseChangedEvent represents "PauseChanged" event emitted by the contract.
type PauseChangedEvent struct {
	Paused bool
}

// ConfigChangedEvent represents "ConfigChanged" event emitted by the contract.
type ConfigChangedEvent struct {
	Key string
	Value *big.Int
}

// StreamCreatedEvent represents "StreamCreated" event emitted by the contract.
type StreamCreatedEvent struct {
	ID *big.Int
	Issuer util.Uint160
	Receiver util.Uint160
	Amount *big.Int
}

// StreamApprovedEvent represents "StreamApproved" event emitted by the contract.
type StreamApprovedEvent struct {
	ID *big.Int
	Receiver util.Uint160
	Timestamp *big.Int
}

// StreamClaimedEvent represents "StreamClaimed" event emitted by the contract.
type StreamClaimedEvent struct {
	ID *big.Int
	Receiver util.Uint160
	Amount *big.Int
}

// StreamCancelledEvent represents "StreamCancelled" event emitted by the contract.
type StreamCancelledEvent struct {
	ID *big.Int
	IssuerAmount *big.Int
	ReceiverAmount *big.Int
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
	CallAndExpandIterator(contract util.Uint160, method string, maxItems int, params ...any) (*result.Invoke, error)
	TerminateSession(sessionID uuid.UUID) error
	TraverseIterator(sessionID uuid.UUID, iterator *result.Iterator, num int) ([]stackitem.Item, error)
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker

	MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error)
	MakeRun(script []byte) (*transaction.Transaction, error)
	MakeUnsignedCall(contract util.Uint160, method string, attrs []transaction.Attribute, params ...any) (*transaction.Transaction, error)
	MakeUnsignedRun(script []byte, attrs []transaction.Attribute) (*transaction.Transaction, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
	SendRun(script []byte) (util.Uint256, uint32, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	invoker Invoker
	hash util.Uint160
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader
	actor Actor
	hash util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	return &Contract{ContractReader{actor, hash}, actor, hash}
}

// BalanceOf invokes `balanceOf` method of contract.
func (c *ContractReader) BalanceOf(account util.Uint160) (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "balanceOf", account))
}

// Fee invokes `fee` method of contract.
func (c *ContractReader) Fee() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "fee"))
}

// GetStream invokes `getStream` method of contract.
// It returns nil if the stream is closed or has never been created.
func (c *ContractReader) GetStream(id *big.Int) (*PaymentStream, error) {
	return itemToPaymentStream(unwrap.Item(c.invoker.Call(c.hash, "getStream", id)))
}

// GetWithdrawal invokes `getWithdrawal` method of contract.
// It returns nil if there is no such withdrawal record.
func (c *ContractReader) GetWithdrawal(id *big.Int) (*PaymentWithdrawal, error) {
	return itemToPaymentWithdrawal(unwrap.Item(c.invoker.Call(c.hash, "getWithdrawal", id)))
}

// IsPaused invokes `isPaused` method of contract.
func (c *ContractReader) IsPaused() (bool, error) {
	return unwrap.Bool(c.invoker.Call(c.hash, "isPaused"))
}

// LastStreamID invokes `lastStreamID` method of contract.
func (c *ContractReader) LastStreamID() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "lastStreamID"))
}

// LastWithdrawalID invokes `lastWithdrawalID` method of contract.
func (c *ContractReader) LastWithdrawalID() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "lastWithdrawalID"))
}

// Liabilities invokes `liabilities` method of contract.
func (c *ContractReader) Liabilities() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "liabilities"))
}

// Locked invokes `locked` method of contract.
func (c *ContractReader) Locked() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "locked"))
}

// MinDeposit invokes `minDeposit` method of contract.
func (c *ContractReader) MinDeposit() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "minDeposit"))
}

// Owner invokes `owner` method of contract.
func (c *ContractReader) Owner() (util.Uint160, error) {
	return unwrap.Uint160(c.invoker.Call(c.hash, "owner"))
}

// PendingWithdrawals invokes `pendingWithdrawals` method of contract.
func (c *ContractReader) PendingWithdrawals() (uuid.UUID, result.Iterator, error) {
	return unwrap.SessionIterator(c.invoker.Call(c.hash, "pendingWithdrawals"))
}

// PendingWithdrawalsExpanded is similar to PendingWithdrawals (uses the same contract
// method), but can be useful if the server used doesn't support sessions and
// doesn't expand iterators. It creates a script that will get the specified
// number of result items from the iterator right in the VM and return them to
// you. It's only limited by VM stack and GAS available for RPC invocations.
func (c *ContractReader) PendingWithdrawalsExpanded(_numOfIteratorItems int) ([]stackitem.Item, error) {
	return unwrap.Array(c.invoker.CallAndExpandIterator(c.hash, "pendingWithdrawals", _numOfIteratorItems))
}

// Processor invokes `processor` method of contract.
func (c *ContractReader) Processor() (util.Uint160, error) {
	return unwrap.Uint160(c.invoker.Call(c.hash, "processor"))
}

// StreamsOf invokes `streamsOf` method of contract.
func (c *ContractReader) StreamsOf(account util.Uint160) (uuid.UUID, result.Iterator, error) {
	return unwrap.SessionIterator(c.invoker.Call(c.hash, "streamsOf", account))
}

// StreamsOfExpanded is similar to StreamsOf (uses the same contract
// method), but can be useful if the server used doesn't support sessions and
// doesn't expand iterators. It creates a script that will get the specified
// number of result items from the iterator right in the VM and return them to
// you. It's only limited by VM stack and GAS available for RPC invocations.
func (c *ContractReader) StreamsOfExpanded(account util.Uint160, _numOfIteratorItems int) ([]stackitem.Item, error) {
	return unwrap.Array(c.invoker.CallAndExpandIterator(c.hash, "streamsOf", _numOfIteratorItems, account))
}

// TotalDeposited invokes `totalDeposited` method of contract.
func (c *ContractReader) TotalDeposited() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "totalDeposited"))
}

// TotalSettled invokes `totalSettled` method of contract.
func (c *ContractReader) TotalSettled() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "totalSettled"))
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "version"))
}

// WithdrawalsOf invokes `withdrawalsOf` method of contract.
func (c *ContractReader) WithdrawalsOf(account util.Uint160) (uuid.UUID, result.Iterator, error) {
	return unwrap.SessionIterator(c.invoker.Call(c.hash, "withdrawalsOf", account))
}

// WithdrawalsOfExpanded is similar to WithdrawalsOf (uses the same contract
// method), but can be useful if the server used doesn't support sessions and
// doesn't expand iterators. It creates a script that will get the specified
// number of result items from the iterator right in the VM and return them to
// you. It's only limited by VM stack and GAS available for RPC invocations.
func (c *ContractReader) WithdrawalsOfExpanded(account util.Uint160, _numOfIteratorItems int) ([]stackitem.Item, error) {
	return unwrap.Array(c.invoker.CallAndExpandIterator(c.hash, "withdrawalsOf", _numOfIteratorItems, account))
}

// ApproveStream creates a transaction invoking `approveStream` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) ApproveStream(id *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "approveStream", id)
}

// ApproveStreamTransaction creates a transaction invoking `approveStream` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) ApproveStreamTransaction(id *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "approveStream", id)
}

// ApproveStreamUnsigned creates a transaction invoking `approveStream` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) ApproveStreamUnsigned(id *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "approveStream", nil, id)
}

// CancelStream creates a transaction invoking `cancelStream` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) CancelStream(id *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "cancelStream", id)
}

// CancelStreamTransaction creates a transaction invoking `cancelStream` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) CancelStreamTransaction(id *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "cancelStream", id)
}

// CancelStreamUnsigned creates a transaction invoking `cancelStream` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) CancelStreamUnsigned(id *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "cancelStream", nil, id)
}

// ClaimStream creates a transaction invoking `claimStream` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) ClaimStream(id *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "claimStream", id)
}

// ClaimStreamTransaction creates a transaction invoking `claimStream` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) ClaimStreamTransaction(id *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "claimStream", id)
}

// ClaimStreamUnsigned creates a transaction invoking `claimStream` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) ClaimStreamUnsigned(id *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "claimStream", nil, id)
}

// CreateStream creates a transaction invoking `createStream` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) CreateStream(issuer util.Uint160, receiver util.Uint160, amount *big.Int, rate *big.Int, period *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "createStream", issuer, receiver, amount, rate, period)
}

// CreateStreamTransaction creates a transaction invoking `createStream` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) CreateStreamTransaction(issuer util.Uint160, receiver util.Uint160, amount *big.Int, rate *big.Int, period *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "createStream", issuer, receiver, amount, rate, period)
}

// CreateStreamUnsigned creates a transaction invoking `createStream` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) CreateStreamUnsigned(issuer util.Uint160, receiver util.Uint160, amount *big.Int, rate *big.Int, period *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "createStream", nil, issuer, receiver, amount, rate, period)
}

func (c *Contract) scriptForResolveWithdrawal(id *big.Int, success bool) ([]byte, error) {
	return smartcontract.CreateCallWithAssertScript(c.hash, "resolveWithdrawal", id, success)
}

// ResolveWithdrawal creates a transaction invoking `resolveWithdrawal` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) ResolveWithdrawal(id *big.Int, success bool) (util.Uint256, uint32, error) {
	script, err := c.scriptForResolveWithdrawal(id, success)
	if err != nil {
		return util.Uint256{}, 0, err
	}
	return c.actor.SendRun(script)
}

// ResolveWithdrawalTransaction creates a transaction invoking `resolveWithdrawal` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) ResolveWithdrawalTransaction(id *big.Int, success bool) (*transaction.Transaction, error) {
	script, err := c.scriptForResolveWithdrawal(id, success)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeRun(script)
}

// ResolveWithdrawalUnsigned creates a transaction invoking `resolveWithdrawal` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) ResolveWithdrawalUnsigned(id *big.Int, success bool) (*transaction.Transaction, error) {
	script, err := c.scriptForResolveWithdrawal(id, success)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeUnsignedRun(script, nil)
}

// SetFee creates a transaction invoking `setFee` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) SetFee(fee *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "setFee", fee)
}

// SetFeeTransaction creates a transaction invoking `setFee` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) SetFeeTransaction(fee *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "setFee", fee)
}

// SetFeeUnsigned creates a transaction invoking `setFee` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) SetFeeUnsigned(fee *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "setFee", nil, fee)
}

// SetMinDeposit creates a transaction invoking `setMinDeposit` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) SetMinDeposit(amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "setMinDeposit", amount)
}

// SetMinDepositTransaction creates a transaction invoking `setMinDeposit` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) SetMinDepositTransaction(amount *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "setMinDeposit", amount)
}

// SetMinDepositUnsigned creates a transaction invoking `setMinDeposit` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) SetMinDepositUnsigned(amount *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "setMinDeposit", nil, amount)
}

// SetPaused creates a transaction invoking `setPaused` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) SetPaused(paused bool) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "setPaused", paused)
}

// SetPausedTransaction creates a transaction invoking `setPaused` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) SetPausedTransaction(paused bool) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "setPaused", paused)
}

// SetPausedUnsigned creates a transaction invoking `setPaused` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) SetPausedUnsigned(paused bool) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "setPaused", nil, paused)
}

// Update creates a transaction invoking `update` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Update(nefFile []byte, manifest []byte, data any) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "update", nefFile, manifest, data)
}

// UpdateTransaction creates a transaction invoking `update` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) UpdateTransaction(nefFile []byte, manifest []byte, data any) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "update", nefFile, manifest, data)
}

// UpdateUnsigned creates a transaction invoking `update` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) UpdateUnsigned(nefFile []byte, manifest []byte, data any) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "update", nil, nefFile, manifest, data)
}

// Withdraw creates a transaction invoking `withdraw` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Withdraw(account util.Uint160, amount *big.Int, recipient util.Uint160) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "withdraw", account, amount, recipient)
}

// WithdrawTransaction creates a transaction invoking `withdraw` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) WithdrawTransaction(account util.Uint160, amount *big.Int, recipient util.Uint160) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "withdraw", account, amount, recipient)
}

// WithdrawUnsigned creates a transaction invoking `withdraw` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) WithdrawUnsigned(account util.Uint160, amount *big.Int, recipient util.Uint160) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "withdraw", nil, account, amount, recipient)
}

// itemToPaymentStream converts stack item into *PaymentStream.
func itemToPaymentStream(item stackitem.Item, err error) (*PaymentStream, error) {
	if err != nil {
		return nil, err
	}
	if _, ok := item.(stackitem.Null); ok {
		return nil, nil
	}
	var res = new(PaymentStream)
	err = res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of PaymentStream from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *PaymentStream) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 7 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	res.Issuer, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Issuer: %w", err)
	}

	index++
	res.Receiver, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Receiver: %w", err)
	}

	index++
	res.Total, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Total: %w", err)
	}

	index++
	res.Rate, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Rate: %w", err)
	}

	index++
	res.Period, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Period: %w", err)
	}

	index++
	res.Started, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Started: %w", err)
	}

	index++
	res.Claimed, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Claimed: %w", err)
	}

	return nil
}

// itemToPaymentWithdrawal converts stack item into *PaymentWithdrawal.
func itemToPaymentWithdrawal(item stackitem.Item, err error) (*PaymentWithdrawal, error) {
	if err != nil {
		return nil, err
	}
	if _, ok := item.(stackitem.Null); ok {
		return nil, nil
	}
	var res = new(PaymentWithdrawal)
	err = res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of PaymentWithdrawal from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *PaymentWithdrawal) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 6 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	res.Account, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Account: %w", err)
	}

	index++
	res.Recipient, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Recipient: %w", err)
	}

	index++
	res.Amount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	index++
	res.Fee, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Fee: %w", err)
	}

	index++
	res.Status, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Status: %w", err)
	}

	index++
	res.Created, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Created: %w", err)
	}

	return nil
}

// DepositedEventsFromApplicationLog retrieves a set of all emitted events
// with "Deposited" name from the provided [result.ApplicationLog].
func DepositedEventsFromApplicationLog(log *result.ApplicationLog) ([]*DepositedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*DepositedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "Deposited" {
				continue
			}
			event := new(DepositedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize DepositedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to DepositedEvent or
// returns an error if it's not possible to do to so.
func (e *DepositedEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 3 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.Account, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Account: %w", err)
	}

	index++
	e.Amount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	index++
	e.Timestamp, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Timestamp: %w", err)
	}

	return nil
}

// WithdrawalInitiatedEventsFromApplicationLog retrieves a set of all emitted events
// with "WithdrawalInitiated" name from the provided [result.ApplicationLog].
func WithdrawalInitiatedEventsFromApplicationLog(log *result.ApplicationLog) ([]*WithdrawalInitiatedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*WithdrawalInitiatedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "WithdrawalInitiated" {
				continue
			}
			event := new(WithdrawalInitiatedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize WithdrawalInitiatedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to WithdrawalInitiatedEvent or
// returns an error if it's not possible to do to so.
func (e *WithdrawalInitiatedEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 4 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.ID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ID: %w", err)
	}

	index++
	e.Account, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Account: %w", err)
	}

	index++
	e.Recipient, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Recipient: %w", err)
	}

	index++
	e.Amount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	return nil
}

// WithdrawalSettledEventsFromApplicationLog retrieves a set of all emitted events
// with "WithdrawalSettled" name from the provided [result.ApplicationLog].
func WithdrawalSettledEventsFromApplicationLog(log *result.ApplicationLog) ([]*WithdrawalSettledEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*WithdrawalSettledEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "WithdrawalSettled" {
				continue
			}
			event := new(WithdrawalSettledEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize WithdrawalSettledEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to WithdrawalSettledEvent or
// returns an error if it's not possible to do to so.
func (e *WithdrawalSettledEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 3 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.ID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ID: %w", err)
	}

	index++
	e.Account, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Account: %w", err)
	}

	index++
	e.Amount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	return nil
}

// WithdrawalRevertedEventsFromApplicationLog retrieves a set of all emitted events
// with "WithdrawalReverted" name from the provided [result.ApplicationLog].
func WithdrawalRevertedEventsFromApplicationLog(log *result.ApplicationLog) ([]*WithdrawalRevertedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*WithdrawalRevertedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "WithdrawalReverted" {
				continue
			}
			event := new(WithdrawalRevertedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize WithdrawalRevertedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to WithdrawalRevertedEvent or
// returns an error if it's not possible to do to so.
func (e *WithdrawalRevertedEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 3 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.ID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ID: %w", err)
	}

	index++
	e.Account, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Account: %w", err)
	}

	index++
	e.Amount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	return nil
}

// PauseChangedEventsFromApplicationLog retrieves a set of all emitted events
// with "PauseChanged" name from the provided [result.ApplicationLog].
func PauseChangedEventsFromApplicationLog(log *result.ApplicationLog) ([]*PauseChangedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*PauseChangedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "PauseChanged" {
				continue
			}
			event := new(PauseChangedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize PauseChangedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to PauseChangedEvent or
// returns an error if it's not possible to do to so.
func (e *PauseChangedEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 1 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.Paused, err = arr[index].TryBool()
	if err != nil {
		return fmt.Errorf("field Paused: %w", err)
	}

	return nil
}

// ConfigChangedEventsFromApplicationLog retrieves a set of all emitted events
// with "ConfigChanged" name from the provided [result.ApplicationLog].
func ConfigChangedEventsFromApplicationLog(log *result.ApplicationLog) ([]*ConfigChangedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*ConfigChangedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "ConfigChanged" {
				continue
			}
			event := new(ConfigChangedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize ConfigChangedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to ConfigChangedEvent or
// returns an error if it's not possible to do to so.
func (e *ConfigChangedEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 2 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.Key, err = func (item stackitem.Item) (string, error) {
		b, err := item.TryBytes()
		if err != nil {
			return "", err
		}
		if !utf8.Valid(b) {
			return "", errors.New("not a UTF-8 string")
		}
		return string(b), nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Key: %w", err)
	}

	index++
	e.Value, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Value: %w", err)
	}

	return nil
}

// StreamCreatedEventsFromApplicationLog retrieves a set of all emitted events
// with "StreamCreated" name from the provided [result.ApplicationLog].
func StreamCreatedEventsFromApplicationLog(log *result.ApplicationLog) ([]*StreamCreatedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*StreamCreatedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "StreamCreated" {
				continue
			}
			event := new(StreamCreatedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize StreamCreatedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to StreamCreatedEvent or
// returns an error if it's not possible to do to so.
func (e *StreamCreatedEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 4 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.ID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ID: %w", err)
	}

	index++
	e.Issuer, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Issuer: %w", err)
	}

	index++
	e.Receiver, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Receiver: %w", err)
	}

	index++
	e.Amount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	return nil
}

// StreamApprovedEventsFromApplicationLog retrieves a set of all emitted events
// with "StreamApproved" name from the provided [result.ApplicationLog].
func StreamApprovedEventsFromApplicationLog(log *result.ApplicationLog) ([]*StreamApprovedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*StreamApprovedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "StreamApproved" {
				continue
			}
			event := new(StreamApprovedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize StreamApprovedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to StreamApprovedEvent or
// returns an error if it's not possible to do to so.
func (e *StreamApprovedEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 3 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.ID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ID: %w", err)
	}

	index++
	e.Receiver, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Receiver: %w", err)
	}

	index++
	e.Timestamp, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Timestamp: %w", err)
	}

	return nil
}

// StreamClaimedEventsFromApplicationLog retrieves a set of all emitted events
// with "StreamClaimed" name from the provided [result.ApplicationLog].
func StreamClaimedEventsFromApplicationLog(log *result.ApplicationLog) ([]*StreamClaimedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*StreamClaimedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "StreamClaimed" {
				continue
			}
			event := new(StreamClaimedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize StreamClaimedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to StreamClaimedEvent or
// returns an error if it's not possible to do to so.
func (e *StreamClaimedEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 3 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.ID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ID: %w", err)
	}

	index++
	e.Receiver, err = func (item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	} (arr[index])
	if err != nil {
		return fmt.Errorf("field Receiver: %w", err)
	}

	index++
	e.Amount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	return nil
}

// StreamCancelledEventsFromApplicationLog retrieves a set of all emitted events
// with "StreamCancelled" name from the provided [result.ApplicationLog].
func StreamCancelledEventsFromApplicationLog(log *result.ApplicationLog) ([]*StreamCancelledEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*StreamCancelledEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "StreamCancelled" {
				continue
			}
			event := new(StreamCancelledEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize StreamCancelledEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to StreamCancelledEvent or
// returns an error if it's not possible to do to so.
func (e *StreamCancelledEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 3 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err error
	)
	index++
	e.ID, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ID: %w", err)
	}

	index++
	e.IssuerAmount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field IssuerAmount: %w", err)
	}

	index++
	e.ReceiverAmount, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field ReceiverAmount: %w", err)
	}

	return nil
}
