package payment

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/convert"
	"github.com/nspcc-dev/neo-go/pkg/interop/iterator"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/gas"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
	"github.com/nspcc-dev/payment-contract/common"
	"github.com/nspcc-dev/payment-contract/contracts/payment/paymentconst"
)

// Withdrawal is a record of the payout requested by the account holder.
type Withdrawal struct {
	// Ledger account the amount was debited from
	Account interop.Hash160
	// Receiver of the payout
	Recipient interop.Hash160
	// Debited amount including fee
	Amount int
	// Part of the amount kept by the contract owner on settlement
	Fee int
	// One of paymentconst.Status* values
	Status int
	// Block timestamp of the request in milliseconds
	Created int
}

// Stream is a directed payment locked from the issuer ledger balance and
// released to the receiver by equal parts every period after approval.
type Stream struct {
	Issuer   interop.Hash160
	Receiver interop.Hash160
	// Locked amount, a multiple of Rate
	Total int
	// Amount released every period
	Rate int
	// Period length in milliseconds
	Period int
	// Block timestamp of the approval, zero until approved
	Started int
	// Part of the total already credited to the receiver
	Claimed int
}

const zeroHash = "\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"

// nolint:deadcode,unused
func _deploy(data any, isUpdate bool) {
	if isUpdate {
		args := data.([]any)
		common.CheckVersion(args[len(args)-1].(int))
		return
	}

	args := data.(struct {
		owner      interop.Hash160
		processor  interop.Hash160
		minDeposit int
		fee        int
		retain     bool
	})

	if len(args.owner) != interop.Hash160Len {
		panic("incorrect length of owner address")
	}

	if len(args.processor) != interop.Hash160Len {
		panic("incorrect length of processor address")
	}

	if args.minDeposit < 0 {
		panic("minimum deposit must not be negative")
	}

	checkFee(args.fee)

	ctx := storage.GetContext()

	storage.Put(ctx, paymentconst.OwnerKey, args.owner)
	storage.Put(ctx, paymentconst.ProcessorKey, args.processor)
	storage.Put(ctx, paymentconst.MinDepositKey, args.minDeposit)
	storage.Put(ctx, paymentconst.FeeKey, args.fee)
	storage.Put(ctx, paymentconst.PausedKey, false)
	storage.Put(ctx, paymentconst.RetainKey, args.retain)

	runtime.Log("payment contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by the contract owner.
func Update(nefFile, manifest []byte, data any) {
	ctx := storage.GetReadOnlyContext()

	if !common.HasUpdateAccess(getOwner(ctx)) {
		panic(common.ErrOwnerWitnessFailed)
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, nefFile, manifest, common.AppendVersion(data))
	runtime.Log("payment contract updated")
}

// OnNEP17Payment is a callback for NEP-17 compatible native GAS contract. It
// credits the sender ledger account with the transferred amount. Transfers
// not exceeding the minimum deposit are rejected and the whole transfer fails.
//
// Returned escrow is accepted from the processor only while ResolveWithdrawal
// is in progress and does not credit anyone.
func OnNEP17Payment(from interop.Hash160, amount int, data any) {
	caller := runtime.GetCallingScriptHash()
	if !caller.Equals(gas.Hash) {
		common.AbortWithMessage("payment contract accepts GAS only")
	}

	ctx := storage.GetContext()

	if storage.Get(ctx, paymentconst.RefundKey) != nil && from.Equals(getProcessor(ctx)) {
		runtime.Log("escrow has been returned")
		return
	}

	if len(from) != interop.Hash160Len {
		panic(common.ErrInvalidSender)
	}

	checkNotPaused(ctx)

	if amount <= common.GetInt(ctx, paymentconst.MinDepositKey) {
		panic(common.ErrDepositTooSmall)
	}

	credit(ctx, from, amount)
	common.AddInt(ctx, paymentconst.DepositedKey, amount)

	runtime.Notify("Deposited", from, amount, runtime.GetTime())
}

// Withdraw debits the account and starts asynchronous payout of the amount
// to the recipient. It can be invoked only by the account holder. Returns
// identifier of the withdrawal request.
//
// The payout minus fee is moved to the processor account which transfers it
// to the recipient and reports the result via ResolveWithdrawal.
//
// This method produces WithdrawalInitiated notification.
func Withdraw(account interop.Hash160, amount int, recipient interop.Hash160) int {
	if !isAuthorized(account) {
		panic(common.ErrWitnessFailed)
	}

	ctx := storage.GetContext()

	checkNotPaused(ctx)

	if amount <= 0 {
		panic(common.ErrInvalidAmount)
	}

	self := runtime.GetExecutingScriptHash()
	if len(recipient) != interop.Hash160Len || recipient.Equals(zeroHash) || recipient.Equals(self) {
		panic(common.ErrInvalidRecipient)
	}

	// debit goes first: a concurrent request must see the reduced balance
	debit(ctx, account, amount)

	fee := amount * common.GetInt(ctx, paymentconst.FeeKey) / 10000
	id := common.AddInt(ctx, paymentconst.LastIDKey, 1)

	common.SetSerialized(ctx, withdrawalKey(id), Withdrawal{
		Account:   account,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		Status:    paymentconst.StatusPending,
		Created:   runtime.GetTime(),
	})
	storage.Put(ctx, pendingKey(id), id)
	storage.Put(ctx, accountIndexKey(account, id), id)

	if !gas.Transfer(self, getProcessor(ctx), amount-fee, nil) {
		panic(common.ErrEscrowFailed)
	}

	runtime.Notify("WithdrawalInitiated", id, account, recipient, amount)

	return id
}

// ResolveWithdrawal finalizes the withdrawal with the payout result. It can be
// invoked only by the processor, including the time the contract is paused.
//
// Successful payout settles the withdrawal. Failed payout returns escrow from
// the processor and re-credits the account with the whole amount. Returns false
// if the withdrawal has already been resolved.
//
// This method produces WithdrawalSettled or WithdrawalReverted notification.
func ResolveWithdrawal(id int, success bool) bool {
	ctx := storage.GetContext()

	processor := getProcessor(ctx)
	common.CheckProcessorWitness(processor)

	if id <= 0 || id > common.GetInt(ctx, paymentconst.LastIDKey) {
		panic(common.ErrUnknownWithdrawal)
	}

	key := withdrawalKey(id)

	data := storage.Get(ctx, key)
	if data == nil {
		runtime.Log(common.ErrDuplicateCallback)
		return false
	}

	w := std.Deserialize(data.([]byte)).(Withdrawal)
	if w.Status != paymentconst.StatusPending {
		runtime.Log(common.ErrDuplicateCallback)
		return false
	}

	payout := w.Amount - w.Fee

	if success {
		w.Status = paymentconst.StatusSettled

		common.AddInt(ctx, paymentconst.SettledKey, payout)
		if w.Fee > 0 {
			credit(ctx, getOwner(ctx), w.Fee)
		}

		runtime.Notify("WithdrawalSettled", id, w.Account, w.Amount)
	} else {
		storage.Put(ctx, paymentconst.RefundKey, id)

		if !gas.Transfer(processor, runtime.GetExecutingScriptHash(), payout, paymentconst.EscrowReturnData) {
			panic(common.ErrCompensationFailed)
		}

		storage.Delete(ctx, paymentconst.RefundKey)

		credit(ctx, w.Account, w.Amount)
		w.Status = paymentconst.StatusReverted

		runtime.Notify("WithdrawalReverted", id, w.Account, w.Amount)
	}

	storage.Delete(ctx, pendingKey(id))

	if storage.Get(ctx, paymentconst.RetainKey).(bool) {
		common.SetSerialized(ctx, key, w)
	} else {
		storage.Delete(ctx, key)
		storage.Delete(ctx, accountIndexKey(w.Account, id))
	}

	return true
}

// CreateStream locks the amount from the issuer ledger balance for the
// receiver. After the receiver approves the stream, rate is released every
// period until the whole amount is claimed. It can be invoked only by the
// issuer. Returns identifier of the stream.
//
// This method produces StreamCreated notification.
func CreateStream(issuer, receiver interop.Hash160, amount, rate, period int) int {
	if !isAuthorized(issuer) {
		panic(common.ErrWitnessFailed)
	}

	ctx := storage.GetContext()

	checkNotPaused(ctx)

	if amount <= 0 || rate <= 0 || period <= 0 || amount%rate != 0 {
		panic(common.ErrInvalidStreamSchedule)
	}

	if len(receiver) != interop.Hash160Len || receiver.Equals(zeroHash) ||
		receiver.Equals(issuer) || receiver.Equals(runtime.GetExecutingScriptHash()) {
		panic(common.ErrInvalidStreamReceiver)
	}

	debit(ctx, issuer, amount)
	common.AddInt(ctx, paymentconst.LockedKey, amount)

	id := common.AddInt(ctx, paymentconst.LastStreamKey, 1)

	common.SetSerialized(ctx, streamKey(id), Stream{
		Issuer:   issuer,
		Receiver: receiver,
		Total:    amount,
		Rate:     rate,
		Period:   period,
	})
	storage.Put(ctx, streamIndexKey(issuer, id), id)
	storage.Put(ctx, streamIndexKey(receiver, id), id)

	runtime.Notify("StreamCreated", id, issuer, receiver, amount)

	return id
}

// ApproveStream starts the release schedule of the stream. It can be invoked
// only by the stream receiver and only once.
//
// This method produces StreamApproved notification.
func ApproveStream(id int) {
	ctx := storage.GetContext()
	s := getStream(ctx, id)

	if !isAuthorized(s.Receiver) {
		panic(common.ErrWitnessFailed)
	}

	if s.Started != 0 {
		panic(common.ErrStreamApproved)
	}

	s.Started = runtime.GetTime()
	common.SetSerialized(ctx, streamKey(id), s)

	runtime.Notify("StreamApproved", id, s.Receiver, s.Started)
}

// ClaimStream credits the receiver ledger account with the part of the stream
// released so far and not claimed yet. It can be invoked only by the stream
// receiver. The stream is closed once the whole amount is claimed. Returns
// the credited amount.
//
// This method produces StreamClaimed notification if the amount is positive.
func ClaimStream(id int) int {
	ctx := storage.GetContext()
	s := getStream(ctx, id)

	if !isAuthorized(s.Receiver) {
		panic(common.ErrWitnessFailed)
	}

	if s.Started == 0 {
		panic(common.ErrStreamNotApproved)
	}

	amount := released(s, runtime.GetTime()) - s.Claimed
	if amount == 0 {
		return 0
	}

	s.Claimed += amount
	unlock(ctx, s.Receiver, amount)

	if s.Claimed == s.Total {
		closeStream(ctx, id, s)
	} else {
		common.SetSerialized(ctx, streamKey(id), s)
	}

	runtime.Notify("StreamClaimed", id, s.Receiver, amount)

	return amount
}

// CancelStream closes the stream. It can be invoked by the issuer or the
// receiver. The released but unclaimed part is credited to the receiver, the
// rest returns to the issuer. Unapproved streams return to the issuer whole.
//
// This method produces StreamCancelled notification.
func CancelStream(id int) {
	ctx := storage.GetContext()
	s := getStream(ctx, id)

	if !isAuthorized(s.Issuer) && !isAuthorized(s.Receiver) {
		panic(common.ErrWitnessFailed)
	}

	var toReceiver int
	if s.Started != 0 {
		toReceiver = released(s, runtime.GetTime()) - s.Claimed
	}
	toIssuer := s.Total - s.Claimed - toReceiver

	if toReceiver > 0 {
		unlock(ctx, s.Receiver, toReceiver)
	}
	if toIssuer > 0 {
		unlock(ctx, s.Issuer, toIssuer)
	}

	closeStream(ctx, id, s)

	runtime.Notify("StreamCancelled", id, toIssuer, toReceiver)
}

// BalanceOf returns ledger balance of the account. Unknown accounts have
// zero balance.
func BalanceOf(account interop.Hash160) int {
	ctx := storage.GetReadOnlyContext()
	return common.GetInt(ctx, balanceKey(account))
}

// GetWithdrawal returns withdrawal record by its identifier or null if there
// is no such record. Records of resolved withdrawals are available only if the
// contract retains them.
func GetWithdrawal(id int) any {
	ctx := storage.GetReadOnlyContext()

	data := storage.Get(ctx, withdrawalKey(id))
	if data == nil {
		return nil
	}

	return std.Deserialize(data.([]byte)).(Withdrawal)
}

// WithdrawalsOf returns iterator over identifiers of the account withdrawals.
func WithdrawalsOf(account interop.Hash160) iterator.Iterator {
	if len(account) != interop.Hash160Len {
		panic("incorrect length of account address")
	}

	ctx := storage.GetReadOnlyContext()
	prefix := append([]byte{paymentconst.AccountIndexPrefix}, account...)

	return storage.Find(ctx, prefix, storage.ValuesOnly)
}

// PendingWithdrawals returns iterator over identifiers of unresolved withdrawals.
func PendingWithdrawals() iterator.Iterator {
	ctx := storage.GetReadOnlyContext()
	return storage.Find(ctx, []byte{paymentconst.PendingPrefix}, storage.ValuesOnly)
}

// LastWithdrawalID returns the identifier of the latest withdrawal or zero.
func LastWithdrawalID() int {
	return common.GetInt(storage.GetReadOnlyContext(), paymentconst.LastIDKey)
}

// TotalDeposited returns the sum of all accepted deposits.
func TotalDeposited() int {
	return common.GetInt(storage.GetReadOnlyContext(), paymentconst.DepositedKey)
}

// TotalSettled returns the sum of all settled payouts.
func TotalSettled() int {
	return common.GetInt(storage.GetReadOnlyContext(), paymentconst.SettledKey)
}

// Liabilities returns the sum of all ledger balances.
func Liabilities() int {
	return common.GetInt(storage.GetReadOnlyContext(), paymentconst.LiabilitiesKey)
}

// GetStream returns stream record by its identifier or null if the stream
// is closed or has never been created.
func GetStream(id int) any {
	ctx := storage.GetReadOnlyContext()

	data := storage.Get(ctx, streamKey(id))
	if data == nil {
		return nil
	}

	return std.Deserialize(data.([]byte)).(Stream)
}

// StreamsOf returns iterator over identifiers of open streams the account
// issued or receives.
func StreamsOf(account interop.Hash160) iterator.Iterator {
	if len(account) != interop.Hash160Len {
		panic("incorrect length of account address")
	}

	ctx := storage.GetReadOnlyContext()
	prefix := append([]byte{paymentconst.StreamIndexPrefix}, account...)

	return storage.Find(ctx, prefix, storage.ValuesOnly)
}

// LastStreamID returns the identifier of the latest stream or zero.
func LastStreamID() int {
	return common.GetInt(storage.GetReadOnlyContext(), paymentconst.LastStreamKey)
}

// Locked returns the sum of amounts held by open streams.
func Locked() int {
	return common.GetInt(storage.GetReadOnlyContext(), paymentconst.LockedKey)
}

// Owner returns the contract owner address.
func Owner() interop.Hash160 {
	return getOwner(storage.GetReadOnlyContext())
}

// Processor returns the address performing payouts.
func Processor() interop.Hash160 {
	return getProcessor(storage.GetReadOnlyContext())
}

// MinDeposit returns the amount a deposit must exceed.
func MinDeposit() int {
	return common.GetInt(storage.GetReadOnlyContext(), paymentconst.MinDepositKey)
}

// Fee returns withdrawal fee in basis points.
func Fee() int {
	return common.GetInt(storage.GetReadOnlyContext(), paymentconst.FeeKey)
}

// IsPaused returns true if deposits and withdrawals are suspended.
func IsPaused() bool {
	return isPaused(storage.GetReadOnlyContext())
}

// SetPaused suspends or resumes deposits and withdrawals. It can be invoked
// only by the contract owner. Pending withdrawals are resolved regardless.
//
// This method produces PauseChanged notification.
func SetPaused(paused bool) {
	ctx := storage.GetContext()
	common.CheckOwnerWitness(getOwner(ctx))

	storage.Put(ctx, paymentconst.PausedKey, paused)
	runtime.Notify("PauseChanged", paused)
}

// SetMinDeposit sets the amount a deposit must exceed. It can be invoked
// only by the contract owner.
//
// This method produces ConfigChanged notification.
func SetMinDeposit(amount int) {
	if amount < 0 {
		panic("minimum deposit must not be negative")
	}

	ctx := storage.GetContext()
	common.CheckOwnerWitness(getOwner(ctx))

	storage.Put(ctx, paymentconst.MinDepositKey, amount)
	runtime.Notify("ConfigChanged", "minDeposit", amount)
}

// SetFee sets withdrawal fee in basis points. It can be invoked only by the
// contract owner. Already initiated withdrawals keep their fee.
//
// This method produces ConfigChanged notification.
func SetFee(fee int) {
	checkFee(fee)

	ctx := storage.GetContext()
	common.CheckOwnerWitness(getOwner(ctx))

	storage.Put(ctx, paymentconst.FeeKey, fee)
	runtime.Notify("ConfigChanged", "fee", fee)
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}

func checkFee(fee int) {
	if fee < 0 || fee >= paymentconst.MaxFee {
		panic("fee must be in [0, " + std.Itoa(paymentconst.MaxFee, 10) + ") basis points")
	}
}

func checkNotPaused(ctx storage.Context) {
	if isPaused(ctx) {
		panic(common.ErrContractPaused)
	}
}

func isPaused(ctx storage.Context) bool {
	return storage.Get(ctx, paymentconst.PausedKey).(bool)
}

// isAuthorized checks if the account is allowed to spend its balance within
// the current invocation.
func isAuthorized(account interop.Hash160) bool {
	if len(account) != interop.Hash160Len {
		return false
	}

	return runtime.CheckWitness(account) || account.Equals(runtime.GetCallingScriptHash())
}

func getOwner(ctx storage.Context) interop.Hash160 {
	return storage.Get(ctx, paymentconst.OwnerKey).(interop.Hash160)
}

func getProcessor(ctx storage.Context) interop.Hash160 {
	return storage.Get(ctx, paymentconst.ProcessorKey).(interop.Hash160)
}

func credit(ctx storage.Context, account interop.Hash160, amount int) {
	common.AddInt(ctx, balanceKey(account), amount)
	common.AddInt(ctx, paymentconst.LiabilitiesKey, amount)
}

func debit(ctx storage.Context, account interop.Hash160, amount int) {
	key := balanceKey(account)

	if common.GetInt(ctx, key) < amount {
		panic(common.ErrInsufficientBalance)
	}

	common.AddInt(ctx, key, -amount)
	common.AddInt(ctx, paymentconst.LiabilitiesKey, -amount)
}

func balanceKey(account interop.Hash160) []byte {
	return append([]byte{paymentconst.BalancePrefix}, account...)
}

func withdrawalKey(id int) []byte {
	return append([]byte{paymentconst.WithdrawalPrefix}, convert.ToBytes(id)...)
}

func pendingKey(id int) []byte {
	return append([]byte{paymentconst.PendingPrefix}, convert.ToBytes(id)...)
}

func accountIndexKey(account interop.Hash160, id int) []byte {
	key := append([]byte{paymentconst.AccountIndexPrefix}, account...)
	return append(key, convert.ToBytes(id)...)
}

// released returns the part of the approved stream available at the time.
func released(s Stream, now int) int {
	periods := (now - s.Started) / s.Period
	limit := s.Total / s.Rate
	if periods > limit {
		periods = limit
	}
	return periods * s.Rate
}

func unlock(ctx storage.Context, account interop.Hash160, amount int) {
	common.AddInt(ctx, paymentconst.LockedKey, -amount)
	credit(ctx, account, amount)
}

func getStream(ctx storage.Context, id int) Stream {
	data := storage.Get(ctx, streamKey(id))
	if data == nil {
		panic(common.ErrUnknownStream)
	}

	return std.Deserialize(data.([]byte)).(Stream)
}

func closeStream(ctx storage.Context, id int, s Stream) {
	storage.Delete(ctx, streamKey(id))
	storage.Delete(ctx, streamIndexKey(s.Issuer, id))
	storage.Delete(ctx, streamIndexKey(s.Receiver, id))
}

func streamKey(id int) []byte {
	return append([]byte{paymentconst.StreamPrefix}, convert.ToBytes(id)...)
}

func streamIndexKey(account interop.Hash160, id int) []byte {
	key := append([]byte{paymentconst.StreamIndexPrefix}, account...)
	return append(key, convert.ToBytes(id)...)
}
