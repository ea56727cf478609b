package common

// Exception messages thrown by the payment contract. Clients match
// them as substrings of the FAULT exception.
const (
	// ErrInsufficientBalance is thrown when a debit exceeds the ledger balance.
	ErrInsufficientBalance = "insufficient balance"
	// ErrDepositTooSmall is thrown when attached GAS does not exceed the
	// configured minimum deposit.
	ErrDepositTooSmall = "deposit too small"
	// ErrContractPaused is thrown by deposits and withdrawals while the
	// contract is paused.
	ErrContractPaused = "contract is paused"
	// ErrUnauthorized prefixes every witness failure.
	ErrUnauthorized = "unauthorized"

	// ErrInvalidWithdrawal prefixes withdrawal argument validation failures.
	ErrInvalidWithdrawal = "invalid withdrawal"
	// ErrInvalidRecipient is thrown for malformed payout recipients.
	ErrInvalidRecipient = ErrInvalidWithdrawal + ": recipient"
	// ErrInvalidAmount is thrown for non-positive withdrawal amounts.
	ErrInvalidAmount = ErrInvalidWithdrawal + ": amount must be positive"

	// ErrDuplicateCallback is logged when a resolution arrives for an
	// already resolved withdrawal.
	ErrDuplicateCallback = "duplicate callback"
	// ErrUnknownWithdrawal is thrown for request identifiers that were
	// never issued.
	ErrUnknownWithdrawal = "unknown withdrawal"
	// ErrCompensationFailed is thrown when the escrowed payout can't be
	// returned to the contract. The withdrawal stays pending.
	ErrCompensationFailed = "failed to return escrow"
	// ErrEscrowFailed is thrown when the payout can't be moved to the
	// processor account.
	ErrEscrowFailed = "failed to transfer payout to escrow"
	// ErrInvalidSender is thrown for deposits without a sender account.
	ErrInvalidSender = "invalid deposit sender"

	// ErrInvalidStream prefixes stream argument validation failures.
	ErrInvalidStream = "invalid stream"
	// ErrInvalidStreamReceiver is thrown for malformed stream receivers.
	ErrInvalidStreamReceiver = ErrInvalidStream + ": receiver"
	// ErrInvalidStreamSchedule is thrown when the amount, rate or period is
	// not positive or the amount is not a multiple of the rate.
	ErrInvalidStreamSchedule = ErrInvalidStream + ": schedule"
	// ErrUnknownStream is thrown for closed or never created streams.
	ErrUnknownStream = "unknown stream"
	// ErrStreamApproved is thrown on repeated approval.
	ErrStreamApproved = "stream is already approved"
	// ErrStreamNotApproved is thrown on claims before the receiver approval.
	ErrStreamNotApproved = "stream is not approved"
)
