package paymentconst

// Withdrawal statuses.
const (
	StatusPending  = 1
	StatusSettled  = 2
	StatusReverted = 3
)

// Storage layout of the payment contract. Prefixed keys are followed by the
// 20-byte account and/or the little-endian request identifier.
const (
	BalancePrefix      = 'a'
	WithdrawalPrefix   = 'w'
	PendingPrefix      = 'p'
	AccountIndexPrefix = 'i'
	StreamPrefix       = 't'
	StreamIndexPrefix  = 'x'

	OwnerKey       = 'o'
	ProcessorKey   = 'r'
	MinDepositKey  = 'm'
	PausedKey      = 's'
	FeeKey         = 'f'
	RetainKey      = 'k'
	LastIDKey      = 'n'
	DepositedKey   = 'd'
	SettledKey     = 'e'
	LiabilitiesKey = 'l'
	RefundKey      = 'g'
	LastStreamKey  = 'q'
	LockedKey      = 'b'
)

const (
	// MaxFee is an exclusive upper bound of the withdrawal fee in basis points.
	MaxFee = 10000

	// EscrowReturnData is attached to the GAS transfer returning escrowed
	// payout back to the contract.
	EscrowReturnData = "escrow-return"
)
