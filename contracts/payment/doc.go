/*
Package payment implements Payment contract which receives GAS payments and
keeps a ledger of account balances.

Any account sends GAS to the contract with a regular NEP-17 transfer. The
transferred amount must exceed the configured minimum deposit, then the sender
ledger balance is credited. Account holders withdraw their balance to any
recipient. Withdrawal is a two-phase process: Withdraw debits the ledger and
moves the payout to the processor account, the processor transfers GAS to the
recipient and reports the result with ResolveWithdrawal. A failed payout
returns the escrow and restores the account balance.

Account holders can also stream a part of their balance to another account.
CreateStream locks the amount, the receiver approves the stream and claims
rate every period afterwards. Either side can cancel the stream: the released
part goes to the receiver and the rest returns to the issuer.

Contract owner can suspend deposits and withdrawals, change minimum deposit
and withdrawal fee. Resolution of initiated withdrawals is never suspended.

# Contract notifications

Deposited notification. This notification is produced when the ledger account
is credited with the transferred GAS.

	Deposited:
	  - name: account
	    type: Hash160
	  - name: amount
	    type: Integer
	  - name: timestamp
	    type: Integer

WithdrawalInitiated notification. This notification is produced when the
account is debited and the payout is handed to the processor. Processor
catches the notification and transfers GAS to the recipient.

	WithdrawalInitiated:
	  - name: id
	    type: Integer
	  - name: account
	    type: Hash160
	  - name: recipient
	    type: Hash160
	  - name: amount
	    type: Integer

WithdrawalSettled notification. This notification is produced when the
processor confirms the payout.

	WithdrawalSettled:
	  - name: id
	    type: Integer
	  - name: account
	    type: Hash160
	  - name: amount
	    type: Integer

WithdrawalReverted notification. This notification is produced when the payout
failed and the account is credited back.

	WithdrawalReverted:
	  - name: id
	    type: Integer
	  - name: account
	    type: Hash160
	  - name: amount
	    type: Integer

PauseChanged notification.

	PauseChanged:
	  - name: paused
	    type: Boolean

StreamCreated notification. This notification is produced when the amount is
locked for the receiver.

	StreamCreated:
	  - name: id
	    type: Integer
	  - name: issuer
	    type: Hash160
	  - name: receiver
	    type: Hash160
	  - name: amount
	    type: Integer

StreamApproved notification.

	StreamApproved:
	  - name: id
	    type: Integer
	  - name: receiver
	    type: Hash160
	  - name: timestamp
	    type: Integer

StreamClaimed notification.

	StreamClaimed:
	  - name: id
	    type: Integer
	  - name: receiver
	    type: Hash160
	  - name: amount
	    type: Integer

StreamCancelled notification. Amounts are credited to the issuer and the
receiver respectively.

	StreamCancelled:
	  - name: id
	    type: Integer
	  - name: issuerAmount
	    type: Integer
	  - name: receiverAmount
	    type: Integer

ConfigChanged notification. This notification is produced when the owner
changes minimum deposit ('minDeposit') or withdrawal fee ('fee').

	ConfigChanged:
	  - name: key
	    type: String
	  - name: value
	    type: Integer
*/
package payment

/*
Contract storage model.

# Summary
Key-value storage format:
  - 'o' -> interop.Hash160
    contract owner
  - 'r' -> interop.Hash160
    processor performing payouts
  - 'm' -> int
    minimum deposit (exclusive)
  - 'f' -> int
    withdrawal fee in basis points
  - 's' -> bool
    pause flag
  - 'k' -> bool
    retain resolved withdrawal records
  - 'n' -> int
    identifier of the last withdrawal
  - 'd', 'e', 'l' -> int
    total deposited, total settled payouts and the sum of all balances
  - 'g' -> int
    identifier of the withdrawal being reverted, exists only within the
    resolving invocation
  - 'a'<interop.Hash160> -> int
    ledger balance, missing key means zero
  - 'w'<id> -> std.Serialize(Withdrawal)
    withdrawal records
  - 'p'<id> -> int
    index of pending withdrawals
  - 'i'<interop.Hash160><id> -> int
    index of withdrawals by account
  - 'q' -> int
    identifier of the last stream
  - 'b' -> int
    sum of amounts held by open streams
  - 't'<id> -> std.Serialize(Stream)
    open streams
  - 'x'<interop.Hash160><id> -> int
    index of open streams by issuer and receiver

Identifiers are little-endian integers as produced by convert.ToBytes.

# Accounting
Sum of 'a' values always equals 'l' and the sum of unclaimed stream amounts
equals 'b'. 'l' plus 'b' never exceeds 'd' minus 'e': the difference is held
by pending withdrawals.
*/
