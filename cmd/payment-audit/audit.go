package main

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/payment-contract/contracts/payment/paymentconst"
	"github.com/nspcc-dev/payment-contract/relay"
	"github.com/nspcc-dev/payment-contract/rpc/payment"
)

// ledgerState is the decoded storage of the payment contract.
type ledgerState struct {
	owner     util.Uint160
	processor util.Uint160

	minDeposit *big.Int
	fee        *big.Int
	paused     bool
	retain     bool
	refunding  bool

	lastID      *big.Int
	deposited   *big.Int
	settled     *big.Int
	liabilities *big.Int
	lastStream  *big.Int
	locked      *big.Int

	balances    map[util.Uint160]*big.Int
	withdrawals map[string]*payment.PaymentWithdrawal
	pending     map[string]struct{}
	// account index: account -> set of ids
	index   map[util.Uint160]map[string]struct{}
	streams map[string]*payment.PaymentStream
	// stream index: issuer or receiver -> set of ids
	streamIndex map[util.Uint160]map[string]struct{}
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		minDeposit:  new(big.Int),
		fee:         new(big.Int),
		lastID:      new(big.Int),
		deposited:   new(big.Int),
		settled:     new(big.Int),
		liabilities: new(big.Int),
		lastStream:  new(big.Int),
		locked:      new(big.Int),
		balances:    make(map[util.Uint160]*big.Int),
		withdrawals: make(map[string]*payment.PaymentWithdrawal),
		pending:     make(map[string]struct{}),
		index:       make(map[util.Uint160]map[string]struct{}),
		streams:     make(map[string]*payment.PaymentStream),
		streamIndex: make(map[util.Uint160]map[string]struct{}),
	}
}

// add decodes single storage item of the payment contract.
func (s *ledgerState) add(key, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("empty storage key")
	}

	var err error

	switch k, rest := key[0], key[1:]; {
	case len(rest) == 0:
		err = s.addConfig(k, value)
	case k == paymentconst.BalancePrefix:
		if len(rest) != util.Uint160Size {
			return fmt.Errorf("invalid balance key %x", key)
		}
		acc, _ := util.Uint160DecodeBytesBE(rest)
		s.balances[acc] = bigint.FromBytes(value)
	case k == paymentconst.WithdrawalPrefix:
		item, derr := stackitem.Deserialize(value)
		if derr != nil {
			return fmt.Errorf("withdrawal %s: %w", bigint.FromBytes(rest), derr)
		}
		w := new(payment.PaymentWithdrawal)
		err = w.FromStackItem(item)
		s.withdrawals[bigint.FromBytes(rest).String()] = w
	case k == paymentconst.PendingPrefix:
		if bigint.FromBytes(rest).Cmp(bigint.FromBytes(value)) != 0 {
			return fmt.Errorf("pending index key %x does not match value %x", key, value)
		}
		s.pending[bigint.FromBytes(rest).String()] = struct{}{}
	case k == paymentconst.AccountIndexPrefix:
		err = addIndexed(s.index, rest)
	case k == paymentconst.StreamPrefix:
		item, derr := stackitem.Deserialize(value)
		if derr != nil {
			return fmt.Errorf("stream %s: %w", bigint.FromBytes(rest), derr)
		}
		st := new(payment.PaymentStream)
		err = st.FromStackItem(item)
		s.streams[bigint.FromBytes(rest).String()] = st
	case k == paymentconst.StreamIndexPrefix:
		err = addIndexed(s.streamIndex, rest)
	default:
		return fmt.Errorf("unexpected storage key %x", key)
	}

	if err != nil {
		return fmt.Errorf("decode storage item %x: %w", key, err)
	}

	return nil
}

func (s *ledgerState) addConfig(k byte, value []byte) error {
	var err error

	switch k {
	case paymentconst.OwnerKey:
		s.owner, err = util.Uint160DecodeBytesBE(value)
	case paymentconst.ProcessorKey:
		s.processor, err = util.Uint160DecodeBytesBE(value)
	case paymentconst.MinDepositKey:
		s.minDeposit = bigint.FromBytes(value)
	case paymentconst.FeeKey:
		s.fee = bigint.FromBytes(value)
	case paymentconst.PausedKey:
		s.paused = bigint.FromBytes(value).Sign() != 0
	case paymentconst.RetainKey:
		s.retain = bigint.FromBytes(value).Sign() != 0
	case paymentconst.RefundKey:
		s.refunding = true
	case paymentconst.LastIDKey:
		s.lastID = bigint.FromBytes(value)
	case paymentconst.DepositedKey:
		s.deposited = bigint.FromBytes(value)
	case paymentconst.SettledKey:
		s.settled = bigint.FromBytes(value)
	case paymentconst.LiabilitiesKey:
		s.liabilities = bigint.FromBytes(value)
	case paymentconst.LastStreamKey:
		s.lastStream = bigint.FromBytes(value)
	case paymentconst.LockedKey:
		s.locked = bigint.FromBytes(value)
	default:
		return fmt.Errorf("unexpected storage key %x", k)
	}

	return err
}

// addIndexed decodes <account><id> key suffix into the index.
func addIndexed(index map[util.Uint160]map[string]struct{}, rest []byte) error {
	if len(rest) <= util.Uint160Size {
		return fmt.Errorf("invalid index key suffix %x", rest)
	}
	acc, _ := util.Uint160DecodeBytesBE(rest[:util.Uint160Size])
	ids, ok := index[acc]
	if !ok {
		ids = make(map[string]struct{})
		index[acc] = ids
	}
	ids[bigint.FromBytes(rest[util.Uint160Size:]).String()] = struct{}{}
	return nil
}

type reportTotals struct {
	Deposited   string `yaml:"deposited"`
	Settled     string `yaml:"settled"`
	Liabilities string `yaml:"liabilities"`
	Balances    string `yaml:"balances"`
	Escrowed    string `yaml:"escrowed"`
	Locked      string `yaml:"locked"`
}

type reportStreams struct {
	Last     string `yaml:"last"`
	Open     int    `yaml:"open"`
	Approved int    `yaml:"approved"`
}

type reportWithdrawals struct {
	Last    string `yaml:"last"`
	Stored  int    `yaml:"stored"`
	Pending int    `yaml:"pending"`
}

type pendingWithdrawal struct {
	ID        string `yaml:"id"`
	Account   string `yaml:"account"`
	Recipient string `yaml:"recipient"`
	Amount    string `yaml:"amount"`
	Payout    string `yaml:"payout"`
	Reference string `yaml:"reference"`
}

// report is the audit result printed as YAML.
type report struct {
	Contract   string `yaml:"contract"`
	Height     uint32 `yaml:"height"`
	Version    string `yaml:"version,omitempty"`
	Owner      string `yaml:"owner"`
	Processor  string `yaml:"processor"`
	Paused     bool   `yaml:"paused"`
	Retain     bool   `yaml:"retain"`
	MinDeposit string `yaml:"minDeposit"`
	Fee        string `yaml:"fee"`

	Accounts    int               `yaml:"accounts"`
	Totals      reportTotals      `yaml:"totals"`
	Withdrawals reportWithdrawals `yaml:"withdrawals"`
	Streams     reportStreams     `yaml:"streams"`

	PendingWithdrawals []pendingWithdrawal `yaml:"pendingWithdrawals,omitempty"`
	Violations         []string            `yaml:"violations,omitempty"`
}

// audit checks accounting invariants of the decoded state and makes report.
func (s *ledgerState) audit(contract util.Uint160) *report {
	r := &report{
		Contract:   address.Uint160ToString(contract),
		Owner:      address.Uint160ToString(s.owner),
		Processor:  address.Uint160ToString(s.processor),
		Paused:     s.paused,
		Retain:     s.retain,
		MinDeposit: s.minDeposit.String(),
		Fee:        s.fee.String(),
		Accounts:   len(s.balances),
	}

	violate := func(format string, args ...any) {
		r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
	}

	balances := new(big.Int)
	for acc, b := range s.balances {
		if b.Sign() <= 0 {
			violate("non-positive balance %s of %s", b, address.Uint160ToString(acc))
		}
		balances.Add(balances, b)
	}

	if balances.Cmp(s.liabilities) != 0 {
		violate("sum of balances %s differs from liabilities %s", balances, s.liabilities)
	}

	escrowed := new(big.Int)

	for _, id := range sortedIDs(s.withdrawals) {
		w := s.withdrawals[id]
		n, _ := new(big.Int).SetString(id, 10)

		if n.Sign() <= 0 || n.Cmp(s.lastID) > 0 {
			violate("withdrawal %s is out of issued range [1, %s]", id, s.lastID)
		}

		if ids, ok := s.index[w.Account]; !ok {
			violate("withdrawal %s is missing in the index of %s", id, address.Uint160ToString(w.Account))
		} else if _, ok = ids[id]; !ok {
			violate("withdrawal %s is missing in the index of %s", id, address.Uint160ToString(w.Account))
		}

		_, isPending := s.pending[id]

		switch w.Status.Int64() {
		case paymentconst.StatusPending:
			if !isPending {
				violate("pending withdrawal %s is missing in the pending index", id)
			}

			escrowed.Add(escrowed, w.Amount)

			payout := new(big.Int).Sub(w.Amount, w.Fee)
			r.PendingWithdrawals = append(r.PendingWithdrawals, pendingWithdrawal{
				ID:        id,
				Account:   address.Uint160ToString(w.Account),
				Recipient: address.Uint160ToString(w.Recipient),
				Amount:    w.Amount.String(),
				Payout:    payout.String(),
				Reference: relay.PayoutReference(contract, n),
			})
		case paymentconst.StatusSettled, paymentconst.StatusReverted:
			if isPending {
				violate("resolved withdrawal %s is in the pending index", id)
			}
			if !s.retain {
				violate("resolved withdrawal %s is stored with retention disabled", id)
			}
		default:
			violate("withdrawal %s has unknown status %s", id, w.Status)
		}

		if w.Amount.Sign() <= 0 || w.Fee.Sign() < 0 || w.Fee.Cmp(w.Amount) >= 0 {
			violate("withdrawal %s has invalid amount %s or fee %s", id, w.Amount, w.Fee)
		}
	}

	for id := range s.pending {
		if _, ok := s.withdrawals[id]; !ok {
			violate("pending index refers to missing withdrawal %s", id)
		}
	}

	for acc, ids := range s.index {
		for id := range ids {
			w, ok := s.withdrawals[id]
			if !ok {
				violate("index of %s refers to missing withdrawal %s", address.Uint160ToString(acc), id)
			} else if !w.Account.Equals(acc) {
				violate("index of %s refers to withdrawal %s of %s", address.Uint160ToString(acc), id, address.Uint160ToString(w.Account))
			}
		}
	}

	unclaimed := new(big.Int)
	approved := 0

	for _, id := range sortedIDs(s.streams) {
		st := s.streams[id]
		n, _ := new(big.Int).SetString(id, 10)

		if n.Sign() <= 0 || n.Cmp(s.lastStream) > 0 {
			violate("stream %s is out of issued range [1, %s]", id, s.lastStream)
		}

		for _, acc := range []util.Uint160{st.Issuer, st.Receiver} {
			if _, ok := s.streamIndex[acc][id]; !ok {
				violate("stream %s is missing in the index of %s", id, address.Uint160ToString(acc))
			}
		}

		if st.Rate.Sign() <= 0 || st.Period.Sign() <= 0 || st.Total.Sign() <= 0 ||
			new(big.Int).Rem(st.Total, st.Rate).Sign() != 0 {
			violate("stream %s has invalid schedule: total %s, rate %s, period %s", id, st.Total, st.Rate, st.Period)
		}

		if st.Claimed.Sign() < 0 || st.Claimed.Cmp(st.Total) >= 0 {
			violate("stream %s has invalid claimed amount %s of %s", id, st.Claimed, st.Total)
		}

		if st.Started.Sign() == 0 && st.Claimed.Sign() != 0 {
			violate("unapproved stream %s has claimed amount %s", id, st.Claimed)
		}

		if st.Started.Sign() != 0 {
			approved++
		}

		unclaimed.Add(unclaimed, new(big.Int).Sub(st.Total, st.Claimed))
	}

	for acc, ids := range s.streamIndex {
		for id := range ids {
			st, ok := s.streams[id]
			if !ok {
				violate("stream index of %s refers to missing stream %s", address.Uint160ToString(acc), id)
			} else if !st.Issuer.Equals(acc) && !st.Receiver.Equals(acc) {
				violate("stream index of %s refers to foreign stream %s", address.Uint160ToString(acc), id)
			}
		}
	}

	if unclaimed.Cmp(s.locked) != 0 {
		violate("unclaimed stream amounts %s differ from locked %s", unclaimed, s.locked)
	}

	// every deposited unit is either owed, escrowed, locked or paid out
	outstanding := new(big.Int).Sub(s.deposited, s.settled)
	owed := new(big.Int).Add(s.liabilities, escrowed)
	if owed.Add(owed, s.locked).Cmp(outstanding) != 0 {
		violate("liabilities %s plus escrowed %s plus locked %s differ from deposited %s minus settled %s",
			s.liabilities, escrowed, s.locked, s.deposited, s.settled)
	}

	if s.refunding {
		violate("escrow return guard is left set")
	}

	r.Totals = reportTotals{
		Deposited:   s.deposited.String(),
		Settled:     s.settled.String(),
		Liabilities: s.liabilities.String(),
		Balances:    balances.String(),
		Escrowed:    escrowed.String(),
		Locked:      s.locked.String(),
	}
	r.Withdrawals = reportWithdrawals{
		Last:    s.lastID.String(),
		Stored:  len(s.withdrawals),
		Pending: len(s.pending),
	}
	r.Streams = reportStreams{
		Last:     s.lastStream.String(),
		Open:     len(s.streams),
		Approved: approved,
	}

	sort.Strings(r.Violations)

	return r
}

func sortedIDs[T any](m map[string]T) []string {
	res := make([]string, 0, len(m))
	for id := range m {
		res = append(res, id)
	}

	sort.Slice(res, func(i, j int) bool {
		if len(res[i]) != len(res[j]) {
			return len(res[i]) < len(res[j])
		}
		return res[i] < res[j]
	})

	return res
}
