// Package deploy provides deployment and update procedure of the payment
// contract.
package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/management"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/payment-contract/common"
	"github.com/nspcc-dev/payment-contract/rpc/payment"
	"go.uber.org/zap"
)

// Blockchain groups services provided by particular Neo blockchain network
// required for the payment contract deployment.
type Blockchain interface {
	// RPCActor groups functions needed to compose and send transactions.
	actor.RPCActor

	// GetApplicationLog returns execution result of the transaction. It is used
	// to await sent transactions.
	GetApplicationLog(hash util.Uint256, trig *trigger.Type) (*result.ApplicationLog, error)

	// GetContractStateByHash returns network state of the smart contract by its
	// address. GetContractStateByHash returns [neorpc.ErrUnknownContract] if
	// requested contract is missing.
	GetContractStateByHash(util.Uint160) (*state.Contract, error)
}

// Prm groups parameters of the payment contract deployment.
type Prm struct {
	Logger *zap.Logger

	Blockchain Blockchain

	// LocalAccount sends transactions and pays for them. It must be the
	// contract owner to perform an update.
	LocalAccount *wallet.Account

	NEF      nef.File
	Manifest manifest.Manifest

	// Owner of the deployed contract. Defaults to LocalAccount.
	Owner util.Uint160
	// Processor is the account settling withdrawals.
	Processor util.Uint160
	// MinDeposit is an exclusive lower bound of accepted deposits.
	MinDeposit int64
	// Fee of withdrawals in basis points.
	Fee int64
	// Retain makes contract keep resolved withdrawal records.
	Retain bool
}

// Deploy deploys the payment contract when it is missing on the chain or
// updates it when the on-chain version is older than the local one. Deploy
// waits for the sent transaction and returns the contract address.
//
// Address is derived from LocalAccount, NEF checksum and manifest name, so
// repeated calls with the same parameters are idempotent.
func Deploy(ctx context.Context, prm Prm) (util.Uint160, error) {
	if prm.Logger == nil {
		return util.Uint160{}, errors.New("missing logger")
	}

	if prm.LocalAccount == nil {
		return util.Uint160{}, errors.New("missing local account")
	}

	if prm.Processor.Equals(util.Uint160{}) {
		return util.Uint160{}, errors.New("missing processor account")
	}

	if prm.Owner.Equals(util.Uint160{}) {
		prm.Owner = prm.LocalAccount.ScriptHash()
	}

	addr := state.CreateContractHash(prm.LocalAccount.ScriptHash(), prm.NEF.Checksum, prm.Manifest.Name)
	log := prm.Logger.With(zap.Stringer("contract", addr))

	act, err := actor.NewTuned(prm.Blockchain, []actor.SignerAccount{{
		Signer: transaction.Signer{
			Account: prm.LocalAccount.ScriptHash(),
			Scopes:  transaction.CalledByEntry,
		},
		Account: prm.LocalAccount,
	}}, actor.Options{
		CheckerModifier: spanTransactionModifier(func() uint32 {
			h, err := prm.Blockchain.GetBlockCount()
			if err != nil {
				return 0
			}
			return h
		}),
	})
	if err != nil {
		return util.Uint160{}, fmt.Errorf("init transaction sender from local account: %w", err)
	}

	_, err = prm.Blockchain.GetContractStateByHash(addr)
	if err != nil {
		if !errors.Is(err, neorpc.ErrUnknownContract) {
			return util.Uint160{}, fmt.Errorf("get state of the contract %s: %w", addr.StringLE(), err)
		}

		log.Info("payment contract is missing on the chain, deploying...")

		err = deployContract(ctx, act, prm)
		if err != nil {
			return util.Uint160{}, err
		}

		log.Info("payment contract successfully deployed")

		return addr, nil
	}

	reader := payment.NewReader(act, addr)

	version, err := reader.Version()
	if err != nil {
		return util.Uint160{}, fmt.Errorf("read version of the contract %s: %w", addr.StringLE(), err)
	}

	if version.Cmp(big.NewInt(common.Version)) >= 0 {
		log.Info("payment contract is already of the latest version", zap.Stringer("version", version))
		return addr, nil
	}

	owner, err := reader.Owner()
	if err != nil {
		return util.Uint160{}, fmt.Errorf("read owner of the contract %s: %w", addr.StringLE(), err)
	}

	if !owner.Equals(prm.LocalAccount.ScriptHash()) {
		return util.Uint160{}, fmt.Errorf("local account %s is not the contract owner %s", prm.LocalAccount.Address, owner.StringLE())
	}

	log.Info("payment contract is outdated, updating...",
		zap.Stringer("on-chain version", version), zap.Int("local version", common.Version))

	err = updateContract(ctx, act, addr, prm)
	if err != nil {
		return util.Uint160{}, err
	}

	log.Info("payment contract successfully updated")

	return addr, nil
}

func deployContract(ctx context.Context, act *actor.Actor, prm Prm) error {
	data := []any{
		prm.Owner,
		prm.Processor,
		prm.MinDeposit,
		prm.Fee,
		prm.Retain,
	}

	h, vub, err := management.New(act).Deploy(&prm.NEF, &prm.Manifest, data)

	return await(ctx, prm.Logger, act, "deploy", h, vub, err)
}

func updateContract(ctx context.Context, act *actor.Actor, addr util.Uint160, prm Prm) error {
	bNEF, err := prm.NEF.Bytes()
	if err != nil {
		return fmt.Errorf("encode NEF: %w", err)
	}

	bManifest, err := json.Marshal(prm.Manifest)
	if err != nil {
		return fmt.Errorf("encode manifest into JSON: %w", err)
	}

	h, vub, err := payment.New(act, addr).Update(bNEF, bManifest, nil)

	return await(ctx, prm.Logger, act, "update", h, vub, err)
}

// await waits for the transaction sent to the chain and checks its result.
// Transaction already sent within the same height span is awaited as well.
func await(ctx context.Context, log *zap.Logger, act *actor.Actor, op string, h util.Uint256, vub uint32, err error) error {
	if err != nil {
		if !errors.Is(err, neorpc.ErrAlreadyExists) && !errors.Is(err, neorpc.ErrAlreadyInPool) {
			return fmt.Errorf("send %s transaction: %w", op, err)
		}

		log.Info("transaction is already sent, waiting...", zap.String("operation", op), zap.Stringer("tx", h))
	}

	type waitResult struct {
		res *state.AppExecResult
		err error
	}

	ch := make(chan waitResult, 1)
	go func() {
		res, err := act.Wait(h, vub, nil)
		ch <- waitResult{res, err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait for %s transaction %s: %w", op, h.StringLE(), ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("wait for %s transaction %s: %w", op, h.StringLE(), r.err)
		}

		if r.res.VMState != vmstate.Halt {
			return fmt.Errorf("%s transaction %s failed: %s", op, h.StringLE(), r.res.FaultException)
		}
	}

	return nil
}

// returns actor.TransactionCheckerModifier which checks that invocation
// finished with 'HALT' state and, if so, sets transaction's nonce and
// ValidUntilBlock to 100*N and 100*(N+1) correspondingly, where
// 100*N <= current height < 100*(N+1).
func spanTransactionModifier(getBlockchainHeight func() uint32) actor.TransactionCheckerModifier {
	return func(r *result.Invoke, tx *transaction.Transaction) error {
		err := actor.DefaultCheckerModifier(r, tx)
		if err != nil {
			return err
		}

		curHeight := getBlockchainHeight()
		const span = 100
		n := curHeight / span

		tx.Nonce = n * span

		if math.MaxUint32-span > tx.Nonce {
			tx.ValidUntilBlock = tx.Nonce + span
		} else {
			tx.ValidUntilBlock = math.MaxUint32
		}

		return nil
	}
}
