package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payment-contract/rpc/payment"
)

// wrapper over Neo RPC providing the state of the payment contract at the
// fixed height.
type remoteBlockchain struct {
	rpc *rpcclient.Client

	// height of the audited state, penult block since the state root of the
	// latest one may be not ready yet
	height    uint32
	stateRoot util.Uint256
}

// newRemoteBlockChain dials Neo RPC server and returns remoteBlockchain based
// on the opened connection. Connection and all requests are done within
// given timeout.
func newRemoteBlockChain(ctx context.Context, endpoint string, timeout time.Duration) (*remoteBlockchain, error) {
	c, err := rpcclient.New(ctx, endpoint, rpcclient.Options{
		DialTimeout:    timeout,
		RequestTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("RPC client dial: %w", err)
	}

	err = c.Init()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init RPC client: %w", err)
	}

	nLatestBlock, err := c.GetBlockCount()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("get number of the latest block: %w", err)
	}

	if nLatestBlock < 2 {
		c.Close()
		return nil, fmt.Errorf("blockchain is too short: %d blocks", nLatestBlock)
	}

	height := nLatestBlock - 2

	stateRoot, err := c.GetStateRootByHeight(height)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("get state root at block #%d: %w", height, err)
	}

	return &remoteBlockchain{
		rpc:       c,
		height:    height,
		stateRoot: stateRoot.Root,
	}, nil
}

func (x *remoteBlockchain) close() {
	x.rpc.Close()
}

func (x *remoteBlockchain) contractState(contract util.Uint160) (*state.Contract, error) {
	res, err := x.rpc.GetContractStateByHash(contract)
	if err != nil {
		return nil, fmt.Errorf("get state of the contract '%s': %w", contract.StringLE(), err)
	}
	return res, nil
}

// reader returns payment contract reader working with the audited state.
func (x *remoteBlockchain) reader(contract util.Uint160) *payment.ContractReader {
	return payment.NewReader(invoker.NewHistoricAtHeight(x.height, x.rpc, nil), contract)
}

// iterateContractStorage iterates over all storage items of the Neo smart
// contract referenced by given address and passes them into f.
// iterateContractStorage breaks on any f's error and returns it.
func (x *remoteBlockchain) iterateContractStorage(contract util.Uint160, f func(key, value []byte) error) error {
	var start []byte

	for {
		res, err := x.rpc.FindStates(x.stateRoot, contract, nil, start, nil)
		if err != nil {
			return fmt.Errorf("get historical storage items of the requested contract at state root '%s': %w", x.stateRoot, err)
		}

		for i := range res.Results {
			err = f(res.Results[i].Key, res.Results[i].Value)
			if err != nil {
				return err
			}
		}

		if !res.Truncated {
			return nil
		}

		start = res.Results[len(res.Results)-1].Key
	}
}
