// Payment relay pays withdrawals of the payment contract out and reports the
// outcome back to the contract. It must be run with the processor account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/gas"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/payment-contract/relay"
	"github.com/nspcc-dev/payment-contract/rpc/payment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")

	flag.Parse()

	err := run(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "payment relay: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w, acc, err := openAccount(cfg)
	if err != nil {
		return err
	}

	defer w.Close()

	c, err := rpcclient.New(ctx, cfg.RPCEndpoint, rpcclient.Options{
		DialTimeout:    cfg.RequestTimeout,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("RPC client dial: %w", err)
	}
	defer c.Close()

	err = c.Init()
	if err != nil {
		return fmt.Errorf("init RPC client: %w", err)
	}

	act, err := actor.New(c, []actor.SignerAccount{{
		Signer: transaction.Signer{
			Account:          acc.ScriptHash(),
			Scopes:           transaction.CustomContracts,
			AllowedContracts: []util.Uint160{cfg.Contract, gas.Hash},
		},
		Account: acc,
	}})
	if err != nil {
		return fmt.Errorf("init actor: %w", err)
	}

	contract := payment.New(act, cfg.Contract)

	processor, err := contract.Processor()
	if err != nil {
		return fmt.Errorf("read processor of the payment contract %s: %w", cfg.Contract.StringLE(), err)
	}
	if !processor.Equals(acc.ScriptHash()) {
		return fmt.Errorf("account %s is not the payment processor %s", acc.Address, processor.StringLE())
	}

	journal, err := relay.OpenJournal(cfg.JournalDir, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := journal.Close(); err != nil {
			log.Error("failed to close journal", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r, err := relay.New(relay.Prm{
		Logger:       log,
		Contract:     contract,
		Token:        gas.New(act),
		Chain:        c,
		Journal:      journal,
		Metrics:      relay.NewMetrics(reg),
		ContractHash: cfg.Contract,
		Processor:    acc.ScriptHash(),
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           newRouter(log, reg, c),
		ReadHeaderTimeout: 15 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("address", cfg.ListenAddress))
		srvErr <- srv.ListenAndServe()
	}()

	r.Start(ctx)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err = <-srvErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	r.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error("HTTP server shutdown failed", zap.Error(serr))
	}

	if err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}

	log.Info("payment relay stopped")

	return nil
}

// openAccount returns the wallet along with the decrypted relay account. The
// wallet must be closed after the account is no longer used.
func openAccount(cfg *config) (*wallet.Wallet, *wallet.Account, error) {
	w, err := wallet.NewWalletFromFile(cfg.WalletPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open wallet: %w", err)
	}

	var acc *wallet.Account
	if cfg.WalletAddress.Equals(util.Uint160{}) {
		acc = w.GetAccount(w.GetChangeAddress())
	} else {
		acc = w.GetAccount(cfg.WalletAddress)
	}
	if acc == nil {
		w.Close()
		return nil, nil, errors.New("account not found in the wallet")
	}

	err = acc.Decrypt(cfg.WalletPassword, w.Scrypt)
	if err != nil {
		w.Close()
		return nil, nil, fmt.Errorf("decrypt account %s: %w", acc.Address, err)
	}

	return w, acc, nil
}
