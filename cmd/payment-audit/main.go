// Payment audit reads the full storage of the payment contract at the fixed
// state root, checks accounting invariants and prints YAML report. Exit code
// is 2 if any invariant is violated.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"gopkg.in/yaml.v3"
)

func main() {
	neoRPCEndpoint := flag.String("rpc", "", "Network address of the Neo RPC server")
	contractStr := flag.String("contract", "", "Address or LE script hash of the payment contract")
	timeout := flag.Duration("timeout", 15*time.Second, "Timeout of the RPC requests")

	flag.Parse()

	switch {
	case *neoRPCEndpoint == "":
		log.Fatal("missing Neo RPC endpoint")
	case *contractStr == "":
		log.Fatal("missing payment contract")
	}

	contract, err := address.StringToUint160(*contractStr)
	if err != nil {
		contract, err = util.Uint160DecodeStringLE(*contractStr)
		if err != nil {
			log.Fatalf("invalid payment contract '%s'", *contractStr)
		}
	}

	r, err := _audit(*neoRPCEndpoint, contract, *timeout)
	if err != nil {
		log.Fatal(err)
	}

	err = writeReport(os.Stdout, r)
	if err != nil {
		log.Fatal(err)
	}

	if len(r.Violations) > 0 {
		os.Exit(2)
	}
}

func _audit(endpoint string, contract util.Uint160, timeout time.Duration) (*report, error) {
	b, err := newRemoteBlockChain(context.Background(), endpoint, timeout)
	if err != nil {
		return nil, fmt.Errorf("init remote blockchain: %w", err)
	}

	defer b.close()

	_, err = b.contractState(contract)
	if err != nil {
		return nil, err
	}

	s := newLedgerState()

	err = b.iterateContractStorage(contract, s.add)
	if err != nil {
		return nil, fmt.Errorf("iterate payment contract storage: %w", err)
	}

	r := s.audit(contract)
	r.Height = b.height

	version, err := b.reader(contract).Version()
	if err != nil {
		return nil, fmt.Errorf("read contract version: %w", err)
	}

	r.Version = formatVersion(version.Int64())

	return r, nil
}

func writeReport(w io.Writer, r *report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return enc.Close()
}

// formatVersion formats contract version as major.minor.patch.
func formatVersion(v int64) string {
	return fmt.Sprintf("%d.%d.%d", v/1_000_000, v/1_000%1_000, v%1_000)
}
