package common

import "github.com/nspcc-dev/neo-go/pkg/interop/runtime"

const (
	// ErrOwnerWitnessFailed appears when the method must be called
	// by the contract owner but was not.
	ErrOwnerWitnessFailed = ErrUnauthorized + ": owner witness check failed"
	// ErrProcessorWitnessFailed appears when the method must be called
	// by the payout processor but was not.
	ErrProcessorWitnessFailed = ErrUnauthorized + ": processor witness check failed"
	// ErrWitnessFailed appears when the method must be called
	// by an owner of some assets but was not.
	ErrWitnessFailed = ErrUnauthorized + ": account witness check failed"
)

// CheckOwnerWitness checks witness of the contract owner.
// It panics with ErrOwnerWitnessFailed message on fail.
func CheckOwnerWitness(owner []byte) {
	checkWitnessWithPanic(owner, ErrOwnerWitnessFailed)
}

// CheckProcessorWitness checks witness of the payout processor.
// It panics with ErrProcessorWitnessFailed message on fail.
func CheckProcessorWitness(processor []byte) {
	checkWitnessWithPanic(processor, ErrProcessorWitnessFailed)
}

func checkWitnessWithPanic(caller []byte, panicMsg string) {
	if !runtime.CheckWitness(caller) {
		panic(panicMsg)
	}
}
