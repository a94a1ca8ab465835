package oracle

import (
	"github.com/dorucioclea/dlc-stack/internal/dlc"
	"github.com/pkg/errors"
)

// Errors returned by the oracle service. Callers match them with errors.Is.
var (
	ErrUnknownAssetPair     = errors.New("unknown asset pair")
	ErrUnrecordedAssetPair  = errors.New("asset pair not recorded")
	ErrInvalidEventID       = errors.New("invalid event id")
	ErrInvalidMaturation    = errors.New("invalid maturation")
	ErrEventNotFound        = errors.New("oracle event not found")
	ErrEventAlreadyAttested = errors.New("oracle event already attested")
	ErrConcurrentUpdate     = errors.New("oracle event modified concurrently")
	ErrCorruptRecord        = errors.New("corrupt event record")
	ErrKeyMismatch          = errors.New("announcement signed by a different oracle key")
	ErrInvalidSignature     = errors.New("invalid signature")

	ErrOutcomeOutOfRange = dlc.ErrOutcomeOutOfRange
)
