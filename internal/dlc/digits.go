package dlc

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// MaxBase is the largest base whose digits fit in a single decimal character.
const MaxBase = 10

var (
	// ErrOutcomeOutOfRange is returned when an outcome needs more digits than the
	// event descriptor commits to.
	ErrOutcomeOutOfRange = errors.New("outcome out of range")
	// ErrUnsupportedBase is returned for bases outside [2, MaxBase].
	ErrUnsupportedBase = errors.New("unsupported base")
	// ErrInvalidDigit is returned when composing from a malformed digit string.
	ErrInvalidDigit = errors.New("invalid digit")
)

// MaxOutcome returns the largest outcome representable with numDigits digits
// in the given base. ok is false when every uint64 is representable.
func MaxOutcome(base, numDigits uint16) (max uint64, ok bool) {
	limit := uint64(1)
	for i := uint16(0); i < numDigits; i++ {
		if limit > math.MaxUint64/uint64(base) {
			return math.MaxUint64, false
		}
		limit *= uint64(base)
	}
	return limit - 1, true
}

// DecomposeOutcome writes outcome in the given base as exactly numDigits
// single-character digits, most significant first, zero padded.
func DecomposeOutcome(outcome uint64, base, numDigits uint16) ([]string, error) {
	if base < 2 || base > MaxBase {
		return nil, errors.Wrapf(ErrUnsupportedBase, "base %d", base)
	}
	if numDigits == 0 {
		return nil, errors.Wrap(ErrOutcomeOutOfRange, "event has no digits")
	}
	if max, bounded := MaxOutcome(base, numDigits); bounded && outcome > max {
		return nil, errors.Wrapf(ErrOutcomeOutOfRange,
			"%d does not fit in %d base-%d digits (max %d)", outcome, numDigits, base, max)
	}

	digits := make([]string, numDigits)
	for i := int(numDigits) - 1; i >= 0; i-- {
		digits[i] = strconv.FormatUint(outcome%uint64(base), 10)
		outcome /= uint64(base)
	}
	return digits, nil
}

// ComposeOutcome is the inverse of DecomposeOutcome.
func ComposeOutcome(digits []string, base uint16) (uint64, error) {
	if base < 2 || base > MaxBase {
		return 0, errors.Wrapf(ErrUnsupportedBase, "base %d", base)
	}
	var outcome uint64
	for i, d := range digits {
		if len(d) != 1 || d[0] < '0' || d[0] >= '0'+byte(base) {
			return 0, errors.Wrapf(ErrInvalidDigit, "digit %d is %q", i, d)
		}
		if outcome > (math.MaxUint64-uint64(d[0]-'0'))/uint64(base) {
			return 0, errors.Wrap(ErrOutcomeOutOfRange, "digits overflow uint64")
		}
		outcome = outcome*uint64(base) + uint64(d[0]-'0')
	}
	return outcome, nil
}
