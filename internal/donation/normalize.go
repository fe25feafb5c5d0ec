package donation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxAmountMinor is the largest amount in minor units the processor accepts
// for a single checkout line item.
const MaxAmountMinor = 99_999_999

// minorPerMajor converts major currency units to the smallest subdivision.
const minorPerMajor = 100

// NormalizeAmount validates a user-entered decimal amount and converts it to
// the minor-unit integer the payment processor expects. minMajor is the
// context-dependent floor in major units; pass zero when only positivity is
// required. Rounding is half away from zero.
func NormalizeAmount(raw string, minMajor int64) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if minMajor > 0 && amount < float64(minMajor) {
		return 0, fmt.Errorf("%w: minimum is %d", ErrBelowMinimum, minMajor)
	}
	minor := math.Round(amount * minorPerMajor)
	if minor <= 0 || minor > MaxAmountMinor {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, raw)
	}
	return int64(minor), nil
}
