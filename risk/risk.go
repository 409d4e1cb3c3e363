package risk

import (
	"errors"

	"github.com/quantfix/pyra/types"
)

// ErrMissingContractMeta marks an instrument that cannot be sized because
// the contract-metadata collaborator has no multiplier for it. The
// instrument must be excluded from trading until resolved.
var ErrMissingContractMeta = errors.New("risk: missing contract metadata")

// OpenVolume converts volatility and account equity into an integer
// contract count: floor(equity × riskFraction / (atr × multiplier)).
// When the true balance is unknown (zero) the fallback notional equity is
// used instead. The result is clamped to a minimum of one contract;
// clamped reports that the account was too small for a full unit so the
// caller can log the insufficient-capital condition.
func OpenVolume(balance, riskFraction, fallbackEquity, atr float64, meta types.ContractMeta) (volume int, clamped bool, err error) {
	if meta.Multiplier <= 0 {
		return 0, false, ErrMissingContractMeta
	}
	if atr <= 0 {
		return 0, false, nil
	}
	equity := balance
	if equity == 0 {
		equity = fallbackEquity
	}
	budget := equity * riskFraction
	volume = int(budget / (atr * meta.Multiplier))
	if volume <= 0 {
		return 1, true, nil
	}
	return volume, false, nil
}
