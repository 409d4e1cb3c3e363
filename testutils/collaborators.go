package testutils

import (
	"fmt"

	"github.com/quantfix/pyra/types"
)

// StaticContracts serves contract metadata from a fixed map; unknown
// instruments fail the lookup like a metadata outage would.
type StaticContracts map[string]types.ContractMeta

func (s StaticContracts) Contract(instrument string) (types.ContractMeta, error) {
	meta, ok := s[instrument]
	if !ok {
		return types.ContractMeta{}, fmt.Errorf("no contract metadata for %s", instrument)
	}
	return meta, nil
}

// StubHistory replays a canned bar sequence per instrument.
type StubHistory map[string][]types.Bar

func (s StubHistory) LoadBars(instrument string, lookbackDays int) ([]types.Bar, error) {
	return s[instrument], nil
}
