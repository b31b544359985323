package policy

import "github.com/ineyio/sentimentgate"

// Generous hands the Analysis to the caller whose engine call already ran,
// even though the ledger could not record it. The ledger stays at its cap, so
// every later request is refused.
type Generous struct{}

var _ sentimentgate.Settlement = (*Generous)(nil)

// Settle returns the analysis unchanged.
func (p *Generous) Settle(analysis sentimentgate.Analysis, _ error) (sentimentgate.Analysis, error) {
	return analysis, nil
}
