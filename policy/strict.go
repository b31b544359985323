package policy

import "github.com/ineyio/sentimentgate"

// Strict discards an Analysis that could not be billed and reports the quota
// as exceeded.
type Strict struct{}

var _ sentimentgate.Settlement = (*Strict)(nil)

// Settle drops the analysis and returns commitErr, which matches ErrQuotaExceeded.
func (p *Strict) Settle(_ sentimentgate.Analysis, commitErr error) (sentimentgate.Analysis, error) {
	if commitErr == nil {
		commitErr = sentimentgate.ErrQuotaConflict
	}
	return sentimentgate.Analysis{}, commitErr
}
