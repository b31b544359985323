package sentimentgate

// Settlement decides what a caller receives when the engine produced an
// Analysis but Ledger.Commit lost the race for the account's last slot.
type Settlement interface {
	// Settle returns the Analysis to hand back, or an error to surface instead.
	Settle(analysis Analysis, commitErr error) (Analysis, error)
}

// defaultGenerousSettlement is an inline generous policy to avoid import cycles.
type defaultGenerousSettlement struct{}

func (s *defaultGenerousSettlement) Settle(analysis Analysis, _ error) (Analysis, error) {
	return analysis, nil
}
