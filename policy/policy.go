// Package policy provides Settlement implementations for commits that lost
// the race for an account's last quota slot.
package policy

import (
	"fmt"
	"strings"

	"github.com/ineyio/sentimentgate"
)

// ByName returns the settlement policy registered under name.
// The empty name selects Generous.
func ByName(name string) (sentimentgate.Settlement, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "generous":
		return &Generous{}, nil
	case "strict":
		return &Strict{}, nil
	default:
		return nil, fmt.Errorf("sentimentgate/policy: unknown settlement policy %q", name)
	}
}
