package table

import (
	"fmt"

	"github.com/feltstack/feltstack/pkg/auth"
)

// Action is a player's move on their turn.
type Action string

const (
	ActionFold  Action = "fold"
	ActionCheck Action = "check"
	ActionCall  Action = "call"
	ActionBet   Action = "bet"
	ActionRaise Action = "raise"
	ActionAllIn Action = "all_in"
)

// HashPassphrase derives a storable hash for a private table's join
// passphrase, reusing the password hashing scheme from pkg/auth rather than
// inventing a second one.
func HashPassphrase(passphrase string) (string, error) {
	return auth.HashSecret(passphrase)
}

// checkPassphrase verifies a join attempt's passphrase against the table's
// stored hash. An empty hash means the table accepts no passphrase at all.
func checkPassphrase(passphrase, hash string) error {
	if hash == "" {
		return fmt.Errorf("table: no passphrase configured")
	}
	ok, err := auth.VerifySecret(passphrase, hash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("table: wrong passphrase")
	}
	return nil
}
