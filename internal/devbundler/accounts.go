package devbundler

import (
	"fmt"
	"sync"

	"github.com/dmitrijs2005/helix/internal/common"
)

// Accounts holds prepaid balances per owner address and remembers which
// deposits were already credited.
type Accounts struct {
	mu       sync.Mutex
	balances map[string]uint64
	deposits map[string]struct{}
}

func NewAccounts() *Accounts {
	return &Accounts{balances: map[string]uint64{}, deposits: map[string]struct{}{}}
}

func (a *Accounts) Balance(address string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balances[address]
}

// Credit adds amount to address and returns the new balance.
func (a *Accounts) Credit(address string, amount uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[address] += amount
	return a.balances[address]
}

// CreditDeposit credits a deposit once. A second call with the same
// signature changes nothing and reports false.
func (a *Accounts) CreditDeposit(signature, address string, amount uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.deposits[signature]; ok {
		return false
	}
	a.deposits[signature] = struct{}{}
	a.balances[address] += amount
	return true
}

// Charge takes amount from address, or fails with common.ErrQuota and
// leaves the balance alone.
func (a *Accounts) Charge(address string, amount uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balances[address] < amount {
		return fmt.Errorf("%w: balance %d, price %d", common.ErrQuota, a.balances[address], amount)
	}
	a.balances[address] -= amount
	return nil
}
