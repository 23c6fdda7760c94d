package state

import (
	"fmt"
	"math/big"
	"strings"
)

var accountPrefix = []byte("account/")

func accountKey(account string) []byte {
	trimmed := strings.TrimSpace(account)
	buf := make([]byte, len(accountPrefix)+len(trimmed))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], trimmed)
	return buf
}

type storedBalance struct {
	Denom  string
	Amount *big.Int
}

type storedAccount struct {
	Balances []storedBalance
}

func (a *storedAccount) balance(denom string) *big.Int {
	for _, b := range a.Balances {
		if b.Denom == denom {
			if b.Amount == nil {
				return big.NewInt(0)
			}
			return new(big.Int).Set(b.Amount)
		}
	}
	return big.NewInt(0)
}

func (a *storedAccount) setBalance(denom string, amount *big.Int) {
	for i, b := range a.Balances {
		if b.Denom == denom {
			a.Balances[i].Amount = new(big.Int).Set(amount)
			return
		}
	}
	a.Balances = append(a.Balances, storedBalance{Denom: denom, Amount: new(big.Int).Set(amount)})
}

func (m *Manager) loadAccount(account string) (*storedAccount, error) {
	var stored storedAccount
	if _, err := m.KVGet(accountKey(account), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// BalanceOf returns the account's balance in the given denom, zero when the
// account has never been funded.
func (m *Manager) BalanceOf(account, denom string) (*big.Int, error) {
	stored, err := m.loadAccount(account)
	if err != nil {
		return nil, err
	}
	return stored.balance(denom), nil
}

// Credit adds the amount to the account balance.
func (m *Manager) Credit(account, denom string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: credit amount must be non-negative")
	}
	stored, err := m.loadAccount(account)
	if err != nil {
		return err
	}
	stored.setBalance(denom, new(big.Int).Add(stored.balance(denom), amount))
	return m.KVPut(accountKey(account), stored)
}

// Transfer atomically debits one account and credits another. Both writes
// happen inside the caller's transaction; the host serializes transactions so
// no locking is needed beyond keeping the read-then-write pair together.
func (m *Manager) Transfer(from, to, denom string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: transfer amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := m.loadAccount(from)
	if err != nil {
		return err
	}
	current := fromAcc.balance(denom)
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("state: insufficient balance on %s: have %s %s, need %s", from, current, denom, amount)
	}
	if from == to {
		return nil
	}
	toAcc, err := m.loadAccount(to)
	if err != nil {
		return err
	}
	fromAcc.setBalance(denom, new(big.Int).Sub(current, amount))
	toAcc.setBalance(denom, new(big.Int).Add(toAcc.balance(denom), amount))
	if err := m.KVPut(accountKey(from), fromAcc); err != nil {
		return err
	}
	return m.KVPut(accountKey(to), toAcc)
}
