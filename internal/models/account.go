package models

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownParent = errors.New("parent account does not exist")
	ErrAccountCycle  = errors.New("account hierarchy would contain a cycle")
	ErrDuplicateCode = errors.New("account code already exists")
)

// Account is a node of the chart of accounts. The tree is expressed through
// ParentID only; children are found by asking an AccountArena.
type Account struct {
	ID          string
	Code        string
	Description string
	ParentID    *string
}

// AccountArena stores accounts by id with a code index.
// It is not safe for concurrent use.
type AccountArena struct {
	byID   map[string]Account
	byCode map[string]string
}

func NewAccountArena() *AccountArena {
	return &AccountArena{
		byID:   make(map[string]Account),
		byCode: make(map[string]string),
	}
}

// Add inserts an account. The parent, when set, must already be present.
func (a *AccountArena) Add(acc Account) error {
	if existing, ok := a.byCode[acc.Code]; ok && existing != acc.ID {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, acc.Code)
	}
	if acc.ParentID != nil {
		if _, ok := a.byID[*acc.ParentID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParent, *acc.ParentID)
		}
		if *acc.ParentID == acc.ID {
			return ErrAccountCycle
		}
		for _, anc := range a.Ancestors(*acc.ParentID) {
			if anc.ID == acc.ID {
				return ErrAccountCycle
			}
		}
	}

	a.byID[acc.ID] = acc
	a.byCode[acc.Code] = acc.ID
	return nil
}

func (a *AccountArena) Get(id string) (Account, bool) {
	acc, ok := a.byID[id]
	return acc, ok
}

func (a *AccountArena) ByCode(code string) (Account, bool) {
	id, ok := a.byCode[code]
	if !ok {
		return Account{}, false
	}
	return a.byID[id], true
}

// Ancestors returns the chain of parents of id, nearest first.
func (a *AccountArena) Ancestors(id string) []Account {
	var chain []Account
	seen := map[string]bool{id: true}

	cur, ok := a.byID[id]
	for ok && cur.ParentID != nil {
		if seen[*cur.ParentID] {
			break
		}
		seen[*cur.ParentID] = true
		cur, ok = a.byID[*cur.ParentID]
		if ok {
			chain = append(chain, cur)
		}
	}
	return chain
}

// Children returns the direct children of id.
func (a *AccountArena) Children(id string) []Account {
	var out []Account
	for _, acc := range a.byID {
		if acc.ParentID != nil && *acc.ParentID == id {
			out = append(out, acc)
		}
	}
	return out
}

func (a *AccountArena) Len() int { return len(a.byID) }
