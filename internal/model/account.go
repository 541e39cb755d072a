package model

import (
	"fmt"
	"strings"
)

// Account is one of the two independently credentialed tenants on the
// messaging platform. Remote ids are unique only within an account.
type Account string

const (
	AccountComercial Account = "COMERCIAL"
	AccountSuporte   Account = "SUPORTE"
)

// Accounts lists every known account in a stable order.
var Accounts = []Account{AccountComercial, AccountSuporte}

func (a Account) String() string {
	return string(a)
}

func (a Account) Valid() bool {
	return a == AccountComercial || a == AccountSuporte
}

// ParseAccount accepts any casing and surrounding whitespace.
func ParseAccount(s string) (Account, error) {
	a := Account(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown account %q", s)
	}
	return a, nil
}
