package account

import (
	"fmt"
	"slices"
	"strings"

	"eduops.app/relay/core/config"
	"eduops.app/relay/internal/domain"
	"eduops.app/relay/internal/model"
)

// Credentials is what a remote call needs to act on behalf of one account.
type Credentials struct {
	Account       model.Account
	BaseURL       string
	APIToken      string
	WebhookSecret string
	Departments   []string
}

// Router maps an account tag to its credentials. It is built once from
// explicit configuration and is safe for concurrent reads.
type Router struct {
	accounts map[model.Account]Credentials
}

// NewRouter validates every entry. Unknown names, duplicates and entries
// missing a base URL or token are configuration errors.
func NewRouter(configs []config.AccountConfig) (*Router, error) {
	r := &Router{accounts: make(map[model.Account]Credentials, len(configs))}
	for _, cfg := range configs {
		acct, err := model.ParseAccount(cfg.Name)
		if err != nil {
			return nil, &domain.ConfigurationError{Account: cfg.Name, Reason: "unknown account"}
		}
		if _, dup := r.accounts[acct]; dup {
			return nil, &domain.ConfigurationError{Account: cfg.Name, Reason: "configured twice"}
		}
		creds := Credentials{
			Account:       acct,
			BaseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIToken:      strings.TrimSpace(cfg.APIToken),
			WebhookSecret: cfg.WebhookSecret,
			Departments:   slices.Clone(cfg.Departments),
		}
		if err := validate(creds); err != nil {
			return nil, err
		}
		r.accounts[acct] = creds
	}
	return r, nil
}

// Resolve returns the credentials for acct or a *domain.ConfigurationError.
func (r *Router) Resolve(acct model.Account) (Credentials, error) {
	if !acct.Valid() {
		return Credentials{}, &domain.ConfigurationError{Account: string(acct), Reason: "unknown account"}
	}
	creds, ok := r.accounts[acct]
	if !ok {
		return Credentials{}, &domain.ConfigurationError{Account: string(acct), Reason: "credentials not configured"}
	}
	return creds, nil
}

// ResolveName parses a raw tag (path parameter, CLI flag) and resolves it.
func (r *Router) ResolveName(name string) (Credentials, error) {
	acct, err := model.ParseAccount(name)
	if err != nil {
		return Credentials{}, &domain.ConfigurationError{Account: name, Reason: "unknown account"}
	}
	return r.Resolve(acct)
}

// Accounts lists the configured accounts in a stable order.
func (r *Router) Accounts() []model.Account {
	out := make([]model.Account, 0, len(r.accounts))
	for _, acct := range model.Accounts {
		if _, ok := r.accounts[acct]; ok {
			out = append(out, acct)
		}
	}
	return out
}

func validate(c Credentials) error {
	switch {
	case c.BaseURL == "":
		return &domain.ConfigurationError{Account: string(c.Account), Reason: "base URL missing"}
	case !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://"):
		return &domain.ConfigurationError{Account: string(c.Account), Reason: fmt.Sprintf("base URL %q is not http(s)", c.BaseURL)}
	case c.APIToken == "":
		return &domain.ConfigurationError{Account: string(c.Account), Reason: "API token missing"}
	}
	return nil
}
