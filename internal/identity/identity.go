// Package identity is the port to the external account system that jury
// members sign in through. The engine only ever creates and disables
// accounts; credentials and sign-in mechanics live upstream.
package identity

import (
	"context"

	id "hackgate/pkg/domain"
)

// Account is the provisioned external identity for a jury member.
type Account struct {
	ID    id.IdentityID
	Name  string
	Email string
}

// Provisioner creates and disables external accounts. Implementations must
// make CreateAccount safe to retry: a second call for the same email may
// return the existing account instead of failing.
type Provisioner interface {
	CreateAccount(ctx context.Context, name, email string) (id.IdentityID, error)
	DisableAccount(ctx context.Context, identityID id.IdentityID) error
}
