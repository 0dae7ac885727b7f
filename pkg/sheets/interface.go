package sheets

import (
	"context"

	"github.com/voidshard/cashster/pkg/domain"
)

// Service is what we need from a spreadsheet backend.
type Service interface {
	// Get checks the document exists, returning domain.ErrDocumentNotFound
	// if it doesn't.
	Get(ctx context.Context, id string) error

	// Create makes a new, empty document and returns its id.
	Create(ctx context.Context) (string, error)

	SetProperties(ctx context.Context, id, title, locale string) error

	// Append adds rows after the last row with data.
	Append(ctx context.Context, id string, rows [][]interface{}) error
}

// Authorizer obtains (new) credentials from the user.
type Authorizer interface {
	Authorize(ctx context.Context) error
}

// TokenStore is where OAuth tokens are kept between runs.
type TokenStore interface {
	Token() *domain.Token
	SetToken(*domain.Token) error
}
