package secondary

import (
	"context"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
)

// InstitutionDirectory defines the secondary port for resolving an
// institution code to its catalog credential.
type InstitutionDirectory interface {
	// Lookup returns the institution for code. It returns an error wrapping
	// domain.ErrInstitutionNotFound when the code is not provisioned.
	Lookup(ctx context.Context, code string) (*entity.Institution, error)
}
