package services

import (
	"errors"

	"github.com/kafadas/kinjo/internal/model"
)

// isDomainErr reports whether a store error already carries a sentinel the
// HTTP layer maps to a client status.
func isDomainErr(err error) bool {
	return errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrConflict)
}
