package services

import (
	"errors"
	"fmt"

	"github.com/groupcal/backend/internal/apperr"
	"gorm.io/gorm"
)

// dbError wraps a storage failure. Unique constraint violations become
// conflicts so handlers can answer 409 instead of 500.
func dbError(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("%s: record already exists", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
