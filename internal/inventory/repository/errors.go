package repository

import (
	"fmt"

	"github.com/medflow/stockledger/pkg/database"
)

// mapErr turns constraint violations into domain errors and wraps the rest,
// keeping the driver error in the chain for retry detection.
func mapErr(err error, op string) error {
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return fmt.Errorf("%s: %w", op, err)
}
