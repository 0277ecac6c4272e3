package mongo

import (
	"fmt"

	"github.com/IgorGrieder/minimizurl/internal/processing/links"
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: mongo %s: %w", links.ErrStorageUnavailable, op, err)
}
