package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"chatrelay/internal/config"
	"chatrelay/internal/domain"
)

// ParseJSON decodes the request body into dest.
// Bodies larger than config.MaxRequestBodyBytes are rejected.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("%w: request body is required", domain.ErrValidation)
	}
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrValidation, tooLarge.Limit)
		}
		return fmt.Errorf("%w: request must be json: %v", domain.ErrValidation, err)
	}
	return nil
}
