package submit

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/debemdeboas/quill/internal/form"
)

var (
	ErrValidationFailed = errors.New("validation failed")
	ErrUploadFailed     = errors.New("image upload failed")
	ErrPersistFailed    = errors.New("saving post failed")
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrNoSession        = errors.New("no authenticated user")
)

// ValidationError carries the per-field messages of a blocked submission.
type ValidationError struct {
	Errors map[form.Field]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(fields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
