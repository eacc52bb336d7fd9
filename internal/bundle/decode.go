package bundle

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"scanbay/internal/services"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses model output into a Bundle and enforces the full contract.
// Unknown fields, shape mismatches, and constraint violations all surface as
// schema errors. The returned bundle is validated but not yet normalized.
func Decode(raw string) (*Bundle, error) {
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.DisallowUnknownFields()

	var b Bundle
	if err := decoder.Decode(&b); err != nil {
		return nil, services.Wrap(services.ErrSchema, "bundle", "decode", "parse model output", err)
	}
	if err := Validate(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks a bundle against the contract without normalizing it.
func Validate(b *Bundle) error {
	if err := validate.Struct(b); err != nil {
		return services.Wrap(services.ErrSchema, "bundle", "validate", describeViolation(err), nil)
	}
	return nil
}

// describeViolation flattens validator output into a compact message for the
// job's error field.
func describeViolation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+" failed "+fe.Tag())
	}
	if len(fields) > 5 {
		fields = fields[:5]
	}
	return strings.Join(fields, "; ")
}
