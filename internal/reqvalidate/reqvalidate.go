// Package reqvalidate runs struct-tag validation on request DTOs, shared
// across vault/confdb/storage/swarm the way the teacher's internal/httpserver
// shares a single validator instance across its handlers.
package reqvalidate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dws/control-plane/internal/apierr"
)

// validate is a package-level, concurrency-safe validator instance.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct runs struct-tag validation on v (spec §7: "Validation" error kind)
// and returns the first failing field as an apierr.Validation, in
// "field: constraint" form.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apierr.Wrap(apierr.Validation, "validating request", err)
	}

	fe := ve[0]
	return apierr.New(apierr.Validation, fmt.Sprintf("%s: failed %s validation", jsonFieldName(fe), fe.Tag()))
}

// jsonFieldName strips the struct-name prefix from the validator namespace
// and lowercases the leading field segment, e.g. "StoreRequest.Name" ->
// "name".
func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	if ns == "" {
		return ns
	}
	return strings.ToLower(ns[:1]) + ns[1:]
}
