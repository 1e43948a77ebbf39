package core

// validation.go checks inbound payloads before anything touches the store.
//
// Struct-level rules live in `validate` tags and are evaluated with
// go-playground/validator. Rules that span fields (duplicate names, shape
// problems collected while decoding) are checked by hand. Every failure is
// collected so the caller sees all of them at once.

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			switch name {
			case "-":
				return ""
			case "":
				return lowerFirst(fld.Name)
			}
			return name
		})
	})
	return validate
}

// ValidateImportRequest returns ValidationErrors listing every problem in req,
// or nil if it can be imported.
func ValidateImportRequest(req ImportRequest) error {
	var errs ValidationErrors

	errs = append(errs, structErrors(req, "")...)

	if !req.Sheets.present {
		errs = append(errs, FieldError{Field: "sheets", Message: "is required"})
	}
	errs = append(errs, req.Sheets.problems...)

	for _, sheet := range req.Sheets.All() {
		prefix := fmt.Sprintf("sheets[%s]", sheet.Key)
		if sheet.Key == "" {
			errs = append(errs, FieldError{Field: prefix, Message: "sheet key must not be empty"})
		}
		errs = append(errs, structErrors(sheet, prefix)...)
	}

	seen := make(map[string]bool, len(req.Metadata.ExcludedSheets))
	for i, name := range req.Metadata.ExcludedSheets {
		if name != "" && seen[name] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("metadata.excludedSheets[%d]", i),
				Message: fmt.Sprintf("duplicate sheet name %q", name),
			})
		}
		seen[name] = true
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateSearchParams checks a search request.
func ValidateSearchParams(p SearchParams) error {
	errs := structErrors(p, "")
	if p.Term != "" && strings.TrimSpace(p.Term) == "" {
		errs = append(errs, FieldError{Field: "term", Message: "must not be blank"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// structErrors runs tag validation on v and converts the failures to
// FieldErrors whose names follow the JSON field names.
func structErrors(v any, prefix string) ValidationErrors {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrors{{Field: prefix, Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fieldPath(prefix, fe.Namespace()),
			Message: tagMessage(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace and
// prepends prefix.
func fieldPath(prefix, namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	if prefix == "" {
		return namespace
	}
	return prefix + "." + namespace
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must have at most %s items", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
