// Package validation checks canonical records before they are committed.
//
// Field rules live in `validate` struct tags on the canonical types and are
// evaluated with go-playground/validator. Every check reports through
// canonical.ImportError so a failing record can be excluded from a batch while
// the rest of the batch proceeds.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/mrlokans/bookshelf/internal/importers"
)

var (
	isbn10Pattern = regexp.MustCompile(`^\d{9}[\dX]$`)
	isbn13Pattern = regexp.MustCompile(`^\d{13}$`)
	isbnStripper  = strings.NewReplacer("-", "", " ", "")
)

// Validator is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// New returns a Validator with the custom tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// RegisterValidation only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("isbn10_pattern", validateISBN10)
	_ = v.RegisterValidation("isbn13_pattern", validateISBN13)
	_ = v.RegisterValidation("weblink", validateWebLink)
	_ = v.RegisterValidation("reading_status", validateStatus)
	_ = v.RegisterValidation("wishlist_priority", validatePriority)

	return &Validator{validate: v}
}

func validateISBN10(fl validator.FieldLevel) bool {
	return isbn10Pattern.MatchString(strings.ToUpper(isbnStripper.Replace(fl.Field().String())))
}

func validateISBN13(fl validator.FieldLevel) bool {
	return isbn13Pattern.MatchString(isbnStripper.Replace(fl.Field().String()))
}

func validateWebLink(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateStatus(fl validator.FieldLevel) bool {
	return canonical.Status(fl.Field().String()).Valid()
}

func validatePriority(fl validator.FieldLevel) bool {
	return canonical.Priority(fl.Field().String()).Rank() >= 0
}

// Validate checks one decoded record and tags the errors with its type and
// position.
func (v *Validator) Validate(rec importers.Record) []canonical.ImportError {
	var out []canonical.ImportError
	switch rec.Type {
	case canonical.RecordUserBook:
		out = v.ValidateUserBook(*rec.UserBook)
	case canonical.RecordWishlistItem:
		out = v.ValidateWishlistItem(*rec.WishlistItem)
	case canonical.RecordCollection:
		out = v.ValidateCollection(*rec.Collection)
	case canonical.RecordReadingSession:
		out = v.ValidateReadingSession(*rec.ReadingSession)
	}
	for i := range out {
		out[i].RecordType = rec.Type
		out[i].Index = rec.Index
		if out[i].Line == 0 {
			out[i].Line = rec.Line
		}
	}
	return out
}

func (v *Validator) ValidateUserBook(ub canonical.UserBook) []canonical.ImportError {
	return v.check(ub, ub.Line)
}

func (v *Validator) ValidateWishlistItem(wi canonical.WishlistItem) []canonical.ImportError {
	return v.check(wi, wi.Line)
}

func (v *Validator) ValidateReadingSession(s canonical.ReadingSession) []canonical.ImportError {
	return v.check(s, s.Line)
}

func (v *Validator) ValidateCollection(c canonical.Collection) []canonical.ImportError {
	return v.check(c, c.Line)
}

func (v *Validator) check(record any, line int) []canonical.ImportError {
	err := v.validate.Struct(record)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []canonical.ImportError{{
			Line:    line,
			Message: err.Error(),
			Kind:    string(errs.KindValidation),
		}}
	}

	out := make([]canonical.ImportError, 0, len(verrs))
	for _, fe := range verrs {
		message, suggestion := describe(fe)
		out = append(out, canonical.ImportError{
			Line:       line,
			Field:      fieldPath(fe),
			Value:      fieldValue(fe),
			Message:    message,
			Suggestion: suggestion,
			Kind:       string(errs.KindValidation),
		})
	}
	return out
}

// fieldPath drops the struct name validator puts in front of the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldValue(fe validator.FieldError) string {
	switch val := fe.Value().(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ";")
	}
	rv := reflect.ValueOf(fe.Value())
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Slice {
		return fmt.Sprintf("%d items", rv.Len())
	}
	return fmt.Sprint(rv.Interface())
}

func describe(fe validator.FieldError) (message, suggestion string) {
	field := fe.Field()
	param := fe.Param()
	isText := fe.Kind() == reflect.String
	isList := fe.Kind() == reflect.Slice

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field), fmt.Sprintf("provide a %s", field)
	case "max":
		switch {
		case isText:
			return fmt.Sprintf("%s must be at most %s characters", field, param), fmt.Sprintf("shorten %s to %s characters", field, param)
		case isList:
			return fmt.Sprintf("%s must have at most %s entries", field, param), fmt.Sprintf("keep %s of the %s", param, field)
		}
		return fmt.Sprintf("%s must be at most %s", field, param), fmt.Sprintf("use a value no greater than %s", param)
	case "min":
		if isText {
			return fmt.Sprintf("%s must be at least %s characters", field, param), fmt.Sprintf("use at least %s characters", param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param), fmt.Sprintf("use a value no less than %s", param)
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", field, lowerFirst(param)), fmt.Sprintf("check the %s and %s values", lowerFirst(param), field)
	case "isbn10_pattern":
		return fmt.Sprintf("%s must be 9 digits followed by a digit or X", field), "remove any characters other than digits and a trailing X"
	case "isbn13_pattern":
		return fmt.Sprintf("%s must be 13 digits", field), "remove any characters other than digits"
	case "weblink":
		return fmt.Sprintf("%s must be an absolute http or https URL", field), "use a full link such as https://example.com/cover.jpg"
	case "reading_status":
		return fmt.Sprintf("%s is not a known reading status", field), "use one of want_to_read, reading, completed, paused, abandoned, reference"
	case "wishlist_priority":
		return fmt.Sprintf("%s is not a known priority", field), "use one of low, medium, high, urgent"
	}
	return fmt.Sprintf("%s is invalid", field), ""
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
