package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterValidation("wsurl", validateWebSocketURL)
	validate.RegisterValidation("participant", validateParticipant)
}

// Struct validates a struct using its validate tags.
func Struct(s any) error {
	return validate.Struct(s)
}

// Var validates a single value against tag.
func Var(field any, tag string) error {
	return validate.Var(field, tag)
}

// Describe flattens validation errors into one readable line. Other errors
// are returned unchanged.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// validateWebSocketURL accepts absolute ws:// and wss:// URLs.
func validateWebSocketURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return false
	}
	return u.Host != ""
}

// validateParticipant rejects identifiers that cannot form a room key: the
// key separator is allowed, surrounding whitespace is not.
func validateParticipant(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return id != "" && strings.TrimSpace(id) == id
}
