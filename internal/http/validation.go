package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/example/trainingcenter/internal/application"
	"github.com/example/trainingcenter/internal/recurrence"
)

const (
	hhmmTag     = "hhmm"
	notBlankTag = "notblank"
)

// requestValidator checks request payload shape before it reaches the services.
type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

var payloadValidator = newRequestValidator()

func newRequestValidator() *requestValidator {
	validate := validator.New()

	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON names so field errors match the request body.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(hhmmTag, hhmmValidation)
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)

	register := func(tag, text string) {
		_ = validate.RegisterTranslation(tag, translator, func(t ut.Translator) error {
			return t.Add(tag, text, true)
		}, func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		})
	}
	register(hhmmTag, "{0} must use 24-hour HH:MM format")
	register(notBlankTag, "{0} cannot be blank")

	return &requestValidator{validate: validate, translator: translator}
}

func hhmmValidation(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := recurrence.ParseClock(value)
	return err == nil
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// Struct validates payload and converts failures into an application.ValidationError keyed by
// the JSON path of the offending field, e.g. "weeklyPattern[0].startTime".
func (v *requestValidator) Struct(payload any) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := fe.Namespace()
		if idx := strings.Index(key, "."); idx >= 0 {
			key = key[idx+1:]
		}
		if _, exists := fields[key]; !exists {
			fields[key] = fe.Translate(v.translator)
		}
	}
	return application.NewValidationError(fields)
}

// decodeJSON reads the request body into dst and validates it.
// A malformed body yields errBadRequestBody; shape violations yield a ValidationError.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errBadRequestBody
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := decoder.Decode(dst); err != nil {
		return errBadRequestBody
	}
	return payloadValidator.Struct(dst)
}
