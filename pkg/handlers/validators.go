package handlers

import (
	"reflect"
	"strings"
	"sync"

	"github.com/arnavshah/attendance-api-go/pkg/schedule"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	translator   ut.Translator
	validateOnce sync.Once

	// custom validation tags
	notBlankTag = "notblank"
	clockTag    = "clock"
	weekdaysTag = "weekdays"
)

// RegisterValidators hooks json field names, english messages and the custom
// tags into gin's binding validator
func RegisterValidators() {
	validateOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		_en := en.New()
		uni := ut.New(_en, _en)
		translator, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, translator)

		// Use JSON tag names for errors instead of Go struct names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation(notBlankTag, notBlankValidation)
		_ = v.RegisterValidation(clockTag, clockValidation)
		_ = v.RegisterValidation(weekdaysTag, weekdaysValidation)

		registerFn := func(ut.Translator) error { return nil }
		for _, tag := range []string{notBlankTag, clockTag, weekdaysTag} {
			_ = v.RegisterTranslation(tag, translator, registerFn, translateCustomValidationErrs)
		}
	})
}

func translateCustomValidationErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case clockTag:
		return "must be a time of day as HH:MM"
	case weekdaysTag:
		return "must be a comma separated list of weekdays (mon..sun)"
	default:
		return ""
	}
}

func translateErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		msg := fe.Error()
		if translator != nil {
			msg = fe.Translate(translator)
		}
		out[fe.Field()] = msg
	}
	return out
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func clockValidation(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := schedule.ParseClock(str)
	return err == nil
}

func weekdaysValidation(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := schedule.ParseWeekdays(str)
	return err == nil
}
