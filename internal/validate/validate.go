// Package validate: общий валидатор для HTTP и для разбора строк хранилища
// в значения ядра.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/utils"
)

var engine = newEngine()

func newEngine() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	must(v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := utils.ClockOffset(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("slot", func(fl validator.FieldLevel) bool {
		return calendar.IsGridTime(fl.Field().String())
	}))
	must(v.RegisterValidation("datekey", func(fl validator.FieldLevel) bool {
		_, err := calendar.ParseDay(fl.Field().String())
		return err == nil
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Engine: настроенный валидатор.
func Engine() *validator.Validate { return engine }

// Struct проверяет s и возвращает ошибки как calendar.ErrValidation.
func Struct(s any) error {
	err := engine.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return calendar.Validationf("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return calendar.Validationf("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "hhmm":
		return fmt.Sprintf("%s must be HH:MM", fe.Field())
	case "slot":
		return fmt.Sprintf("%s must be a slot start between %s and the last slot before %s", fe.Field(), calendar.DayStart, calendar.DayEnd)
	case "datekey":
		return fmt.Sprintf("%s must be YYYY-MM-DD", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
