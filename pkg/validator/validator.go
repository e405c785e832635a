package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// Tags maps each custom tag to its validation function.
var Tags = map[string]validator.Func{
	"consultation_type":   consultationType,
	"consultation_status": consultationStatus,
	"clock":               clock,
}

// Register installs the custom tags and reports fields by their json name.
func Register(v *validator.Validate) error {
	for tag, fn := range Tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	v.RegisterTagNameFunc(jsonName)
	return nil
}

// New returns a validator with the custom tags registered.
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func consultationType(fl validator.FieldLevel) bool {
	return model.ConsultationType(fl.Field().String()).Valid()
}

func consultationStatus(fl validator.FieldLevel) bool {
	return model.ConsultationStatus(fl.Field().String()).Valid()
}

// clock accepts a time of day between 00:00 and 24:00 on a whole minute.
func clock(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.String:
		_, err := model.ParseClock(f.String())
		return err == nil
	case reflect.Int64:
		d := time.Duration(f.Int())
		return d >= 0 && d <= 24*time.Hour && d%time.Minute == 0
	}
	return false
}

// Message turns a binding error into one client-facing line.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldMessage(fe))
	}
	return strings.Join(parts, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "uuid":
		return fe.Field() + " must be a valid UUID"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "consultation_type":
		return fe.Field() + " must be one of in_person, video, phone"
	case "consultation_status":
		return fe.Field() + " is not a valid consultation status"
	case "clock":
		return fe.Field() + " must be a time of day between 00:00 and 24:00"
	}
	return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
}
