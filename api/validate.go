package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/ta-engine/engine"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("semester", func(fl validator.FieldLevel) bool {
		return engine.SemesterCode(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("duty", func(fl validator.FieldLevel) bool {
		d := engine.Duty(fl.Field().String())
		for _, known := range engine.Duties {
			if d == known {
				return true
			}
		}
		return false
	})
	return v
}

// decode reads a JSON body into dst and validates it. Every failure is
// returned as an engine.ValidationError.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		verr := &engine.ValidationError{}
		verr.Add("body", "invalid JSON: %v", err)
		return verr
	}
	return validateStruct(dst)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &engine.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe), "%s", fieldMessage(fe))
	}
	return verr
}

// fieldPath drops the root struct name from the namespace:
// "ReviseAssignmentsRequest.assignments[0].offering_id" -> "assignments[0].offering_id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	case "semester":
		return "must be a 4 digit semester code ending in 1, 4 or 7"
	case "duty":
		return fmt.Sprintf("unknown duty %q", fe.Value())
	default:
		return "is invalid"
	}
}
