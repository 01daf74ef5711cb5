package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"user_accounts/internal/service"
	"user_accounts/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	registerOnce   sync.Once
	registerErr    error
	passwordPolicy atomic.Pointer[utils.PasswordPolicy]
)

// RegisterValidators installs the "password" binding rule backed by policy
// and makes validation errors report JSON field names. Calling it again
// only replaces the policy.
func RegisterValidators(policy utils.PasswordPolicy) error {
	passwordPolicy.Store(&policy)
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		registerErr = v.RegisterValidation("password", validatePassword)
	})
	return registerErr
}

func currentPolicy() utils.PasswordPolicy {
	if p := passwordPolicy.Load(); p != nil {
		return *p
	}
	return utils.DefaultPasswordPolicy()
}

func validatePassword(fl validator.FieldLevel) bool {
	return currentPolicy().Check(fl.Field().String()) == nil
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// bindJSON decodes and validates the body into req. An empty body is
// validated as an empty object so every missing field is reported.
func bindJSON(c *gin.Context, req any) error {
	err := c.ShouldBindJSON(req)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(req)
	}
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return translateValidationErrors(verrs)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return service.NewFieldError(typeErr.Field, fmt.Sprintf("The %s field must be a %s.", displayName(typeErr.Field), typeErr.Type))
	}
	return errMalformedBody
}

var errMalformedBody = errors.New("malformed request body")

func translateValidationErrors(verrs validator.ValidationErrors) *service.ValidationError {
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
	}
	return &service.ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	name := displayName(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", name, fe.Param())
	case "password":
		value, _ := fe.Value().(string)
		if err := currentPolicy().Check(value); err != nil {
			return err.Error()
		}
	}
	return fmt.Sprintf("The %s field is invalid.", name)
}

func displayName(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
