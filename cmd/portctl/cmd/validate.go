package cmd

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// The store forwards credentials to the backend as-is; input format checks
// belong to the UI layer, which for portctl is this package.
var validate = validator.New()

// loginInput is validated before a login attempt reaches the store.
type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// registerInput is validated before a register attempt reaches the store.
type registerInput struct {
	Username string `validate:"required,min=2"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

func checkLoginInput(email, password string) error {
	if err := validate.Struct(loginInput{Email: email, Password: password}); err != nil {
		return describeValidationError(err)
	}
	return nil
}

func checkRegisterInput(username, email, password string) error {
	if err := validate.Struct(registerInput{Username: username, Email: email, Password: password}); err != nil {
		return describeValidationError(err)
	}
	return nil
}

// describeValidationError turns validator's field errors into a short
// human-readable message.
func describeValidationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "email":
		return fmt.Errorf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Errorf("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}
