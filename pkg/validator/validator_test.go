package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type userPayload struct {
	Name  string `json:"name" validate:"required,notblank"`
	Email string `json:"email" validate:"required,email"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := userPayload{
		Name:  "Ada",
		Email: "ada@example.com",
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(userPayload{Name: "", Email: "invalid"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(vErrs) != 2 {
		t.Fatalf("expected 2 validation errors, got %d", len(vErrs))
	}
	if !vErrs.HasTag("required") {
		t.Fatal("expected a required failure for name")
	}
	if !vErrs.HasTag("email") {
		t.Fatal("expected an email failure")
	}

	foundEmail := false
	for _, v := range vErrs {
		if v.Field == "email" {
			foundEmail = true
		}
	}
	if !foundEmail {
		t.Fatal("expected json field names in validation errors")
	}
}

func TestNotBlankRejectsWhitespace(t *testing.T) {
	err := ValidateStruct(userPayload{Name: "   ", Email: "ada@example.com"})
	if err == nil {
		t.Fatal("expected whitespace-only name to fail")
	}
	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if !vErrs.HasTag("notblank") {
		t.Fatalf("expected notblank failure, got %v", vErrs)
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("userapi", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "userapi"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"userapi"`
	}

	if err := ValidateStruct(custom{Value: "userapi"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}
