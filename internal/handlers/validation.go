package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/userapi/internal/middleware"
	apperrors "github.com/charlesng35/userapi/pkg/errors"
	appValidator "github.com/charlesng35/userapi/pkg/validator"
)

// bindJSON decodes the request body into dest. Oversize bodies map to 413 and
// malformed JSON to 400; the error is attached to the context and false returned.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.Abort(c, apperrors.ErrPayloadTooLarge)
			return false
		}
		middleware.Abort(c, apperrors.NewValidation("Invalid JSON payload").WithInternal(err))
		return false
	}
	return true
}

// validate runs struct rules against dest and attaches a 400 on failure.
// When blank is non-nil it replaces the message for required or blank fields.
func validate(c *gin.Context, dest any, blank *apperrors.AppError) bool {
	err := appValidator.ValidateStruct(dest)
	if err == nil {
		return true
	}

	var ve appValidator.ValidationErrors
	if blank != nil && errors.As(err, &ve) && (ve.HasTag("notblank") || ve.HasTag("required")) {
		middleware.Abort(c, blank)
		return false
	}
	middleware.Abort(c, apperrors.NewValidation(formatValidationError(err)))
	return false
}

func formatValidationError(err error) string {
	var ve appValidator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Invalid request payload"
	}

	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		field := prettifyFieldName(failure.Field)
		switch failure.Tag {
		case "required", "notblank":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be a valid email address", field))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", field, failure.Param))
		default:
			if failure.Param != "" {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param))
			} else {
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, failure.Tag))
			}
		}
	}
	return strings.Join(messages, "; ")
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ToLower(name)
	return strings.ToUpper(name[:1]) + name[1:]
}
