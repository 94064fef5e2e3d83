package middleware

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/interfaces/http/dto"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "X-Request-ID"

// fixedMessages covers validation tags whose message needs no parameter.
var fixedMessages = map[string]string{
	"required":         "This field is required",
	"email":            "Invalid email format",
	"uuid":             "Invalid UUID format",
	"url":              "Invalid URL format",
	"numeric":          "Must be numeric",
	"alphanum":         "Must be alphanumeric",
	"alpha":            "Must contain only letters",
	"academic_session": "Must be an academic session like 2023/2024",
}

// paramMessages covers tags whose message embeds the tag parameter.
var paramMessages = map[string]string{
	"len":   "Must be exactly %s characters",
	"oneof": "Must be one of: %s",
	"gte":   "Must be greater than or equal to %s",
	"lte":   "Must be less than or equal to %s",
	"gt":    "Must be greater than %s",
	"lt":    "Must be less than %s",
}

// SetupValidator configures gin's binding validator: error field names come
// from json (or form) tags, and the academic_session tag accepts labels
// like "2023/2024" where the second year follows the first.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(jsonFieldName)

	_ = v.RegisterValidation("academic_session", func(fl validator.FieldLevel) bool {
		_, err := valueobject.ParseSession(fl.Field().String())
		return err == nil
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
	}
	return name
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{
				Field:   fe.Field(),
				Message: getValidationMessage(fe),
			})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError answers the request with a 400 describing every
// failed field.
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, getRequestIDFromContext(c)))
}

func getRequestIDFromContext(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

func getValidationMessage(e validator.FieldError) string {
	tag := e.Tag()
	if msg, ok := fixedMessages[tag]; ok {
		return msg
	}

	// min and max read as bounds on numbers but as lengths on strings
	switch tag {
	case "min":
		return sizeMessage("Must be at least ", e)
	case "max":
		return sizeMessage("Must be at most ", e)
	}

	if tmpl, ok := paramMessages[tag]; ok {
		return strings.Replace(tmpl, "%s", e.Param(), 1)
	}
	return "Invalid value"
}

func sizeMessage(prefix string, e validator.FieldError) string {
	if e.Type().Kind() == reflect.String {
		return prefix + e.Param() + " characters"
	}
	return prefix + e.Param()
}
