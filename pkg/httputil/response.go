package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	playground "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/chairside/pkg/errors"
	"github.com/jwalitptl/chairside/pkg/validator"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithCreated sends a 201 success response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithMessage sends a success response with only a message
func RespondWithMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{
		Status:  "success",
		Message: message,
	})
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	message := "internal server error"
	var details interface{}

	var verrs validator.Errors
	var bindErrs playground.ValidationErrors

	if appErr, ok := errors.As(err); ok {
		statusCode = appErr.StatusCode()
		message = appErr.Message
		if stderrors.As(appErr.Err, &verrs) {
			details = verrs
		}
	} else if stderrors.As(err, &verrs) {
		statusCode = http.StatusBadRequest
		message = "validation failed"
		details = verrs
	} else if stderrors.As(err, &bindErrs) {
		statusCode = http.StatusBadRequest
		message = "validation failed"
		details = describeBinding(bindErrs)
	}

	if statusCode >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	c.AbortWithStatusJSON(statusCode, Response{
		Status:  "error",
		Message: message,
		Errors:  details,
	})
}

// RespondWithBindError reports a request body or query that failed to bind.
func RespondWithBindError(c *gin.Context, err error) {
	var bindErrs playground.ValidationErrors
	if stderrors.As(err, &bindErrs) {
		RespondWithError(c, err)
		return
	}
	RespondWithError(c, errors.BadRequest("invalid request: "+err.Error(), err))
}

func describeBinding(errs playground.ValidationErrors) validator.Errors {
	out := make(validator.Errors, 0, len(errs))
	for _, fe := range errs {
		out = append(out, validator.FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}
