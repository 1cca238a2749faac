package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/asinehq/asine-console/pkg/errors"
	"github.com/asinehq/asine-console/pkg/validator"
)

// bindAndValidate decodes the JSON body into req and applies the struct's
// validation tags. Returns a client-facing AppError on failure.
func bindAndValidate(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperrors.NewBadRequest("Invalid request payload")
	}
	if err := validator.ValidateStruct(req); err != nil {
		var failures validator.ValidationErrors
		if errors.As(err, &failures) {
			return apperrors.NewBadRequest(failures.Error())
		}
		return apperrors.NewBadRequest("Invalid request payload")
	}
	return nil
}
