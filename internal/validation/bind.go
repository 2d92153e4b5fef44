package validation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

// BindDraft binds a JSON draft, recomputes its totals and runs the validator.
// On failure it writes a 400 and returns the error so the handler can short-circuit.
func BindDraft(c *gin.Context, out *procurement.Draft, v *Validator) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_request_body",
			"msg":   err.Error(),
		})
		return err
	}
	procurement.RecomputeTotal(out)

	if err := v.Validate(*out); err != nil {
		WriteError(c, err)
		return err
	}
	return nil
}

// WriteError renders a validation failure; anything else becomes a 500.
func WriteError(c *gin.Context, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "validation_failed",
			"code":  ve.Code,
			"field": ve.Field,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "validation_error", "msg": err.Error()})
}
