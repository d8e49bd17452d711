package serverutils

import (
	"errors"

	"doc-qa-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts service errors into the structured JSON
// failure contract: {code, stage, message, document_id?}.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		if pe := apperror.AsPipelineError(err); pe != nil {
			body := fiber.Map{
				"code":    pe.Code,
				"stage":   pe.Stage,
				"message": pe.Message,
			}
			if pe.DocumentId != nil {
				body["document_id"] = pe.DocumentId
			}
			return ctx.Status(apperror.HTTPStatus(pe.Code)).JSON(body)
		}

		if errors.Is(err, apperror.ErrDocumentNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"code":    apperror.CodeDocumentNotFound,
				"message": "document not found",
			})
		}

		var ve *ValidationError
		if errors.As(err, &ve) {
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"code":    apperror.CodeInvalidBatchRequest,
				"message": ve.Message,
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return ctx.Status(fe.Code).JSON(fiber.Map{
				"code":    apperror.CodeInternal,
				"message": fe.Message,
			})
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    apperror.CodeInternal,
			"message": err.Error(),
		})
	}
}
