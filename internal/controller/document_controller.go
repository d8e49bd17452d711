package controller

import (
	"io"

	"doc-qa-be/internal/dto"
	"doc-qa-be/internal/pkg/serverutils"
	"doc-qa-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
}

type documentController struct {
	ingestionService service.IIngestionService
	documentService  service.IDocumentService
}

func NewDocumentController(
	ingestionService service.IIngestionService,
	documentService service.IDocumentService,
) IDocumentController {
	return &documentController{
		ingestionService: ingestionService,
		documentService:  documentService,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/documents")
	h.Post("", c.Upload)
	h.Get(":id/status", c.Status)
	h.Get(":id", c.Show)
}

func (c *documentController) Upload(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return serverutils.NewValidationError("multipart field \"file\" is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	req := dto.UploadDocumentRequest{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Contents:    contents,
	}

	res, err := c.ingestionService.Upload(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success upload document", res))
}

func (c *documentController) Status(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return serverutils.NewValidationError("document id must be a valid uuid")
	}

	res, err := c.documentService.GetStatus(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get document status", res))
}

func (c *documentController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return serverutils.NewValidationError("document id must be a valid uuid")
	}

	doc, err := c.documentService.Get(ctx.Context(), id)
	if err != nil {
		return err
	}

	res := dto.DocumentResponse{
		DocumentId:  doc.Id,
		FileName:    doc.FileName,
		Status:      string(doc.Status),
		ChunksTotal: doc.ChunksTotal,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show document", res))
}
