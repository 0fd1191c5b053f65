package handler

import (
	"fmt"
	"path/filepath"
	"time"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type UploadHandler struct {
	service   service.ImportService
	uploadDir string
}

func NewUploadHandler(s service.ImportService, uploadDir string) *UploadHandler {
	return &UploadHandler{service: s, uploadDir: uploadDir}
}

// SubmitBatch accepts a multipart upload and creates a pending batch.
// Form fields: file, kind (stock|sales), mode (merge|replace_all|
// replace_window), window (optional Go duration for replace_window),
// process=now to run the batch inline instead of leaving it for the worker.
func (h *UploadHandler) SubmitBatch(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Missing file"})
	}

	kind := model.FileKind(c.FormValue("kind"))
	mode := model.ImportMode(c.FormValue("mode", string(model.ModeMerge)))

	var window time.Duration
	if v := c.FormValue("window"); v != "" {
		window, err = time.ParseDuration(v)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid window duration"})
		}
	}

	// Stored under a fresh name; the original name survives on the batch record
	storedPath := filepath.Join(h.uploadDir, fmt.Sprintf("%s%s", uuid.New(), filepath.Ext(fileHeader.Filename)))
	if err := c.SaveFile(fileHeader, storedPath); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to store upload"})
	}

	batch, err := h.service.Submit(ownerID(c), kind, mode, fileHeader.Filename, storedPath, window)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	if c.FormValue("process") == "now" {
		report, err := h.service.Process(batch.ID)
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{
				"error":    err.Error(),
				"batch_id": batch.ID,
			})
		}
		return c.Status(201).JSON(fiber.Map{
			"message":  "Batch processed",
			"batch_id": batch.ID,
			"report":   report,
		})
	}

	return c.Status(201).JSON(fiber.Map{"message": "Batch submitted", "batch_id": batch.ID})
}

func (h *UploadHandler) ProcessBatch(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid batch ID"})
	}

	// Ownership check before touching the state machine
	if _, err := h.service.Status(ownerID(c), id); err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	report, err := h.service.Process(id)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Batch processed", "report": report})
}

func (h *UploadHandler) GetBatchStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid batch ID"})
	}

	batch, err := h.service.Status(ownerID(c), id)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(batch)
}

func (h *UploadHandler) GetRecentBatches(c *fiber.Ctx) error {
	uploads, err := h.service.Recent(ownerID(c), 10)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(uploads)
}
