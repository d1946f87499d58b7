package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/ashmitsharp/receivables-api/internal/services"
)

const (
	// PresignedURLExpiry is how long a presigned upload URL stays valid
	PresignedURLExpiry = 15 * time.Minute
	// PresignedURLExpirySeconds is PresignedURLExpiry in seconds
	PresignedURLExpirySeconds = int(PresignedURLExpiry / time.Second)
)

// StorageService interface defines methods for S3 operations
type StorageService interface {
	GenerateUploadKey(filename string) (string, error)
	GeneratePresignedURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	UploadFile(ctx context.Context, key, contentType string, body io.Reader) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, key string) error
}

// FileValidator checks uploads before they are parsed
type FileValidator interface {
	ValidateBytes(data []byte, filename, contentType string) *services.ValidationResult
	ValidateFilename(filename string) error
	ValidateMimeType(contentType string) error
}

// DatasetLoader installs a workbook as the current dataset
type DatasetLoader interface {
	LoadBytes(ctx context.Context, data []byte, filename string) (*services.Dataset, error)
}

// UploadHandler handles workbook uploads
type UploadHandler struct {
	loader    DatasetLoader
	validator FileValidator
	storage   StorageService // nil when S3 is not configured
	logger    *slog.Logger
}

// NewUploadHandler creates a new upload handler. storage may be nil.
func NewUploadHandler(loader DatasetLoader, validator FileValidator, storage StorageService, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{
		loader:    loader,
		validator: validator,
		storage:   storage,
		logger:    logger,
	}
}

// Upload loads a workbook sent as multipart form field "file"
// POST /v1/upload
func (h *UploadHandler) Upload(c fiber.Ctx) error {
	// 1. Get the file from the form
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}

	// 2. Read it
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "failed to open uploaded file",
			"details": err.Error(),
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "failed to read uploaded file",
			"details": err.Error(),
		})
	}

	// 3. Validate
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = services.MimeOctetStream
	}
	validation := h.validator.ValidateBytes(data, fileHeader.Filename, contentType)
	if !validation.Valid {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid file",
			"details": validation.Errors,
		})
	}

	// 4. Parse, normalize and install
	dataset, err := h.loader.LoadBytes(c.Context(), data, fileHeader.Filename)
	if err != nil {
		h.logger.Warn("Upload rejected", "file", fileHeader.Filename, "error", err)
		return serviceError(err)
	}

	// 5. Keep a copy of the source workbook when storage is configured
	fileKey := h.archive(c.Context(), fileHeader.Filename, contentType, data)

	return c.Status(fiber.StatusCreated).JSON(buildLoadResponse(dataset, validation, fileKey))
}

// archive stores the workbook in S3. Failures are logged; the load already succeeded.
func (h *UploadHandler) archive(ctx context.Context, filename, contentType string, data []byte) string {
	if h.storage == nil {
		return ""
	}
	key, err := h.storage.GenerateUploadKey(filename)
	if err != nil {
		h.logger.Warn("Failed to generate archive key", "file", filename, "error", err)
		return ""
	}
	if err := h.storage.UploadFile(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		h.logger.Warn("Failed to archive workbook", "file", filename, "error", err)
		return ""
	}
	return key
}

// GetPresignedURL generates a presigned URL for a direct browser upload
// Query params: filename (required), content_type (required)
// Returns: upload_url, file_key, expires_in
func (h *UploadHandler) GetPresignedURL(c fiber.Ctx) error {
	if h.storage == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "storage is not configured",
		})
	}

	// 1. Get query parameters
	filename := c.Query("filename")
	contentType := c.Query("content_type")

	// 2. Validate filename
	if filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "filename is required",
		})
	}
	if err := h.validator.ValidateFilename(filename); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid filename",
			"details": err.Error(),
		})
	}

	// 3. Validate content_type
	if contentType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content_type is required",
		})
	}
	if err := h.validator.ValidateMimeType(contentType); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unsupported file type",
		})
	}

	// 4. Generate upload key
	key, err := h.storage.GenerateUploadKey(filename)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "failed to generate upload key",
			"details": err.Error(),
		})
	}

	// 5. Generate presigned URL
	url, err := h.storage.GeneratePresignedURL(c.Context(), key, contentType, PresignedURLExpiry)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "failed to generate presigned URL",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"upload_url": url,
		"file_key":   key,
		"expires_in": PresignedURLExpirySeconds,
	})
}

// ProcessUploadRequest represents the request body for ProcessUpload
type ProcessUploadRequest struct {
	FileKey string `json:"file_key"`
}

// ProcessUpload loads a workbook previously uploaded with a presigned URL
// POST /v1/upload/process
// Body: {"file_key": "uploads/1699564800-1a2b3c4d-notas.xlsx"}
func (h *UploadHandler) ProcessUpload(c fiber.Ctx) error {
	if h.storage == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "storage is not configured",
		})
	}

	// 1. Parse request body
	var req ProcessUploadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	// 2. Validate file_key
	if req.FileKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file_key is required",
		})
	}
	if !services.IsUploadKey(req.FileKey) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "forbidden - cannot access this file",
		})
	}

	// 3. Download file from S3
	reader, err := h.storage.DownloadFile(c.Context(), req.FileKey)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "file not found in storage",
		})
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "failed to read file from storage",
			"details": err.Error(),
		})
	}

	// 4. Validate content
	filename := originalFilename(req.FileKey)
	validation := h.validator.ValidateBytes(data, filename, services.MimeOctetStream)
	if !validation.Valid {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid file",
			"details": validation.Errors,
		})
	}

	// 5. Parse, normalize and install
	dataset, err := h.loader.LoadBytes(c.Context(), data, filename)
	if err != nil {
		h.logger.Warn("Stored upload rejected", "key", req.FileKey, "error", err)
		return serviceError(err)
	}

	// 6. The object is only a transfer buffer
	if err := h.storage.DeleteFile(c.Context(), req.FileKey); err != nil {
		h.logger.Warn("Failed to delete processed upload", "key", req.FileKey, "error", err)
	}

	return c.JSON(buildLoadResponse(dataset, validation, req.FileKey))
}

// originalFilename strips the "{timestamp}-{id}-" prefix added by GenerateUploadKey
func originalFilename(key string) string {
	base := filepath.Base(key)
	if parts := strings.SplitN(base, "-", 3); len(parts) == 3 {
		return parts[2]
	}
	return base
}

func buildLoadResponse(dataset *services.Dataset, validation *services.ValidationResult, fileKey string) fiber.Map {
	resp := fiber.Map{
		"dataset_id":  dataset.ID,
		"source_name": dataset.SourceName,
		"sheet":       dataset.Sheet,
		"loaded_at":   dataset.LoadedAt,
		"total_rows":  dataset.Diagnostics.TotalRows,
		"valid_rows":  dataset.Diagnostics.ValidRows,
		"diagnostics": dataset.Diagnostics,
		"warnings":    validation.Warnings,
		"status":      "success",
	}
	if fileKey != "" {
		resp["file_key"] = fileKey
	}
	return resp
}
