package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Detected workbook formats
const (
	TypeXLSX = "XLSX"
	TypeXLS  = "XLS"
)

// Spreadsheet MIME types
const (
	MimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeXLS         = "application/vnd.ms-excel"
	MimeOctetStream = "application/octet-stream"
)

// ValidationResult contains the results of file validation
type ValidationResult struct {
	Valid        bool     `json:"valid"`
	DetectedType string   `json:"detected_type"` // "XLSX" or "XLS"
	ContentType  string   `json:"content_type"`
	Size         int64    `json:"size"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
}

// FileValidator validates uploaded workbooks before they reach the parser
type FileValidator struct {
	maxSizeBytes int64
	allowedTypes map[string]bool
	magicBytes   map[string][]byte
}

// File magic bytes signatures
var fileMagicBytes = map[string][]byte{
	TypeXLSX: {0x50, 0x4B, 0x03, 0x04},                         // ZIP container
	TypeXLS:  {0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, // OLE2 compound file
}

// Allowed MIME types for file uploads
var allowedMimeTypes = map[string]bool{
	MimeXLSX:        true,
	MimeXLS:         true,
	MimeOctetStream: true,
}

// Allowed file extensions and the format each must contain
var allowedExtensions = map[string]string{
	".xlsx": TypeXLSX,
	".xls":  TypeXLS,
}

// NewFileValidator creates a new file validator with the specified maximum file size
func NewFileValidator(maxSizeBytes int64) *FileValidator {
	return &FileValidator{
		maxSizeBytes: maxSizeBytes,
		allowedTypes: allowedMimeTypes,
		magicBytes:   fileMagicBytes,
	}
}

// ValidateFile reads the whole upload and validates it
func (v *FileValidator) ValidateFile(reader io.Reader, filename, contentType string) (*ValidationResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return v.ValidateBytes(data, filename, contentType), nil
}

// ValidateBytes performs every check on an upload already held in memory
func (v *FileValidator) ValidateBytes(data []byte, filename, contentType string) *ValidationResult {
	result := &ValidationResult{
		Valid:       true,
		ContentType: contentType,
		Errors:      []string{},
		Warnings:    []string{},
	}

	// 1. Validate filename
	if err := v.ValidateFilename(filename); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	// 2. Validate MIME type
	if err := v.ValidateMimeType(contentType); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	} else if contentType == MimeOctetStream {
		result.Warnings = append(result.Warnings, "generic content type, format checked from content only")
	}

	// 3. Validate file size
	result.Size = int64(len(data))
	if err := v.ValidateFileSize(result.Size); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	// 4. Detect file type from magic bytes
	detectedType, err := v.ValidateMagicBytes(data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.DetectedType = detectedType

	// 5. Extension and MIME type must agree with the content
	if want, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]; ok && want != detectedType {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("file extension does not match %s content", detectedType))
	}
	if !v.isContentTypeMatch(contentType, detectedType) {
		result.Valid = false
		result.Errors = append(result.Errors, "MIME type does not match file content")
	}

	return result
}

// ValidateFilename validates the filename for security issues
func (v *FileValidator) ValidateFilename(filename string) error {
	// Check for empty filename
	if filename == "" {
		return errors.New("filename cannot be empty")
	}

	// Check for path traversal attempts
	if strings.Contains(filename, "..") {
		return errors.New("filename contains path traversal")
	}

	// Check for null bytes
	if strings.Contains(filename, "\x00") {
		return errors.New("filename contains null bytes")
	}

	// Check for absolute paths
	if strings.HasPrefix(filename, "/") || strings.HasPrefix(filename, "\\") {
		return errors.New("filename cannot be absolute path")
	}

	// Check extension
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return errors.New("filename must have an extension")
	}

	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("unsupported file extension: %s", ext)
	}

	return nil
}

// ValidateMimeType validates the MIME type is allowed
func (v *FileValidator) ValidateMimeType(contentType string) error {
	if contentType == "" {
		return errors.New("MIME type cannot be empty")
	}

	if !v.allowedTypes[contentType] {
		return fmt.Errorf("unsupported MIME type: %s", contentType)
	}

	return nil
}

// ValidateMagicBytes detects the workbook format from its signature
func (v *FileValidator) ValidateMagicBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty file")
	}

	if bytes.HasPrefix(data, v.magicBytes[TypeXLSX]) {
		return TypeXLSX, nil
	}

	if bytes.HasPrefix(data, v.magicBytes[TypeXLS]) {
		return TypeXLS, nil
	}

	return "", errors.New("unsupported file type based on content")
}

// ValidateFileSize validates the file size is within limits
func (v *FileValidator) ValidateFileSize(size int64) error {
	if size < 0 {
		return errors.New("invalid file size")
	}

	if size == 0 {
		return errors.New("empty file")
	}

	if size > v.maxSizeBytes {
		return fmt.Errorf("file size (%d bytes) exceeds maximum allowed size (%d bytes)", size, v.maxSizeBytes)
	}

	return nil
}

// isContentTypeMatch checks if the MIME type matches the detected file type
func (v *FileValidator) isContentTypeMatch(contentType, detectedType string) bool {
	if contentType == MimeOctetStream {
		return detectedType == TypeXLSX || detectedType == TypeXLS
	}
	switch detectedType {
	case TypeXLSX, TypeXLS:
		// Browsers label both formats inconsistently
		return contentType == MimeXLSX || contentType == MimeXLS
	default:
		return false
	}
}
