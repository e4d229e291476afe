// Package errors provides structured error handling for reqlens.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, index)
//   - 3XX: Network errors (requirements source)
//   - 4XX: Validation errors (records, vectors, queries)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and index I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates requirements-source network errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates record and input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound      = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFileUnsupported   = "ERR_202_FILE_UNSUPPORTED"
	ErrCodeCorruptIndex      = "ERR_203_CORRUPT_INDEX"
	ErrCodeIndexLocked       = "ERR_204_INDEX_LOCKED"
	ErrCodeMetadataStore     = "ERR_205_METADATA_STORE"

	// Network errors (300-399)
	ErrCodePageFetch          = "ERR_301_PAGE_FETCH"
	ErrCodeSourceUnavailable  = "ERR_302_SOURCE_UNAVAILABLE"
	ErrCodeSourceUnauthorized = "ERR_303_SOURCE_UNAUTHORIZED"

	// Validation errors (400-499)
	ErrCodeMalformedRecord   = "ERR_401_MALFORMED_RECORD"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_403_QUERY_EMPTY"
	ErrCodeInvalidInput      = "ERR_404_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeModelUnavailable = "ERR_501_MODEL_UNAVAILABLE"
	ErrCodeEmbeddingFailed  = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed     = "ERR_503_SEARCH_FAILED"
	ErrCodeInternal         = "ERR_504_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract leading digit of the numeric portion (e.g., "1" from "ERR_101_...")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeModelUnavailable, ErrCodeCorruptIndex, ErrCodeSourceUnauthorized:
		// Shared infrastructure failures abort the process.
		return SeverityFatal
	case ErrCodeMalformedRecord:
		// Record-local: skipped with a warning, never aborts a batch.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodePageFetch, ErrCodeSourceUnavailable:
		return true
	default:
		return false
	}
}
