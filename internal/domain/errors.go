package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Retryable  bool   `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Retryable:  e.Retryable,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrTenantRequired = &AppError{
		Code:       "TENANT_REQUIRED",
		Message:    "Missing or invalid X-Tenant-ID header",
		StatusCode: 400,
	}

	ErrProfileNotFound = &AppError{
		Code:       "PROFILE_NOT_FOUND",
		Message:    "Face profile not found",
		StatusCode: 404,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrLowQuality = &AppError{
		Code:       "LOW_QUALITY_IMAGE",
		Message:    "Image quality too low for reliable recognition",
		StatusCode: 422,
	}

	ErrInvalidEmbedding = &AppError{
		Code:       "INVALID_EMBEDDING",
		Message:    "Embedding vector is zero-norm or contains non-finite values",
		StatusCode: 422,
	}

	// ErrVectorStoreUnavailable signals that the backing vector store is
	// unreachable or rebuilding. It is retryable by the caller and must never
	// be conflated with an empty search result.
	ErrVectorStoreUnavailable = &AppError{
		Code:       "VECTOR_STORE_UNAVAILABLE",
		Message:    "Vector store is unreachable, retry later",
		StatusCode: 503,
		Retryable:  true,
	}

	ErrPartitionFailed = &AppError{
		Code:       "PARTITION_ERROR",
		Message:    "Tenant partition could not be created",
		StatusCode: 500,
	}

	ErrIndexWriteFailed = &AppError{
		Code:       "INDEX_WRITE_FAILURE",
		Message:    "Embedding could not be written to the index",
		StatusCode: 500,
	}
)
