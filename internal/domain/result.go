package domain

import "errors"

// Error codes carried by ErrorInfo.
const (
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION_ERROR"
	CodeConflict   = "CONFLICT"
	CodePermission = "PERMISSION_DENIED"
	CodeRepository = "REPOSITORY_ERROR"
	CodeInternal   = "INTERNAL_ERROR"
)

// ErrorInfo is the one structured failure shape returned in results.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ErrorInfo) Error() string { return e.Message }

// ToErrorInfo normalizes any error into an ErrorInfo. It returns nil for nil.
func ToErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info
	}

	out := &ErrorInfo{Code: CodeInternal, Message: err.Error()}
	switch {
	case errors.Is(err, ErrPermission):
		out.Code = CodePermission
	case errors.Is(err, ErrNotFound):
		out.Code = CodeNotFound
	case errors.Is(err, ErrValidation):
		out.Code = CodeValidation
	case errors.Is(err, ErrConflict):
		out.Code = CodeConflict
	case errors.Is(err, ErrRepository):
		out.Code = CodeRepository
		var repoErr *RepositoryError
		if errors.As(err, &repoErr) {
			out.Details = repoErr.Details
		}
	}
	return out
}
