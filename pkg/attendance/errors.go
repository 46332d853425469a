package attendance

import (
	"errors"
	"fmt"
)

// ErrorCode identifies why an attendance operation failed.
type ErrorCode string

const (
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeUnknownGroup    ErrorCode = "UNKNOWN_GROUP"
	ErrCodeUnknownSubject  ErrorCode = "UNKNOWN_SUBJECT"
	ErrCodeCamera          ErrorCode = "CAMERA_ERROR"
	ErrCodeIncomplete      ErrorCode = "INCOMPLETE_ENROLLMENT"
	ErrCodeNotEnrolled     ErrorCode = "NOT_ENROLLED"
	ErrCodeNoTrainingFaces ErrorCode = "NO_TRAINING_FACES"
	ErrCodeNotRecognized   ErrorCode = "NOT_RECOGNIZED"
	ErrCodeStorage         ErrorCode = "STORAGE_ERROR"
	ErrCodeLedger          ErrorCode = "LEDGER_ERROR"
)

// Error is a structured attendance error carrying an operator-facing message.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Operator-facing messages
var errorMessages = map[ErrorCode]string{
	ErrCodeInvalidInput:    "Fill all fields.",
	ErrCodeUnknownGroup:    "Unknown department.",
	ErrCodeUnknownSubject:  "Unknown subject.",
	ErrCodeCamera:          "Cannot open webcam.",
	ErrCodeIncomplete:      "Registration incomplete, not enough images captured.",
	ErrCodeNotEnrolled:     "Not registered or no images.",
	ErrCodeNoTrainingFaces: "No training faces. Please re-register.",
	ErrCodeNotRecognized:   "Face not recognized.",
	ErrCodeStorage:         "Failed to store face images.",
	ErrCodeLedger:          "Failed to record attendance.",
}

// GetErrorMessage returns the operator-facing message for an error code.
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Operation failed"
}

// NewError creates an Error for code wrapping cause, which may be nil.
func NewError(code ErrorCode, cause error) *Error {
	return &Error{
		Code:    code,
		Message: GetErrorMessage(code),
		Details: make(map[string]interface{}),
		Err:     cause,
	}
}

func incompleteError(captured, target int) *Error {
	e := NewError(ErrCodeIncomplete, nil)
	e.Message = fmt.Sprintf("Only captured %d images.", captured)
	e.Details["captured"] = captured
	e.Details["target"] = target
	return e
}

// CodeOf returns the code of an *Error anywhere in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
