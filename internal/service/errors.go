package service

import (
	"errors"
	"fmt"
)

const (
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION_ERROR"
	CodeStorage    = "STORAGE_ERROR"
	CodeCommand    = "COMMAND_ERROR"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewNotFound(resource string, id int64) *BusinessError {
	return NewBusinessError(CodeNotFound,
		fmt.Sprintf("%s %d не найден(а)", resource, id),
		ToDetail("resource", resource),
		ToDetail("id", id),
	)
}

func NewValidationError(field, reason string) *BusinessError {
	return NewBusinessError(CodeValidation,
		fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		ToDetail("field", field),
		ToDetail("reason", reason),
	)
}

func NewStorageFailure(op string, err error) *BusinessError {
	busErr := NewBusinessError(CodeStorage, fmt.Sprintf("ошибка хранилища: %s", op), ToDetail("op", op))
	busErr.Err = err
	return busErr
}

// NewCommandFailure - отклонённая команда пользователя; текст показывается как есть
func NewCommandFailure(message string, err error) *BusinessError {
	busErr := NewBusinessError(CodeCommand, message)
	busErr.Err = err
	return busErr
}

// AsBusinessError достаёт BusinessError из цепочки
func AsBusinessError(err error) (*BusinessError, bool) {
	var bErr *BusinessError
	if errors.As(err, &bErr) {
		return bErr, true
	}
	return nil, false
}
