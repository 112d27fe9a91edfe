// errors.go — ошибки декодирования и валидации записей индекса.
package model

import (
	"errors"
	"fmt"
)

// Категории ошибок. Типизированные ошибки ниже сопоставляются с ними
// через errors.Is, поэтому вызывающему коду не нужен errors.As,
// если конкретное поле не интересует.
var (
	// ErrMissingField — обязательное поле отсутствует.
	ErrMissingField = errors.New("обязательное поле отсутствует")
	// ErrTypeMismatch — поле присутствует, но имеет неверный JSON-тип.
	ErrTypeMismatch = errors.New("неверный тип поля")
	// ErrInvalidFormat — значение не удовлетворяет ограничениям домена.
	ErrInvalidFormat = errors.New("некорректный формат значения")
)

// MissingFieldError — обязательное поле не найдено ни под каноническим
// именем, ни под одним из алиасов, и значения по умолчанию у поля нет.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("поле %q: %s", e.Field, ErrMissingField)
}

// Is сопоставляет ошибку с ErrMissingField.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// TypeMismatchError — поле присутствует, но JSON-значение другой формы
// (например, число там, где ожидается строка).
type TypeMismatchError struct {
	Field    string
	Expected string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("поле %q: %s, ожидается %s", e.Field, ErrTypeMismatch, e.Expected)
}

// Is сопоставляет ошибку с ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// InvalidFormatError — значение корректной формы, но нарушает ограничение
// домена: не UUID, неверный идентификатор шарда, неверный base64,
// выход за диапазон целого.
type InvalidFormatError struct {
	Field  string
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("поле %q: %s: %s", e.Field, ErrInvalidFormat, e.Reason)
}

// Is сопоставляет ошибку с ErrInvalidFormat.
func (e *InvalidFormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}
