// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrValidation — запись не разобрана или нарушает инварианты.
	ErrValidation = errors.New("ошибка валидации")
	// ErrCorrupted — текст записи в хранилище не декодируется.
	ErrCorrupted = errors.New("запись в хранилище повреждена")
)
