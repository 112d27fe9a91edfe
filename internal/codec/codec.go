// Пакет codec — адаптер между записью индекса и текстовым столбцом хранилища.
// Текстовое представление совпадает с JSON-представлением записи:
// компактная однострочная строка без управляющих символов.
// Адаптер реализован один раз и параметризует любой бэкенд с текстовым
// столбцом: database/sql и pgx (Column), файловые и key-value хранилища
// (TextSink / TextSource).
package codec

import (
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
)

// Операции кодека для сообщений об ошибках.
const (
	opEncode = "кодирование"
	opDecode = "декодирование"
)

// Error — ошибка преобразования записи в текст хранилища или обратно.
// Cause — исходная ошибка (в том числе *model.MissingFieldError и др.),
// доступная через errors.As.
type Error struct {
	Op    string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ошибка кодека (%s): %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// errControlChar — в тексте осталась неэкранированная управляющая последовательность.
var errControlChar = errors.New("текст содержит неэкранированный управляющий символ")

// ToStorageText кодирует запись в текст для хранилища.
// Запись, которую кодирование исказило бы (некорректный UTF-8, заголовки
// непредставимых типов), отклоняется, а не сохраняется с потерями.
func ToStorageText(r model.Record) (string, error) {
	if err := model.CheckLossless(r); err != nil {
		return "", &Error{Op: opEncode, Cause: err}
	}
	data, err := model.Encode(r)
	if err != nil {
		return "", &Error{Op: opEncode, Cause: err}
	}
	// формат однострочный: сырых управляющих байтов в тексте быть не должно
	for _, b := range data {
		if b < 0x20 {
			return "", &Error{Op: opEncode, Cause: errControlChar}
		}
	}
	return string(data), nil
}

// FromStorageText декодирует запись из текста хранилища.
// Не паникует на произвольном входе: любая проблема возвращается как *Error.
func FromStorageText(s string) (model.Record, error) {
	r, err := model.Decode([]byte(s))
	if err != nil {
		return nil, &Error{Op: opDecode, Cause: err}
	}
	return r, nil
}
