package codec

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
)

var errNullColumn = errors.New("столбец записи содержит NULL")

// Column — запись в текстовом столбце. Реализует driver.Valuer и sql.Scanner,
// поэтому одинаково привязывается к параметрам запроса и сканируется из
// результата в database/sql (SQLite, MySQL, PostgreSQL) и в pgx.
type Column struct {
	Record model.Record
}

// Value реализует driver.Valuer.
func (c Column) Value() (driver.Value, error) {
	return ToStorageText(c.Record)
}

// Scan реализует sql.Scanner. Драйверы возвращают текстовый столбец
// как string или []byte, в зависимости от движка.
func (c *Column) Scan(src any) error {
	var text string
	switch v := src.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	case nil:
		return &Error{Op: opDecode, Cause: errNullColumn}
	default:
		return &Error{Op: opDecode, Cause: fmt.Errorf("неподдерживаемый тип столбца %T", src)}
	}

	r, err := FromStorageText(text)
	if err != nil {
		return err
	}
	c.Record = r
	return nil
}
