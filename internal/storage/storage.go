// Пакет storage — общий контракт бэкендов хранения записей индекса.
// Бэкенды хранят запись в текстовом столбце (или файле) в форме,
// которую производит codec.ToStorageText, и никогда не интерпретируют её.
package storage

import "errors"

// ErrNotFound — запись с указанным ключом отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// TableName — имя таблицы записей в реляционных бэкендах.
const TableName = "manta_entries"

// MaxListLimit — верхняя граница размера страницы ListRows.
const MaxListLimit = 1000

// ClampLimit приводит размер страницы к диапазону [1, MaxListLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
