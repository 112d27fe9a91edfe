package codec

import "github.com/bigkaa/goartstore/metadata-index/internal/domain/model"

// Row — сырая строка хранилища: идентификатор и текст записи.
type Row struct {
	ID   string
	Text string
}

// Corrupt — строка, которую не удалось декодировать.
type Corrupt struct {
	ID  string
	Err error
}

// DecodeRows декодирует строки по одной. Повреждённая строка попадает
// в corrupt и не прерывает обработку остальных; порядок сохраняется.
func DecodeRows(rows []Row) (records []model.Record, corrupt []Corrupt) {
	records = make([]model.Record, 0, len(rows))
	for _, row := range rows {
		r, err := FromStorageText(row.Text)
		if err != nil {
			corrupt = append(corrupt, Corrupt{ID: row.ID, Err: err})
			continue
		}
		records = append(records, r)
	}
	return records, corrupt
}
