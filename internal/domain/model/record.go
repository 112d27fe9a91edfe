// Пакет model — схема записей индекса метаданных объектного хранилища.
// Record — размеченное объединение (дискриминант "type") ровно двух
// вариантов: ObjectRecord (объект) и DirectoryRecord (директория).
// Пакет не выполняет ввода-вывода: все операции — чистые преобразования
// над значениями, безопасные для конкурентного использования.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind — дискриминант записи.
type Kind string

const (
	// KindObject — запись объекта
	KindObject Kind = "object"
	// KindDirectory — запись директории
	KindDirectory Kind = "directory"
)

// ParseKind разбирает дискриминант без учёта регистра:
// исторически использовались написания "object"/"Object" и "directory"/"Directory".
func ParseKind(s string) (Kind, error) {
	switch {
	case strings.EqualFold(s, string(KindObject)):
		return KindObject, nil
	case strings.EqualFold(s, string(KindDirectory)):
		return KindDirectory, nil
	default:
		return "", &InvalidFormatError{
			Field:  fieldType.canonical(),
			Reason: fmt.Sprintf("неизвестный тип записи %q", s),
		}
	}
}

// Record — запись индекса. Реализуется только ObjectRecord и DirectoryRecord
// (значениями; Decode всегда возвращает значения, не указатели).
type Record interface {
	// Kind возвращает дискриминант варианта.
	Kind() Kind
	// EntryKey возвращает ключ записи в индексе.
	EntryKey() string
	// Validate проверяет доменные инварианты (UUID, идентификаторы шардов и т.д.).
	Validate() error

	isRecord()
}

// ShardReplica — одна реплика содержимого объекта: датацентр и узел хранения.
type ShardReplica struct {
	// Datacenter — имя датацентра
	Datacenter string
	// StorageID — идентификатор узла хранения (manta_storage_id),
	// формат "<номер шарда>.<сегмент>.<сегмент>", например "1.stor.us-east"
	StorageID string
}

// ObjectRecord — запись объекта.
type ObjectRecord struct {
	// Headers — произвольные заголовки объекта (JSON-объект, nil для null)
	Headers map[string]any
	// Key — ключ записи в индексе (непустой)
	Key string
	// Mtime — время модификации в миллисекундах, не отрицательное.
	// Знаковый тип соответствует целочисленному столбцу реляционного хранилища.
	Mtime int64
	// Name — имя листа
	Name string
	// Creator — идентификатор создателя
	Creator string
	// Dirname — путь родительской директории
	Dirname string
	// Owner — UUID владельца
	Owner string
	// Roles — роли доступа
	Roles []string
	// Vnode — виртуальный узел распределения, не отрицательный
	Vnode int64

	// ContentLength — размер содержимого в байтах (по умолчанию 0)
	ContentLength uint64
	// ContentMD5 — base64 от 16-байтового MD5-дайджеста (по умолчанию "")
	ContentMD5 string
	// ContentType — MIME-тип содержимого (по умолчанию "")
	ContentType string
	// ObjectID — UUID объекта, если задан (по умолчанию "")
	ObjectID string
	// ETag — UUID версии содержимого, если задан (по умолчанию "")
	ETag string
	// Sharks — реплики содержимого (по умолчанию пусто)
	Sharks []ShardReplica
}

// DirectoryRecord — запись директории.
type DirectoryRecord struct {
	Creator string
	Dirname string
	Headers map[string]any
	Key     string
	Mtime   int64
	Name    string
	Owner   string
	Roles   []string
	Vnode   int64
}

// Kind возвращает KindObject.
func (ObjectRecord) Kind() Kind { return KindObject }

// EntryKey возвращает ключ объекта.
func (o ObjectRecord) EntryKey() string { return o.Key }

func (ObjectRecord) isRecord() {}

// Kind возвращает KindDirectory.
func (DirectoryRecord) Kind() Kind { return KindDirectory }

// EntryKey возвращает ключ директории.
func (d DirectoryRecord) EntryKey() string { return d.Key }

func (DirectoryRecord) isRecord() {}

var errNilRecord = errors.New("запись не задана")

// Decode разбирает JSON-представление записи.
// Дискриминант обязателен и принимается без учёта регистра.
// Поля ищутся по каноническому имени, затем по алиасам; отсутствующим
// полям со значением по умолчанию подставляется значение по умолчанию.
// Decode не проверяет доменные инварианты — для этого есть Validate.
func Decode(data []byte) (Record, error) {
	d, err := newFieldDecoder(data, "")
	if err != nil {
		return nil, err
	}

	switch d.kind(false) {
	case KindObject:
		o := decodeObject(d)
		if d.err != nil {
			return nil, d.err
		}
		return o, nil
	case KindDirectory:
		dir := decodeDirectory(d)
		if d.err != nil {
			return nil, d.err
		}
		return dir, nil
	default:
		return nil, d.err
	}
}

// Encode кодирует запись в JSON: дискриминант в каноническом написании,
// все поля под каноническими именами, включая поля со значениями по умолчанию.
func Encode(r Record) ([]byte, error) {
	switch v := r.(type) {
	case ObjectRecord:
		return v.MarshalJSON()
	case *ObjectRecord:
		if v == nil {
			return nil, errNilRecord
		}
		return v.MarshalJSON()
	case DirectoryRecord:
		return v.MarshalJSON()
	case *DirectoryRecord:
		if v == nil {
			return nil, errNilRecord
		}
		return v.MarshalJSON()
	default:
		return nil, errNilRecord
	}
}

// MarshalJSON реализует json.Marshaler.
func (o ObjectRecord) MarshalJSON() ([]byte, error) {
	var e fieldEncoder
	e.put(fieldType, KindObject)
	e.put(fieldHeaders, o.Headers)
	e.put(fieldKey, o.Key)
	e.put(fieldMtime, o.Mtime)
	e.put(fieldName, o.Name)
	e.put(fieldCreator, o.Creator)
	e.put(fieldDirname, o.Dirname)
	e.put(fieldOwner, o.Owner)
	e.put(fieldRoles, nonNilStrings(o.Roles))
	e.put(fieldVnode, o.Vnode)
	e.put(fieldContentLength, o.ContentLength)
	e.put(fieldContentMD5, o.ContentMD5)
	e.put(fieldContentType, o.ContentType)
	e.put(fieldObjectID, o.ObjectID)
	e.put(fieldETag, o.ETag)
	e.put(fieldSharks, nonNilSharks(o.Sharks))
	return e.bytes()
}

// UnmarshalJSON реализует json.Unmarshaler. Поле "type" может отсутствовать,
// но если оно есть — должно обозначать объект.
func (o *ObjectRecord) UnmarshalJSON(data []byte) error {
	d, err := newFieldDecoder(data, "")
	if err != nil {
		return err
	}
	if k := d.kind(true); d.err == nil && k != "" && k != KindObject {
		return &InvalidFormatError{Field: fieldType.canonical(), Reason: fmt.Sprintf("ожидается %q, получено %q", KindObject, k)}
	}
	rec := decodeObject(d)
	if d.err != nil {
		return d.err
	}
	*o = rec
	return nil
}

// MarshalJSON реализует json.Marshaler.
func (dir DirectoryRecord) MarshalJSON() ([]byte, error) {
	var e fieldEncoder
	e.put(fieldType, KindDirectory)
	e.put(fieldCreator, dir.Creator)
	e.put(fieldDirname, dir.Dirname)
	e.put(fieldHeaders, dir.Headers)
	e.put(fieldKey, dir.Key)
	e.put(fieldMtime, dir.Mtime)
	e.put(fieldName, dir.Name)
	e.put(fieldOwner, dir.Owner)
	e.put(fieldRoles, nonNilStrings(dir.Roles))
	e.put(fieldVnode, dir.Vnode)
	return e.bytes()
}

// UnmarshalJSON реализует json.Unmarshaler. Поле "type" может отсутствовать,
// но если оно есть — должно обозначать директорию.
func (dir *DirectoryRecord) UnmarshalJSON(data []byte) error {
	d, err := newFieldDecoder(data, "")
	if err != nil {
		return err
	}
	if k := d.kind(true); d.err == nil && k != "" && k != KindDirectory {
		return &InvalidFormatError{Field: fieldType.canonical(), Reason: fmt.Sprintf("ожидается %q, получено %q", KindDirectory, k)}
	}
	rec := decodeDirectory(d)
	if d.err != nil {
		return d.err
	}
	*dir = rec
	return nil
}

// MarshalJSON реализует json.Marshaler.
func (s ShardReplica) MarshalJSON() ([]byte, error) {
	var e fieldEncoder
	e.put(fieldDatacenter, s.Datacenter)
	e.put(fieldStorageID, s.StorageID)
	return e.bytes()
}

// UnmarshalJSON реализует json.Unmarshaler.
func (s *ShardReplica) UnmarshalJSON(data []byte) error {
	d, err := newFieldDecoder(data, "")
	if err != nil {
		return err
	}
	rec := decodeShard(d)
	if d.err != nil {
		return d.err
	}
	*s = rec
	return nil
}

// Порядок чтения полей совпадает с порядком при кодировании,
// поэтому первая ошибка относится к первому неверному полю.

func decodeObject(d *fieldDecoder) ObjectRecord {
	return ObjectRecord{
		Headers:       d.object(fieldHeaders),
		Key:           d.str(fieldKey),
		Mtime:         d.signed(fieldMtime),
		Name:          d.str(fieldName),
		Creator:       d.str(fieldCreator),
		Dirname:       d.str(fieldDirname),
		Owner:         d.str(fieldOwner),
		Roles:         d.stringList(fieldRoles),
		Vnode:         d.signed(fieldVnode),
		ContentLength: d.unsigned(fieldContentLength),
		ContentMD5:    d.str(fieldContentMD5),
		ContentType:   d.str(fieldContentType),
		ObjectID:      d.str(fieldObjectID),
		ETag:          d.str(fieldETag),
		Sharks:        d.sharks(fieldSharks),
	}
}

func decodeDirectory(d *fieldDecoder) DirectoryRecord {
	return DirectoryRecord{
		Creator: d.str(fieldCreator),
		Dirname: d.str(fieldDirname),
		Headers: d.object(fieldHeaders),
		Key:     d.str(fieldKey),
		Mtime:   d.signed(fieldMtime),
		Name:    d.str(fieldName),
		Owner:   d.str(fieldOwner),
		Roles:   d.stringList(fieldRoles),
		Vnode:   d.signed(fieldVnode),
	}
}

func decodeShard(d *fieldDecoder) ShardReplica {
	return ShardReplica{
		Datacenter: d.str(fieldDatacenter),
		StorageID:  d.str(fieldStorageID),
	}
}
