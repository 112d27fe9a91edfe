// fields.go — сопоставление полей записи с внешними именами.
// Каждое поле описано упорядоченным списком имён: первое — каноническое
// (пишется при кодировании), остальные — алиасы прежних ревизий схемы
// (принимаются только при декодировании, в порядке приоритета).
// Алиасы не удаляются: на них опираются сохранённые записи и старые клиенты.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// field — описание поля во внешнем представлении.
type field struct {
	// names — каноническое имя и алиасы по убыванию приоритета
	names []string
	// optional — при отсутствии подставляется значение по умолчанию
	optional bool
}

func required(names ...string) field {
	return field{names: names}
}

func defaulted(names ...string) field {
	return field{names: names, optional: true}
}

func (f field) canonical() string {
	return f.names[0]
}

// Поля записей.
var (
	fieldType    = required("type")
	fieldKey     = required("key")
	fieldMtime   = required("mtime")
	fieldName    = required("name")
	fieldCreator = required("creator")
	fieldDirname = required("dirname")
	fieldOwner   = required("owner")
	fieldRoles   = required("roles")
	fieldVnode   = required("vnode")

	// headers отсутствует в части сохранённых записей; отсутствие равносильно null
	fieldHeaders = defaulted("headers")

	fieldContentLength = defaulted("content_length", "contentLength")
	fieldContentMD5    = defaulted("content_md5", "contentMD5", "contentMd5")
	fieldContentType   = defaulted("content_type", "contentType")
	fieldObjectID      = defaulted("object_id", "objectId")
	fieldETag          = defaulted("etag")
	fieldSharks        = defaulted("sharks")

	fieldDatacenter = required("datacenter")
	fieldStorageID  = required("manta_storage_id")
)

// Названия ожидаемых JSON-типов для TypeMismatchError.
const (
	expectString  = "строка"
	expectInteger = "целое число"
	expectObject  = "объект"
	expectStrings = "массив строк"
	expectArray   = "массив"
)

// fieldDecoder читает поля из JSON-объекта с учётом алиасов и значений
// по умолчанию. Ошибка «липкая»: после первой ошибки все методы возвращают
// нулевые значения, а первая ошибка доступна в err.
type fieldDecoder struct {
	// path — путь к объекту для сообщений об ошибках ("" для корня)
	path   string
	fields map[string]json.RawMessage
	err    error
}

// newFieldDecoder разбирает data как JSON-объект.
// Синтаксически некорректный JSON — обычная ошибка разбора,
// корректный JSON другой формы — TypeMismatchError.
func newFieldDecoder(data []byte, path string) (*fieldDecoder, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		var probe any
		err := json.Unmarshal(data, &probe)
		return nil, fmt.Errorf("некорректный JSON: %w", err)
	}
	if len(data) == 0 || data[0] != '{' {
		name := path
		if name == "" {
			name = "record"
		}
		return nil, &TypeMismatchError{Field: name, Expected: expectObject}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("некорректный JSON: %w", err)
	}
	return &fieldDecoder{path: path, fields: fields}, nil
}

// name возвращает полное имя поля для сообщений об ошибках.
func (d *fieldDecoder) name(f field) string {
	if d.path == "" {
		return f.canonical()
	}
	return d.path + "." + f.canonical()
}

func (d *fieldDecoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *fieldDecoder) mismatch(f field, expected string) {
	d.fail(&TypeMismatchError{Field: d.name(f), Expected: expected})
}

// lookup ищет поле по каноническому имени, затем по алиасам.
// found — поле присутствует под каким-либо именем; raw == nil при null.
func (d *fieldDecoder) lookup(f field) (raw json.RawMessage, found bool) {
	for _, name := range f.names {
		v, ok := d.fields[name]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if bytes.Equal(v, []byte("null")) {
			return nil, true
		}
		return v, true
	}
	return nil, false
}

// value возвращает непустое значение поля.
// raw == nil без ошибки означает «подставить значение по умолчанию».
func (d *fieldDecoder) value(f field, expected string) json.RawMessage {
	if d.err != nil {
		return nil
	}
	raw, found := d.lookup(f)
	switch {
	case raw != nil:
		return raw
	case f.optional:
		return nil
	case found:
		d.mismatch(f, expected)
	default:
		d.fail(&MissingFieldError{Field: d.name(f)})
	}
	return nil
}

func (d *fieldDecoder) str(f field) string {
	raw := d.value(f, expectString)
	if raw == nil {
		return ""
	}
	var s string
	if raw[0] != '"' || json.Unmarshal(raw, &s) != nil {
		d.mismatch(f, expectString)
		return ""
	}
	return s
}

func (d *fieldDecoder) signed(f field) int64 {
	raw := d.value(f, expectInteger)
	if raw == nil {
		return 0
	}
	if !isNumber(raw) {
		d.mismatch(f, expectInteger)
		return 0
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			d.fail(&InvalidFormatError{Field: d.name(f), Reason: "значение выходит за диапазон int64"})
		} else {
			d.mismatch(f, expectInteger)
		}
		return 0
	}
	return n
}

func (d *fieldDecoder) unsigned(f field) uint64 {
	raw := d.value(f, expectInteger)
	if raw == nil {
		return 0
	}
	if !isNumber(raw) {
		d.mismatch(f, expectInteger)
		return 0
	}
	if raw[0] == '-' {
		if _, err := strconv.ParseInt(string(raw), 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
			d.fail(&InvalidFormatError{Field: d.name(f), Reason: "отрицательное значение"})
		} else {
			d.mismatch(f, expectInteger)
		}
		return 0
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			d.fail(&InvalidFormatError{Field: d.name(f), Reason: "значение выходит за диапазон uint64"})
		} else {
			d.mismatch(f, expectInteger)
		}
		return 0
	}
	return n
}

// stringList читает массив строк. Результат никогда не nil.
func (d *fieldDecoder) stringList(f field) []string {
	raw := d.value(f, expectStrings)
	if raw == nil {
		return []string{}
	}
	var items []json.RawMessage
	if raw[0] != '[' || json.Unmarshal(raw, &items) != nil {
		d.mismatch(f, expectStrings)
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '"' || json.Unmarshal(item, &s) != nil {
			d.mismatch(f, expectStrings)
			return []string{}
		}
		out = append(out, s)
	}
	return out
}

// object читает произвольный JSON-объект. Числа сохраняются как
// json.Number, чтобы значения не теряли точность при повторном кодировании.
// null допускается и даёт nil.
func (d *fieldDecoder) object(f field) map[string]any {
	if d.err != nil {
		return nil
	}
	raw, found := d.lookup(f)
	if !found {
		if !f.optional {
			d.fail(&MissingFieldError{Field: d.name(f)})
		}
		return nil
	}
	if raw == nil {
		return nil
	}
	if raw[0] != '{' {
		d.mismatch(f, expectObject)
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		d.mismatch(f, expectObject)
		return nil
	}
	return m
}

// sharks читает массив реплик. Результат никогда не nil.
func (d *fieldDecoder) sharks(f field) []ShardReplica {
	raw := d.value(f, expectArray)
	if raw == nil {
		return []ShardReplica{}
	}
	var items []json.RawMessage
	if raw[0] != '[' || json.Unmarshal(raw, &items) != nil {
		d.mismatch(f, expectArray)
		return []ShardReplica{}
	}
	out := make([]ShardReplica, 0, len(items))
	for i, item := range items {
		sub, err := newFieldDecoder(item, fmt.Sprintf("%s[%d]", d.name(f), i))
		if err != nil {
			d.fail(err)
			return []ShardReplica{}
		}
		shark := decodeShard(sub)
		if sub.err != nil {
			d.fail(sub.err)
			return []ShardReplica{}
		}
		out = append(out, shark)
	}
	return out
}

// kind читает дискриминант. absentOK разрешает отсутствие поля
// (полезная нагрузка варианта без внешнего тега).
func (d *fieldDecoder) kind(absentOK bool) Kind {
	if d.err != nil {
		return ""
	}
	if _, found := d.lookup(fieldType); !found && absentOK {
		return ""
	}
	s := d.str(fieldType)
	if d.err != nil {
		return ""
	}
	k, err := ParseKind(s)
	if err != nil {
		d.fail(err)
		return ""
	}
	return k
}

func isNumber(raw json.RawMessage) bool {
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}

// fieldEncoder пишет JSON-объект с полями в заданном порядке
// под каноническими именами.
type fieldEncoder struct {
	buf bytes.Buffer
	n   int
	err error
}

func (e *fieldEncoder) put(f field, v any) {
	if e.err != nil {
		return
	}
	value, err := json.Marshal(v)
	if err != nil {
		e.err = fmt.Errorf("поле %q: %w", f.canonical(), err)
		return
	}
	name, _ := json.Marshal(f.canonical())

	if e.n == 0 {
		e.buf.WriteByte('{')
	} else {
		e.buf.WriteByte(',')
	}
	e.buf.Write(name)
	e.buf.WriteByte(':')
	e.buf.Write(value)
	e.n++
}

func (e *fieldEncoder) bytes() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.n == 0 {
		return []byte("{}"), nil
	}
	e.buf.WriteByte('}')
	return e.buf.Bytes(), nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilSharks(s []ShardReplica) []ShardReplica {
	if s == nil {
		return []ShardReplica{}
	}
	return s
}
