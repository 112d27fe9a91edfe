// validate.go — проверка доменных инвариантов записи перед сохранением.
package model

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"unicode/utf8"

	"github.com/google/uuid"
)

// storageIDPattern — формат manta_storage_id: "<цифры>.<токен>.<токен>".
var storageIDPattern = regexp.MustCompile(`^\d+\.[A-Za-z0-9]+\.[A-Za-z0-9]+$`)

// canonicalUUIDLen — длина UUID в канонической форме 8-4-4-4-12.
const canonicalUUIDLen = 36

// reasonBadUTF8 — причина для строк, которые JSON-кодирование исказило бы.
const reasonBadUTF8 = "некорректный UTF-8"

// Validate проверяет инварианты записи r.
// Все нарушения возвращаются вместе (errors.Join) как *InvalidFormatError.
func Validate(r Record) error {
	c, err := concrete(r)
	if err != nil {
		return err
	}
	return c.Validate()
}

// CheckLossless проверяет, что Decode(Encode(r)) вернёт r без изменений:
// все строки — корректный UTF-8, а заголовки содержат только значения,
// которые порождает Decode (string, json.Number, bool, nil, []any, map[string]any).
// Доменные инварианты (UUID, формат шардов) не проверяются.
func CheckLossless(r Record) error {
	c, err := concrete(r)
	if err != nil {
		return err
	}
	switch v := c.(type) {
	case ObjectRecord:
		return v.checkLossless()
	case DirectoryRecord:
		return v.checkLossless()
	}
	return errNilRecord
}

// concrete разыменовывает указатели на варианты; nil в любом виде — ошибка.
func concrete(r Record) (Record, error) {
	switch v := r.(type) {
	case nil:
		return nil, errNilRecord
	case *ObjectRecord:
		if v == nil {
			return nil, errNilRecord
		}
		return *v, nil
	case *DirectoryRecord:
		if v == nil {
			return nil, errNilRecord
		}
		return *v, nil
	}
	return r, nil
}

// Validate проверяет инварианты объекта.
func (o ObjectRecord) Validate() error {
	errs := []error{
		checkNonEmpty(fieldKey.canonical(), o.Key),
		checkNonNegative(fieldMtime.canonical(), o.Mtime),
		checkNonNegative(fieldVnode.canonical(), o.Vnode),
		checkUUID(fieldOwner.canonical(), o.Owner, false),
		checkUUID(fieldObjectID.canonical(), o.ObjectID, true),
		checkUUID(fieldETag.canonical(), o.ETag, true),
		checkMD5(fieldContentMD5.canonical(), o.ContentMD5),
	}
	for i, s := range o.Sharks {
		errs = append(errs, s.validate(fmt.Sprintf("%s[%d]", fieldSharks.canonical(), i)))
	}
	errs = append(errs, o.checkLossless())
	return errors.Join(errs...)
}

// Validate проверяет инварианты директории.
func (d DirectoryRecord) Validate() error {
	return errors.Join(
		checkNonEmpty(fieldKey.canonical(), d.Key),
		checkNonNegative(fieldMtime.canonical(), d.Mtime),
		checkNonNegative(fieldVnode.canonical(), d.Vnode),
		checkUUID(fieldOwner.canonical(), d.Owner, false),
		d.checkLossless(),
	)
}

// textField — строковое поле записи с полным именем для сообщений.
type textField struct {
	name, value string
}

func (o ObjectRecord) checkLossless() error {
	texts := []textField{
		{fieldKey.canonical(), o.Key},
		{fieldName.canonical(), o.Name},
		{fieldCreator.canonical(), o.Creator},
		{fieldDirname.canonical(), o.Dirname},
		{fieldOwner.canonical(), o.Owner},
		{fieldContentMD5.canonical(), o.ContentMD5},
		{fieldContentType.canonical(), o.ContentType},
		{fieldObjectID.canonical(), o.ObjectID},
		{fieldETag.canonical(), o.ETag},
	}
	texts = appendRoles(texts, o.Roles)
	for i, s := range o.Sharks {
		prefix := fmt.Sprintf("%s[%d].", fieldSharks.canonical(), i)
		texts = append(texts,
			textField{prefix + fieldDatacenter.canonical(), s.Datacenter},
			textField{prefix + fieldStorageID.canonical(), s.StorageID},
		)
	}
	return errors.Join(checkTexts(texts), checkHeaders(o.Headers))
}

func (d DirectoryRecord) checkLossless() error {
	texts := []textField{
		{fieldCreator.canonical(), d.Creator},
		{fieldDirname.canonical(), d.Dirname},
		{fieldKey.canonical(), d.Key},
		{fieldName.canonical(), d.Name},
		{fieldOwner.canonical(), d.Owner},
	}
	texts = appendRoles(texts, d.Roles)
	return errors.Join(checkTexts(texts), checkHeaders(d.Headers))
}

func appendRoles(texts []textField, roles []string) []textField {
	for i, role := range roles {
		texts = append(texts, textField{fmt.Sprintf("%s[%d]", fieldRoles.canonical(), i), role})
	}
	return texts
}

func checkTexts(texts []textField) error {
	var errs []error
	for _, t := range texts {
		if !utf8.ValidString(t.value) {
			errs = append(errs, &InvalidFormatError{Field: t.name, Reason: reasonBadUTF8})
		}
	}
	return errors.Join(errs...)
}

// checkHeaders проверяет заголовки в порядке ключей.
func checkHeaders(h map[string]any) error {
	return checkHeaderObject(fieldHeaders.canonical(), h)
}

func checkHeaderObject(name string, m map[string]any) error {
	var errs []error
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if !utf8.ValidString(k) {
			errs = append(errs, &InvalidFormatError{Field: name, Reason: fmt.Sprintf("ключ %q: %s", k, reasonBadUTF8)})
			continue
		}
		errs = append(errs, checkHeaderValue(name+"."+k, m[k]))
	}
	return errors.Join(errs...)
}

func checkHeaderValue(name string, v any) error {
	switch v := v.(type) {
	case nil, bool, json.Number:
		return nil
	case string:
		if !utf8.ValidString(v) {
			return &InvalidFormatError{Field: name, Reason: reasonBadUTF8}
		}
		return nil
	case []any:
		var errs []error
		for i, e := range v {
			errs = append(errs, checkHeaderValue(fmt.Sprintf("%s[%d]", name, i), e))
		}
		return errors.Join(errs...)
	case map[string]any:
		return checkHeaderObject(name, v)
	default:
		return &InvalidFormatError{
			Field:  name,
			Reason: fmt.Sprintf("значение типа %T не восстанавливается декодированием", v),
		}
	}
}

// Validate проверяет формат идентификатора узла хранения.
func (s ShardReplica) Validate() error {
	return s.validate("")
}

func (s ShardReplica) validate(path string) error {
	name := fieldStorageID.canonical()
	if path != "" {
		name = path + "." + name
	}
	if !storageIDPattern.MatchString(s.StorageID) {
		return &InvalidFormatError{
			Field:  name,
			Reason: fmt.Sprintf("%q не соответствует формату <номер>.<сегмент>.<сегмент>", s.StorageID),
		}
	}
	return nil
}

func checkNonEmpty(name, s string) error {
	if s == "" {
		return &InvalidFormatError{Field: name, Reason: "пустое значение"}
	}
	return nil
}

func checkNonNegative(name string, n int64) error {
	if n < 0 {
		return &InvalidFormatError{Field: name, Reason: fmt.Sprintf("отрицательное значение %d", n)}
	}
	return nil
}

// checkUUID принимает только каноническую форму 8-4-4-4-12;
// uuid.Parse допускает также urn:uuid: и {…}, их здесь отсекает длина.
func checkUUID(name, s string, optional bool) error {
	if s == "" && optional {
		return nil
	}
	if len(s) != canonicalUUIDLen {
		return &InvalidFormatError{Field: name, Reason: fmt.Sprintf("%q не является UUID", s)}
	}
	if _, err := uuid.Parse(s); err != nil {
		return &InvalidFormatError{Field: name, Reason: fmt.Sprintf("%q не является UUID: %v", s, err)}
	}
	return nil
}

// checkMD5 проверяет, что значение — base64 от сырого 16-байтового дайджеста.
func checkMD5(name, s string) error {
	if s == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return &InvalidFormatError{Field: name, Reason: fmt.Sprintf("некорректный base64: %v", err)}
	}
	if len(raw) != md5.Size {
		return &InvalidFormatError{
			Field:  name,
			Reason: fmt.Sprintf("ожидается дайджест MD5 из %d байт, получено %d", md5.Size, len(raw)),
		}
	}
	return nil
}
