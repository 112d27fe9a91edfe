package codec

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model/modeltest"
)

// TestStorageText_RoundTrip — свойство FromStorageText(ToStorageText(r)) == r.
func TestStorageText_RoundTrip(t *testing.T) {
	for seed := range uint64(300) {
		want := modeltest.ProduceRandomValid(seed, modeltest.DefaultSize)

		text, err := ToStorageText(want)
		if err != nil {
			t.Fatalf("seed %d: ToStorageText() = %v", seed, err)
		}
		got, err := FromStorageText(text)
		if err != nil {
			t.Fatalf("seed %d: FromStorageText(%s) = %v", seed, text, err)
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("seed %d: round trip mismatch (-want +got):\n%s", seed, diff)
		}
	}
}

// TestToStorageText_SingleLine проверяет экранирование управляющих символов.
func TestToStorageText_SingleLine(t *testing.T) {
	r := model.DirectoryRecord{
		Key:     "/a\nb",
		Name:    "tab\there",
		Headers: map[string]any{"m-note": "line1\r\nline2\x00"},
		Roles:   []string{},
	}

	text, err := ToStorageText(r)
	if err != nil {
		t.Fatalf("ToStorageText() = %v", err)
	}
	for i := 0; i < len(text); i++ {
		if text[i] < 0x20 {
			t.Fatalf("ToStorageText() содержит управляющий байт 0x%02x в позиции %d: %q", text[i], i, text)
		}
	}

	got, err := FromStorageText(text)
	if err != nil {
		t.Fatalf("FromStorageText() = %v", err)
	}
	if diff := cmp.Diff(model.Record(r), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// TestFromStorageText_Corrupted проверяет, что повреждённый текст даёт
// *Error, а не панику.
func TestFromStorageText_Corrupted(t *testing.T) {
	inputs := []string{
		"{not json",
		"",
		"null",
		`{"type":"object"}`,
		`{"type":"file","key":"k"}`,
		"\xff\xfe",
		strings.Repeat("[", 10000),
	}

	for _, input := range inputs {
		r, err := FromStorageText(input)
		if err == nil {
			t.Errorf("FromStorageText(%.20q) = %v, ожидалась ошибка", input, r)
			continue
		}
		var ce *Error
		if !errors.As(err, &ce) {
			t.Errorf("FromStorageText(%.20q): ошибка %T, ожидалась *codec.Error", input, err)
		}
	}
}

// TestError_UnwrapsModelError проверяет доступ к причине через errors.As.
func TestError_UnwrapsModelError(t *testing.T) {
	_, err := FromStorageText(`{"type":"directory","creator":"c"}`)

	var mf *model.MissingFieldError
	if !errors.As(err, &mf) {
		t.Fatalf("ошибка = %v, ожидалась *model.MissingFieldError внутри", err)
	}
	if mf.Field != "dirname" {
		t.Errorf("Field = %q, ожидалось %q", mf.Field, "dirname")
	}
	if !errors.Is(err, model.ErrMissingField) {
		t.Error("errors.Is(err, model.ErrMissingField) = false")
	}
}

// TestToStorageText_NilRecord проверяет ошибку кодирования.
func TestToStorageText_NilRecord(t *testing.T) {
	_, err := ToStorageText(nil)

	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("ошибка = %v, ожидалась *codec.Error", err)
	}
	if ce.Op != opEncode {
		t.Errorf("Op = %q, ожидалось %q", ce.Op, opEncode)
	}
}

// TestColumn_ValueScan проверяет привязку и сканирование столбца.
func TestColumn_ValueScan(t *testing.T) {
	want := modeltest.ProduceRandomValid(11, 8)

	v, err := Column{Record: want}.Value()
	if err != nil {
		t.Fatalf("Value() = %v", err)
	}
	text, ok := v.(string)
	if !ok {
		t.Fatalf("Value() вернул %T, ожидалась string", v)
	}

	for _, src := range []any{text, []byte(text)} {
		var c Column
		if err := c.Scan(src); err != nil {
			t.Fatalf("Scan(%T) = %v", src, err)
		}
		if diff := cmp.Diff(want, c.Record, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("Scan(%T) mismatch (-want +got):\n%s", src, diff)
		}
	}
}

// TestColumn_ScanErrors проверяет отказ на NULL, чужих типах и мусоре.
func TestColumn_ScanErrors(t *testing.T) {
	for _, src := range []any{nil, 42, "{not json", []byte(`{"type":"object"}`)} {
		var c Column
		err := c.Scan(src)

		var ce *Error
		if !errors.As(err, &ce) {
			t.Errorf("Scan(%#v) = %v, ожидалась *codec.Error", src, err)
		}
		if c.Record != nil {
			t.Errorf("Scan(%#v) заполнил Record при ошибке", src)
		}
	}
}

// memStore — TextSink/TextSource в памяти.
type memStore struct {
	texts map[string]string
	err   error
}

var errMemNotFound = errors.New("нет записи")

func (m *memStore) PutText(_ context.Context, key, text string) error {
	if m.err != nil {
		return m.err
	}
	m.texts[key] = text
	return nil
}

func (m *memStore) GetText(_ context.Context, key string) (string, error) {
	text, ok := m.texts[key]
	if !ok {
		return "", errMemNotFound
	}
	return text, nil
}

// TestSaveLoad проверяет обобщённый адаптер для текстовых хранилищ.
func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := &memStore{texts: map[string]string{}}
	want := modeltest.ProduceRandomValid(3, modeltest.DefaultSize)

	if err := Save(ctx, store, want); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	if _, ok := store.texts[want.EntryKey()]; !ok {
		t.Fatalf("текст не сохранён под ключом %q", want.EntryKey())
	}

	got, err := Load(ctx, store, want.EntryKey())
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// Ошибка хранилища доступна вызывающему
	if _, err := Load(ctx, store, "missing"); !errors.Is(err, errMemNotFound) {
		t.Errorf("Load(missing) = %v, ожидалась ошибка хранилища", err)
	}

	// Повреждённый текст — *Error
	store.texts["bad"] = "{not json"
	var ce *Error
	if _, err := Load(ctx, store, "bad"); !errors.As(err, &ce) {
		t.Errorf("Load(bad) = %v, ожидалась *codec.Error", err)
	}

	// Ошибка записи оборачивается
	store.err = errors.New("диск заполнен")
	if err := Save(ctx, store, want); !errors.Is(err, store.err) {
		t.Errorf("Save() = %v, ожидалась ошибка хранилища", err)
	}
}

// TestDecodeRows проверяет, что повреждённые строки не прерывают пакет.
func TestDecodeRows(t *testing.T) {
	first := modeltest.ProduceRandomValid(1, 8)
	second := modeltest.ProduceRandomValid(2, 8)
	firstText, _ := ToStorageText(first)
	secondText, _ := ToStorageText(second)

	rows := []Row{
		{ID: "a", Text: firstText},
		{ID: "b", Text: "{not json"},
		{ID: "c", Text: secondText},
		{ID: "d", Text: `{"type":"object","key":1}`},
	}

	records, corrupt := DecodeRows(rows)

	if diff := cmp.Diff([]model.Record{first, second}, records, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if len(corrupt) != 2 || corrupt[0].ID != "b" || corrupt[1].ID != "d" {
		t.Fatalf("corrupt = %+v, ожидались строки b и d", corrupt)
	}
	if !errors.Is(corrupt[1].Err, model.ErrTypeMismatch) {
		t.Errorf("corrupt[1].Err = %v, ожидалась ErrTypeMismatch", corrupt[1].Err)
	}
}

// TestToStorageText_RejectsLossyRecords проверяет, что запись, которую
// кодирование исказило бы, не превращается в текст.
func TestToStorageText_RejectsLossyRecords(t *testing.T) {
	const owner = "3f1c2a9e-6b7d-4e8f-9a0b-1c2d3e4f5a6b"
	tests := []struct {
		name   string
		record model.Record
	}{
		{"ключ", model.DirectoryRecord{Key: "/a\xffb", Name: "n", Owner: owner}},
		{"имя", model.DirectoryRecord{Key: "/d", Name: "n\xfe", Owner: owner}},
		{"значение заголовка", model.ObjectRecord{Key: "k", Headers: map[string]any{"m": "\xff"}}},
		{"заголовок не из JSON", model.ObjectRecord{Key: "k", Headers: map[string]any{"m": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := ToStorageText(tt.record)
			if err == nil {
				t.Fatalf("ToStorageText() = %q, ожидалась ошибка", text)
			}
			var ce *Error
			if !errors.As(err, &ce) || ce.Op != opEncode {
				t.Errorf("ошибка = %v, ожидалась *codec.Error кодирования", err)
			}
			if !errors.Is(err, model.ErrInvalidFormat) {
				t.Errorf("errors.Is(err, model.ErrInvalidFormat) = false для %v", err)
			}
		})
	}
}

// TestStorageText_RoundTripSpecialText проверяет экранирование, многобайтовые
// руны и руны вне BMP.
func TestStorageText_RoundTripSpecialText(t *testing.T) {
	want := model.DirectoryRecord{
		Key:     "/\"quoted\"\\path/日本語/😀",
		Name:    "\u2028\u2029\x01\x1f\x7f",
		Creator: "\U0010FFFF",
		Dirname: "/",
		Headers: map[string]any{"m-ключ": "значение\n🚀"},
		Owner:   "3f1c2a9e-6b7d-4e8f-9a0b-1c2d3e4f5a6b",
		Roles:   []string{"<script>&amp;"},
	}

	text, err := ToStorageText(want)
	if err != nil {
		t.Fatalf("ToStorageText() = %v", err)
	}
	got, err := FromStorageText(text)
	if err != nil {
		t.Fatalf("FromStorageText(%s) = %v", text, err)
	}
	if diff := cmp.Diff(model.Record(want), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
