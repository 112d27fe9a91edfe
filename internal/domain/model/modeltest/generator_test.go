package modeltest

import (
	"crypto/md5"
	"encoding/base64"
	"regexp"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
)

var storageID = regexp.MustCompile(`^\d+\.[A-Za-z0-9]+\.[A-Za-z0-9]+$`)

const seeds = 500

// TestProduceRandomValid_Deterministic проверяет воспроизводимость по seed.
func TestProduceRandomValid_Deterministic(t *testing.T) {
	for seed := range uint64(50) {
		a := ProduceRandomValid(seed, DefaultSize)
		b := ProduceRandomValid(seed, DefaultSize)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Fatalf("seed %d: записи различаются (-first +second):\n%s", seed, diff)
		}
	}

	if cmp.Equal(ProduceRandomValid(1, DefaultSize), ProduceRandomValid(2, DefaultSize)) {
		t.Error("разные seed дали одинаковые записи")
	}
}

// TestProduceRandomValid_BothKinds проверяет, что встречаются оба варианта.
func TestProduceRandomValid_BothKinds(t *testing.T) {
	kinds := map[model.Kind]int{}
	for seed := range uint64(100) {
		kinds[ProduceRandomValid(seed, DefaultSize).Kind()]++
	}
	if kinds[model.KindObject] == 0 || kinds[model.KindDirectory] == 0 {
		t.Errorf("распределение вариантов: %v, ожидались оба", kinds)
	}
}

// TestProduceRandomValid_Invariants проверяет доменные ограничения
// сгенерированных записей.
func TestProduceRandomValid_Invariants(t *testing.T) {
	for seed := range uint64(seeds) {
		r := ProduceRandomValid(seed, DefaultSize)

		if err := model.Validate(r); err != nil {
			t.Fatalf("seed %d: Validate() = %v", seed, err)
		}

		o, ok := r.(model.ObjectRecord)
		if !ok {
			continue
		}
		for _, id := range []string{o.Owner, o.ObjectID, o.ETag} {
			if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
				t.Errorf("seed %d: %q не является UUID", seed, id)
			}
		}
		raw, err := base64.StdEncoding.DecodeString(o.ContentMD5)
		if err != nil || len(raw) != md5.Size {
			t.Errorf("seed %d: content_md5 %q не является base64 от MD5", seed, o.ContentMD5)
		}
		if len(o.Sharks) == 0 {
			t.Errorf("seed %d: у объекта нет реплик", seed)
		}
		for _, s := range o.Sharks {
			if !storageID.MatchString(s.StorageID) {
				t.Errorf("seed %d: manta_storage_id %q не соответствует формату", seed, s.StorageID)
			}
		}
	}
}

// TestProduceRandomValid_RoundTrip — свойство Decode(Encode(r)) == r.
func TestProduceRandomValid_RoundTrip(t *testing.T) {
	for seed := range uint64(seeds) {
		want := ProduceRandomValid(seed, DefaultSize)

		data, err := model.Encode(want)
		if err != nil {
			t.Fatalf("seed %d: Encode() = %v", seed, err)
		}
		got, err := model.Decode(data)
		if err != nil {
			t.Fatalf("seed %d: Decode(%s) = %v", seed, data, err)
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("seed %d: round trip mismatch (-want +got):\n%s", seed, diff)
		}
	}
}

// TestGenerator_SizeBoundsStrings проверяет ограничение длины строк.
func TestGenerator_SizeBoundsStrings(t *testing.T) {
	g := NewGenerator(7, 3)
	for range 100 {
		d := g.Directory()
		for _, s := range []string{d.Key, d.Name, d.Creator, d.Dirname} {
			if len(s) == 0 || len(s) > 3 {
				t.Fatalf("длина %q вне диапазона [1, 3]", s)
			}
		}
	}

	if g := NewGenerator(1, 0); g.size != DefaultSize {
		t.Errorf("size = %d, ожидался DefaultSize для 0", g.size)
	}
}

// TestGenerator_TextCoverage проверяет, что строки записей содержат
// экранируемые и многобайтовые символы и остаются корректным UTF-8.
func TestGenerator_TextCoverage(t *testing.T) {
	seen := map[string]bool{}
	classes := map[string]func(rune) bool{
		"кавычка или обратная косая": func(r rune) bool { return r == '"' || r == '\\' },
		"управляющий символ":         func(r rune) bool { return r < 0x20 },
		"многобайтовая руна BMP":     func(r rune) bool { return r > 0x7f && r <= 0xffff },
		"руна вне BMP":               func(r rune) bool { return r > 0xffff },
	}

	for seed := range uint64(200) {
		d := NewGenerator(seed, DefaultSize).Directory()
		for _, s := range append([]string{d.Key, d.Name, d.Creator, d.Dirname}, d.Roles...) {
			if !utf8.ValidString(s) {
				t.Fatalf("seed %d: строка %q не является корректным UTF-8", seed, s)
			}
			for _, r := range s {
				for name, match := range classes {
					if match(r) {
						seen[name] = true
					}
				}
			}
		}
	}

	for name := range classes {
		if !seen[name] {
			t.Errorf("класс символов %q ни разу не сгенерирован", name)
		}
	}
}
