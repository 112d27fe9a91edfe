// Пакет modeltest — генератор произвольных корректных записей для
// property-based тестов. Генератор — исполняемое описание «корректной записи»:
// при изменении схемы в model он меняется вместе с ней.
package modeltest

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
)

// DefaultSize — размер по умолчанию (максимальная длина строк).
const DefaultSize = 32

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// specialRunes — символы, требующие экранирования в JSON, и многобайтовые
// руны, включая руны вне BMP.
// NUL исключён: PostgreSQL не принимает его в столбцах TEXT.
var specialRunes = []rune{
	'"', '\\', '/', '\n', '\r', '\t', '\x01', '\x1f', '\u007f',
	'\u2028', '\u2029', '\ufeff', 'é', 'ж', '中', '😀', '\U0001F680', '\U0010FFFF',
}

// Generator порождает детерминированную последовательность записей для seed.
// Не безопасен для конкурентного использования.
type Generator struct {
	src  *rand.ChaCha8
	rng  *rand.Rand
	size int
}

// NewGenerator создаёт генератор. size ограничивает длину строк;
// значения <= 0 заменяются на DefaultSize.
func NewGenerator(seed uint64, size int) *Generator {
	if size <= 0 {
		size = DefaultSize
	}
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	src := rand.NewChaCha8(key)
	return &Generator{src: src, rng: rand.New(src), size: size}
}

// ProduceRandomValid возвращает корректную запись, однозначно определяемую seed и size.
func ProduceRandomValid(seed uint64, size int) model.Record {
	return NewGenerator(seed, size).Record()
}

// Record возвращает объект или директорию с равной вероятностью.
func (g *Generator) Record() model.Record {
	if g.rng.IntN(2) == 0 {
		return g.Object()
	}
	return g.Directory()
}

// Object возвращает корректную запись объекта со всеми заполненными полями.
func (g *Generator) Object() model.ObjectRecord {
	digest := md5.Sum([]byte(g.alnum()))
	return model.ObjectRecord{
		Headers:       g.headers(),
		Key:           g.text(),
		Mtime:         g.nonNegative(),
		Name:          g.text(),
		Creator:       g.text(),
		Dirname:       g.text(),
		Owner:         g.newUUID(),
		Roles:         []string{g.text()},
		Vnode:         g.nonNegative(),
		ContentLength: g.rng.Uint64(),
		ContentMD5:    base64.StdEncoding.EncodeToString(digest[:]),
		ContentType:   g.text(),
		ObjectID:      g.newUUID(),
		ETag:          g.newUUID(),
		Sharks:        []model.ShardReplica{g.Shark(), g.Shark()},
	}
}

// Directory возвращает корректную запись директории.
func (g *Generator) Directory() model.DirectoryRecord {
	return model.DirectoryRecord{
		Creator: g.text(),
		Dirname: g.text(),
		Headers: g.headers(),
		Key:     g.text(),
		Mtime:   g.nonNegative(),
		Name:    g.text(),
		Owner:   g.newUUID(),
		Roles:   []string{g.text()},
		Vnode:   g.nonNegative(),
	}
}

// Shark возвращает реплику с идентификатором вида "<номер>.<сегмент>.<сегмент>".
func (g *Generator) Shark() model.ShardReplica {
	return model.ShardReplica{
		Datacenter: g.text(),
		StorageID:  fmt.Sprintf("%d.%s.%s", g.rng.IntN(1000), g.alnum(), g.alnum()),
	}
}

// alnum возвращает непустую алфавитно-цифровую строку длиной до size.
func (g *Generator) alnum() string {
	b := make([]byte, 1+g.rng.IntN(g.size))
	for i := range b {
		b[i] = alphanumeric[g.rng.IntN(len(alphanumeric))]
	}
	return string(b)
}

// text возвращает непустую строку длиной до size байт. В половине случаев
// строка алфавитно-цифровая, иначе в ней встречаются specialRunes.
func (g *Generator) text() string {
	if g.rng.IntN(2) == 0 {
		return g.alnum()
	}
	n := 1 + g.rng.IntN(g.size)
	b := make([]byte, 0, n)
	for len(b) < n {
		r := specialRunes[g.rng.IntN(len(specialRunes))]
		if g.rng.IntN(3) == 0 || len(b)+utf8.RuneLen(r) > n {
			b = append(b, alphanumeric[g.rng.IntN(len(alphanumeric))])
			continue
		}
		b = utf8.AppendRune(b, r)
	}
	return string(b)
}

// nonNegative возвращает значение из [0, MaxInt64).
func (g *Generator) nonNegative() int64 {
	return g.rng.Int64N(math.MaxInt64)
}

// newUUID возвращает UUID v4, прочитанный из детерминированного потока.
// ChaCha8 никогда не возвращает ошибку чтения.
func (g *Generator) newUUID() string {
	return uuid.Must(uuid.NewRandomFromReader(g.src)).String()
}

func (g *Generator) headers() map[string]any {
	h := make(map[string]any, 3)
	for range 3 {
		h[g.text()] = g.text()
	}
	return h
}
