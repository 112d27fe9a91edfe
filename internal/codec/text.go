package codec

import (
	"context"
	"fmt"

	"github.com/bigkaa/goartstore/metadata-index/internal/domain/model"
)

// TextSink — хранилище, принимающее текст записи по ключу.
type TextSink interface {
	PutText(ctx context.Context, key, text string) error
}

// TextSource — хранилище, возвращающее текст записи по ключу.
type TextSource interface {
	GetText(ctx context.Context, key string) (string, error)
}

// Save кодирует запись и сохраняет её под ключом r.EntryKey().
func Save(ctx context.Context, sink TextSink, r model.Record) error {
	text, err := ToStorageText(r)
	if err != nil {
		return err
	}
	if err := sink.PutText(ctx, r.EntryKey(), text); err != nil {
		return fmt.Errorf("ошибка сохранения записи %q: %w", r.EntryKey(), err)
	}
	return nil
}

// Load читает текст по ключу и декодирует запись.
// Ошибки хранилища (например, «не найдено») возвращаются обёрнутыми как есть.
func Load(ctx context.Context, src TextSource, key string) (model.Record, error) {
	text, err := src.GetText(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения записи %q: %w", key, err)
	}
	return FromStorageText(text)
}
