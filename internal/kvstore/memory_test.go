package kvstore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидался ErrNotFound, получено: %v", err)
	}

	if err := s.Set(ctx, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	v, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if string(v) != `{"a":1}` {
		t.Fatalf("прочитано не то, что записано: %s", v)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatal("ключ должен быть удалён")
	}
}

func TestMemoryStore_UpdateNoChange(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("old"))

	err := s.Update(ctx, "k", func(old []byte) ([]byte, error) {
		return nil, ErrNoChange
	})
	if !errors.Is(err, ErrNoChange) {
		t.Fatalf("ожидался ErrNoChange, получено: %v", err)
	}

	v, _ := s.Get(ctx, "k")
	if string(v) != "old" {
		t.Fatalf("значение не должно было измениться: %s", v)
	}
}

func TestMemoryStore_UpdateCreatesKey(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.Update(ctx, "new", func(old []byte) ([]byte, error) {
		if old != nil {
			t.Fatal("для нового ключа old должен быть nil")
		}
		return []byte("init"), nil
	})
	if err != nil {
		t.Fatalf("ошибка Update: %v", err)
	}

	v, _ := s.Get(ctx, "new")
	if string(v) != "init" {
		t.Fatalf("ключ не создан: %s", v)
	}
}

func TestMemoryStore_ConcurrentCreate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// ключа ещё нет: оба конкурентных Update обязаны увидеть результат
	// друг друга, а не одинаковый nil
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, "fresh", func(old []byte) ([]byte, error) {
				return append(old, 'x'), nil
			})
		}()
	}
	wg.Wait()

	v, err := s.Get(ctx, "fresh")
	if err != nil {
		t.Fatalf("ключ должен быть создан: %v", err)
	}
	if len(v) != 20 {
		t.Fatalf("потеряны записи при конкурентном создании ключа: %d из 20", len(v))
	}
}

func TestMemoryStore_ConcurrentUpdates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Set(ctx, "cnt", []byte{'0'})

	// 50 конкурентных инкрементов байтового счётчика
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, "cnt", func(old []byte) ([]byte, error) {
				return []byte{old[0] + 1}, nil
			})
		}()
	}
	wg.Wait()

	v, _ := s.Get(ctx, "cnt")
	if v[0] != '0'+50 {
		t.Fatalf("потеряны обновления: %d", v[0]-'0')
	}
}
