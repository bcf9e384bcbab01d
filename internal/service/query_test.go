package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/goartstore/index-module/internal/config"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

// TestList_Limit проверяет границы размера страницы.
func TestList_Limit(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()
	if _, err := svc.Create(ctx, objectInput()); err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}

	tests := []struct {
		name    string
		limit   int
		wantLen int
		wantErr bool
	}{
		{"limit 0 — пустой результат", 0, 0, false},
		{"limit 1", 1, 1, false},
		{"limit 1024", MaxLimit, 1, false},
		{"limit 1025", MaxLimit + 1, 0, true},
		{"отрицательный limit", -1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := svc.List(ctx, ListParams{Limit: tt.limit})
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("List = %v, ожидался ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("List ошибка: %v", err)
			}
			if recs == nil || len(recs) != tt.wantLen {
				t.Errorf("len = %d, ожидалось %d", len(recs), tt.wantLen)
			}
		})
	}
}

// TestList_ParamConflicts проверяет несовместимые параметры.
func TestList_ParamConflicts(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	page := 1
	neg := -1

	tests := []struct {
		name string
		p    ListParams
	}{
		{"ids и start", ListParams{IDs: []string{"a"}, Start: "a", Limit: 10}},
		{"ids и page", ListParams{IDs: []string{"a"}, Page: &page, Limit: 10}},
		{"start и page", ListParams{Start: "a", Page: &page, Limit: 10}},
		{"отрицательная страница", ListParams{Page: &neg, Limit: 10}},
		{"неверный хэш", ListParams{Filter: repository.RecordFilter{Hashes: map[string]string{"md5": "zz"}}, Limit: 10}},
		{"неизвестный тип хэша в negate", ListParams{Negate: repository.RecordFilter{Hashes: map[string]string{"foo": ""}}, Limit: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.List(context.Background(), tt.p); !errors.Is(err, ErrValidation) {
				t.Errorf("List = %v, ожидался ErrValidation", err)
			}
		})
	}
}

// TestList_StartCursor проверяет курсор по did.
func TestList_StartCursor(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, objectInput()); err != nil {
			t.Fatalf("Create ошибка: %v", err)
		}
	}

	first, err := svc.List(ctx, ListParams{Limit: 2})
	if err != nil || len(first) != 2 {
		t.Fatalf("List = %d, %v", len(first), err)
	}
	rest, err := svc.List(ctx, ListParams{Start: first[1].DID, Limit: 2})
	if err != nil {
		t.Fatalf("List ошибка: %v", err)
	}
	if len(rest) != 1 || rest[0].DID <= first[1].DID {
		t.Errorf("вторая страница: %d записей", len(rest))
	}
}

// TestList_IDsPrefixRetry проверяет повтор поиска по ids с альтернативной формой префикса.
func TestList_IDsPrefixRetry(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{
		DefaultPrefix: "testprefix:",
		PrependPrefix: true,
	})
	ctx := context.Background()

	a, _ := svc.Create(ctx, objectInput())
	b, _ := svc.Create(ctx, objectInput())

	bare := a.DID[len("testprefix:"):]
	recs, err := svc.List(ctx, ListParams{IDs: []string{bare, b.DID, "missing"}, Limit: 10})
	if err != nil {
		t.Fatalf("List ошибка: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("List вернул %d записей, ожидалось 2", len(recs))
	}
	if recs[0].DID > recs[1].DID {
		t.Error("результат не упорядочен по did")
	}
}

// TestGetURLs проверяет обязательные параметры и фильтр по хэшу.
func TestGetURLs(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()
	if _, err := svc.Create(ctx, objectInput()); err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}

	if _, err := svc.GetURLs(ctx, URLListParams{Limit: 10}); !errors.Is(err, ErrValidation) {
		t.Errorf("GetURLs без фильтров = %v, ожидался ErrValidation", err)
	}
	if _, err := svc.GetURLs(ctx, URLListParams{Size: ptr[int64](1), Start: -1, Limit: 10}); !errors.Is(err, ErrValidation) {
		t.Errorf("GetURLs(start<0) = %v", err)
	}

	entries, err := svc.GetURLs(ctx, URLListParams{Hashes: map[string]string{"md5": testMD5}, Limit: 10})
	if err != nil {
		t.Fatalf("GetURLs ошибка: %v", err)
	}
	if len(entries) != 1 || entries[0].URL != "s3://b/k" {
		t.Errorf("GetURLs = %+v", entries)
	}

	urls, err := svc.HashesToURLs(ctx, ptr[int64](123), map[string]string{"md5": testMD5}, 0, 10)
	if err != nil || len(urls) != 1 {
		t.Errorf("HashesToURLs = %v, %v", urls, err)
	}
	if _, err := svc.HashesToURLs(ctx, nil, map[string]string{"md5": testMD5}, 0, 10); !errors.Is(err, ErrValidation) {
		t.Errorf("HashesToURLs без size = %v", err)
	}
}

// TestQueryMetadataByKey проверяет обязательный ключ и поиск.
func TestQueryMetadataByKey(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()

	in := objectInput()
	in.URLsMetadata = map[string]map[string]string{"s3://b/k": {"state": "validated"}}
	ref, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}

	if _, err := svc.QueryMetadataByKey(ctx, repository.MetadataKeyQuery{Limit: 10}); !errors.Is(err, ErrValidation) {
		t.Errorf("без key = %v, ожидался ErrValidation", err)
	}
	hits, err := svc.QueryMetadataByKey(ctx, repository.MetadataKeyQuery{Key: "state", Value: "validated", Limit: 10})
	if err != nil {
		t.Fatalf("QueryMetadataByKey ошибка: %v", err)
	}
	if len(hits) != 1 || hits[0].DID != ref.DID || hits[0].Rev != ref.Rev {
		t.Errorf("hits = %+v", hits)
	}

	out, err := svc.QueryURLs(ctx, repository.URLsQuery{Include: "s3://", Limit: 10})
	if err != nil || len(out) != 1 {
		t.Errorf("QueryURLs = %v, %v", out, err)
	}
}
