package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/bigkaa/goartstore/index-module/internal/auth"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

// memAliasStore — AliasStore поверх памяти.
type memAliasStore struct {
	mu      sync.Mutex
	aliases map[string]model.GlobalAlias
}

func newMemAliasStore() *memAliasStore {
	return &memAliasStore{aliases: map[string]model.GlobalAlias{}}
}

func (s *memAliasStore) Session(_ context.Context, fn func(repo repository.AliasRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := make(map[string]model.GlobalAlias, len(s.aliases))
	for k, v := range s.aliases {
		work[k] = v
	}
	if err := fn(&memAliasRepo{aliases: work}); err != nil {
		return err
	}
	s.aliases = work
	return nil
}

type memAliasRepo struct {
	aliases map[string]model.GlobalAlias
}

func (r *memAliasRepo) Get(_ context.Context, name string, _ bool) (*model.GlobalAlias, error) {
	a, ok := r.aliases[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *memAliasRepo) Insert(_ context.Context, a *model.GlobalAlias) error {
	if _, ok := r.aliases[a.Name]; ok {
		return repository.ErrConflict
	}
	r.aliases[a.Name] = *a
	return nil
}

func (r *memAliasRepo) Update(_ context.Context, a *model.GlobalAlias) error {
	if _, ok := r.aliases[a.Name]; !ok {
		return repository.ErrNotFound
	}
	r.aliases[a.Name] = *a
	return nil
}

func (r *memAliasRepo) Delete(_ context.Context, name string) error {
	if _, ok := r.aliases[name]; !ok {
		return repository.ErrNotFound
	}
	delete(r.aliases, name)
	return nil
}

func (r *memAliasRepo) List(_ context.Context, q repository.AliasListQuery) ([]*model.GlobalAlias, error) {
	names := make([]string, 0, len(r.aliases))
	for n := range r.aliases {
		if n > q.Start {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	var out []*model.GlobalAlias
	for _, n := range names {
		if len(out) == q.Limit {
			break
		}
		a := r.aliases[n]
		out = append(out, &a)
	}
	return out, nil
}

func newTestAliasService() (*AliasService, *mockAuthorizer) {
	authz := &mockAuthorizer{}
	return NewAliasService(newMemAliasStore(), authz, slog.Default()), authz
}

// TestAliasUpsert проверяет создание и обновление глобального алиаса.
func TestAliasUpsert(t *testing.T) {
	svc, _ := newTestAliasService()
	ctx := context.Background()
	public := model.ReleasePublic

	ref, err := svc.Upsert(ctx, "ark:/1/a", "", model.GlobalAliasChanges{
		Size:    ptr[int64](10),
		Release: &public,
		Hashes:  map[string]string{"md5": testMD5},
	})
	if err != nil {
		t.Fatalf("Upsert ошибка: %v", err)
	}

	// Обновление со старой ревизией отклоняется
	if _, err := svc.Upsert(ctx, "ark:/1/a", "00000000", model.GlobalAliasChanges{}); !errors.Is(err, ErrRevisionMismatch) {
		t.Errorf("Upsert с чужой ревизией = %v", err)
	}

	ref2, err := svc.Upsert(ctx, "ark:/1/a", ref.Rev, model.GlobalAliasChanges{Metastring: ptr("m")})
	if err != nil {
		t.Fatalf("Upsert ошибка: %v", err)
	}
	if ref2.Rev == ref.Rev {
		t.Error("ревизия не изменилась")
	}

	a, err := svc.Get(ctx, "ark:/1/a")
	if err != nil {
		t.Fatalf("Get ошибка: %v", err)
	}
	if *a.Size != 10 || *a.Metastring != "m" || a.Hashes["md5"] != testMD5 {
		t.Errorf("поля после Upsert: %+v", a)
	}

	// Без ревизии обновление разрешено
	if _, err := svc.Upsert(ctx, "ark:/1/a", "", model.GlobalAliasChanges{}); err != nil {
		t.Errorf("Upsert без ревизии ошибка: %v", err)
	}
}

// TestAliasUpsert_Validation проверяет ошибки валидации.
func TestAliasUpsert_Validation(t *testing.T) {
	svc, _ := newTestAliasService()
	ctx := context.Background()
	bad := model.Release("secret")

	if _, err := svc.Upsert(ctx, "", "", model.GlobalAliasChanges{}); !errors.Is(err, ErrValidation) {
		t.Errorf("пустое имя = %v", err)
	}
	if _, err := svc.Upsert(ctx, "a", "", model.GlobalAliasChanges{Release: &bad}); !errors.Is(err, ErrValidation) {
		t.Errorf("неверный release = %v", err)
	}
	if _, err := svc.Upsert(ctx, "a", "", model.GlobalAliasChanges{Hashes: map[string]string{"md5": "x"}}); !errors.Is(err, ErrValidation) {
		t.Errorf("неверный хэш = %v", err)
	}
	if _, err := svc.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("после неудачных Upsert Get = %v, ожидался ErrNotFound", err)
	}
}

// TestAliasRequiresBasic проверяет, что мутации требуют Basic-учётных данных.
func TestAliasRequiresBasic(t *testing.T) {
	svc, authz := newTestAliasService()
	ctx := context.Background()
	authz.requireBasicFn = func(context.Context) error { return auth.ErrAuthz }

	if _, err := svc.Upsert(ctx, "a", "", model.GlobalAliasChanges{}); !errors.Is(err, auth.ErrAuthz) {
		t.Errorf("Upsert = %v, ожидался auth.ErrAuthz", err)
	}
	if err := svc.Delete(ctx, "a", ""); !errors.Is(err, auth.ErrAuthz) {
		t.Errorf("Delete = %v, ожидался auth.ErrAuthz", err)
	}
}

// TestAliasDelete_List проверяет удаление и постраничный список.
func TestAliasDelete_List(t *testing.T) {
	svc, _ := newTestAliasService()
	ctx := context.Background()

	refs := map[string]AliasRef{}
	for _, n := range []string{"c", "a", "b"} {
		ref, err := svc.Upsert(ctx, n, "", model.GlobalAliasChanges{})
		if err != nil {
			t.Fatalf("Upsert(%s) ошибка: %v", n, err)
		}
		refs[n] = ref
	}

	list, err := svc.List(ctx, repository.AliasListQuery{Start: "a", Limit: 10})
	if err != nil {
		t.Fatalf("List ошибка: %v", err)
	}
	if len(list) != 2 || list[0].Name != "b" || list[1].Name != "c" {
		t.Errorf("List(start=a) = %d записей", len(list))
	}
	if _, err := svc.List(ctx, repository.AliasListQuery{Limit: MaxLimit + 1}); !errors.Is(err, ErrValidation) {
		t.Errorf("List(limit>max) = %v", err)
	}
	empty, err := svc.List(ctx, repository.AliasListQuery{Limit: 0})
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("List(limit=0) = %v, %v", empty, err)
	}

	if err := svc.Delete(ctx, "b", "ffffffff"); !errors.Is(err, ErrRevisionMismatch) {
		t.Errorf("Delete с чужой ревизией = %v", err)
	}
	if err := svc.Delete(ctx, "b", refs["b"].Rev); err != nil {
		t.Errorf("Delete ошибка: %v", err)
	}
	if err := svc.Delete(ctx, "b", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Delete = %v, ожидался ErrNotFound", err)
	}
}
