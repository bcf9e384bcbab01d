package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/index-module/internal/auth"
	"github.com/bigkaa/goartstore/index-module/internal/config"
	"github.com/bigkaa/goartstore/index-module/internal/domain/guid"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

const testMD5 = "8b9942cf415384b27cadf1f4d2d682e5"

func ptr[T any](v T) *T { return &v }

func newTestService(layout string, prefix PrefixSettings) (*IndexService, *memStore, *mockAuthorizer) {
	store := newMemStore(layout)
	authz := &mockAuthorizer{}
	return NewIndexService(store, authz, prefix, slog.Default()), store, authz
}

func objectInput() CreateInput {
	return CreateInput{
		Form:   model.FormObject,
		Size:   ptr[int64](123),
		URLs:   []string{"s3://b/k"},
		Hashes: map[string]string{"md5": testMD5},
		Authz:  []string{"/programs/a"},
	}
}

// TestCreate_Get проверяет создание записи и чтение её дескриптора.
func TestCreate_Get(t *testing.T) {
	svc, _, authz := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()

	ref, err := svc.Create(ctx, objectInput())
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}
	if err := guid.ValidateDID(ref.DID); err != nil {
		t.Errorf("did: %v", err)
	}
	if !guid.ValidRev(ref.Rev) {
		t.Errorf("rev = %q, ожидался 8-символьный hex", ref.Rev)
	}
	if ref.BaseID == "" {
		t.Error("baseid не выпущен")
	}
	if c := authz.lastCall(); c.method != MethodCreate || len(c.resources) != 1 || c.resources[0] != "/programs/a" {
		t.Errorf("проверка прав = %+v, ожидалась create на /programs/a", c)
	}

	rec, err := svc.Get(ctx, ref.DID)
	if err != nil {
		t.Fatalf("Get ошибка: %v", err)
	}
	if *rec.Size != 123 || len(rec.URLs) != 1 || rec.URLs[0] != "s3://b/k" {
		t.Errorf("size=%d urls=%v", *rec.Size, rec.URLs)
	}
	if _, ok := rec.URLsMetadata["s3://b/k"]; !ok {
		t.Error("urls_metadata должен содержать запись для URL")
	}

	// по baseid возвращается последняя созданная запись семейства
	byBase, err := svc.Get(ctx, ref.BaseID)
	if err != nil || byBase.DID != ref.DID {
		t.Errorf("Get(baseid) = %v, %v", byBase, err)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, ожидался ErrNotFound", err)
	}
}

// TestCreate_Validation проверяет ошибки формы входных данных.
func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})

	tests := []struct {
		name   string
		mutate func(in *CreateInput)
	}{
		{"без хэшей", func(in *CreateInput) { in.Hashes = nil }},
		{"неверный md5", func(in *CreateInput) { in.Hashes = map[string]string{"md5": "xyz"} }},
		{"неизвестный тип хэша", func(in *CreateInput) { in.Hashes = map[string]string{"sha": testMD5} }},
		{"без size", func(in *CreateInput) { in.Size = nil }},
		{"отрицательный size", func(in *CreateInput) { in.Size = ptr[int64](-1) }},
		{"неверная форма", func(in *CreateInput) { in.Form = "file" }},
		{"неверный did", func(in *CreateInput) { in.DID = "not-a-uuid" }},
		{"urls_metadata вне urls", func(in *CreateInput) {
			in.URLsMetadata = map[string]map[string]string{"s3://other": {"k": "v"}}
		}},
		{"content_updated_date раньше created", func(in *CreateInput) {
			in.ContentCreatedDate = ptr(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
			in.ContentUpdatedDate = ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := objectInput()
			tt.mutate(&in)
			if _, err := svc.Create(context.Background(), in); !errors.Is(err, ErrValidation) {
				t.Errorf("Create = %v, ожидался ErrValidation", err)
			}
		})
	}
}

// TestCreate_DuplicateDID проверяет конфликт по did.
func TestCreate_DuplicateDID(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	in := objectInput()
	in.DID = guid.MintGUIDs(1, "")[0]

	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}
	if _, err := svc.Create(context.Background(), in); !errors.Is(err, ErrDuplicateRecord) {
		t.Errorf("повторный Create = %v, ожидался ErrDuplicateRecord", err)
	}
}

// TestCreate_Unauthorized проверяет, что отказ policy engine не сохраняет запись.
func TestCreate_Unauthorized(t *testing.T) {
	svc, store, authz := newTestService(config.IndexDriverMulti, PrefixSettings{})
	authz.authorizeFn = func(context.Context, string, []string) error { return auth.ErrAuthz }

	if _, err := svc.Create(context.Background(), objectInput()); !errors.Is(err, auth.ErrAuthz) {
		t.Fatalf("Create = %v, ожидался auth.ErrAuthz", err)
	}
	if len(store.state.records) != 0 {
		t.Error("запись сохранена несмотря на отказ в правах")
	}
}

// TestPrependPrefix проверяет did с префиксом и доступ по обеим формам.
func TestPrependPrefix(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{
		DefaultPrefix: "testprefix:",
		PrependPrefix: true,
	})
	ctx := context.Background()

	ref, err := svc.Create(ctx, objectInput())
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}
	if !strings.HasPrefix(ref.DID, "testprefix:") {
		t.Fatalf("did = %q, ожидался префикс testprefix:", ref.DID)
	}

	for _, key := range []string{ref.DID, strings.TrimPrefix(ref.DID, "testprefix:")} {
		rec, err := svc.GetWithNonstrictPrefix(ctx, key)
		if err != nil {
			t.Errorf("GetWithNonstrictPrefix(%q) ошибка: %v", key, err)
			continue
		}
		if rec.DID != ref.DID {
			t.Errorf("GetWithNonstrictPrefix(%q).DID = %q", key, rec.DID)
		}
	}

	if svc.MintPrefix() != "testprefix:" {
		t.Errorf("MintPrefix = %q", svc.MintPrefix())
	}
	guids := svc.MintGUIDs(3)
	if len(guids) != 3 || !strings.HasPrefix(guids[0], "testprefix:") || guids[0] == guids[1] {
		t.Errorf("MintGUIDs = %v", guids)
	}
}

// TestAddPrefixAlias проверяет привязку алиаса <prefix><did> при создании.
func TestAddPrefixAlias(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{
		DefaultPrefix:  "dg.1234/",
		AddPrefixAlias: true,
	})
	ctx := context.Background()

	ref, err := svc.Create(ctx, objectInput())
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}
	aliases, err := svc.GetAliases(ctx, ref.DID)
	if err != nil {
		t.Fatalf("GetAliases ошибка: %v", err)
	}
	if len(aliases) != 1 || aliases[0] != "dg.1234/"+ref.DID {
		t.Errorf("aliases = %v", aliases)
	}

	// Та же запись с тем же did даёт конфликт по did, а не по алиасу
	in := objectInput()
	in.DID = ref.DID
	if _, err := svc.Create(ctx, in); !errors.Is(err, ErrDuplicateRecord) {
		t.Errorf("Create = %v, ожидался ErrDuplicateRecord", err)
	}
}

// TestUpdate проверяет optimistic concurrency и порядок urls → urls_metadata.
func TestUpdate(t *testing.T) {
	svc, _, authz := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()

	ref, err := svc.Create(ctx, objectInput())
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}

	// Пустое изменение всё равно меняет ревизию
	ref2, err := svc.Update(ctx, ref.DID, ref.Rev, model.RecordChanges{})
	if err != nil {
		t.Fatalf("Update(∅) ошибка: %v", err)
	}
	if ref2.Rev == ref.Rev {
		t.Error("ревизия не изменилась после update")
	}

	// Старая ревизия отклоняется
	if _, err := svc.Update(ctx, ref.DID, ref.Rev, model.RecordChanges{}); !errors.Is(err, ErrRevisionMismatch) {
		t.Errorf("Update со старой ревизией = %v, ожидался ErrRevisionMismatch", err)
	}

	changes := model.RecordChanges{
		URLs:         model.Some([]string{"s3://new/k"}),
		URLsMetadata: model.Some(map[string]map[string]string{"s3://new/k": {"state": "ok"}}),
		Authz:        model.Some([]string{"/programs/b"}),
	}
	ref3, err := svc.Update(ctx, ref.DID, ref2.Rev, changes)
	if err != nil {
		t.Fatalf("Update ошибка: %v", err)
	}
	c := authz.lastCall()
	if c.method != MethodUpdate || len(c.resources) != 2 {
		t.Errorf("проверка прав = %+v, ожидался update на объединение старого и нового authz", c)
	}

	rec, err := svc.Get(ctx, ref.DID)
	if err != nil {
		t.Fatalf("Get ошибка: %v", err)
	}
	if rec.Rev != ref3.Rev || rec.URLs[0] != "s3://new/k" || rec.URLsMetadata["s3://new/k"]["state"] != "ok" {
		t.Errorf("после Update: rev=%s urls=%v meta=%v", rec.Rev, rec.URLs, rec.URLsMetadata)
	}
	if *rec.Size != 123 || rec.Hashes["md5"] != testMD5 {
		t.Error("поля, не входящие в изменения, изменились")
	}
}

// TestUpdate_SizeOnlySingle проверяет, что size редактируется только в single-раскладке.
func TestUpdate_SizeOnlySingle(t *testing.T) {
	ctx := context.Background()
	for _, layout := range []string{config.IndexDriverMulti, config.IndexDriverSingle} {
		svc, _, _ := newTestService(layout, PrefixSettings{})
		ref, err := svc.Create(ctx, objectInput())
		if err != nil {
			t.Fatalf("Create ошибка: %v", err)
		}
		_, err = svc.Update(ctx, ref.DID, ref.Rev, model.RecordChanges{Size: model.Some(ptr[int64](5))})
		if layout == config.IndexDriverMulti && !errors.Is(err, ErrValidation) {
			t.Errorf("%s: Update(size) = %v, ожидался ErrValidation", layout, err)
		}
		if layout == config.IndexDriverSingle && err != nil {
			t.Errorf("%s: Update(size) ошибка: %v", layout, err)
		}
	}
}

// TestUpdate_Concurrent проверяет, что из двух обновлений с одной ревизией проходит ровно одно.
func TestUpdate_Concurrent(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()

	ref, err := svc.Create(ctx, objectInput())
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Update(ctx, ref.DID, ref.Rev, model.RecordChanges{
				FileName: model.Some(ptr("f.txt")),
			})
		}(i)
	}
	wg.Wait()

	ok, mismatch := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrRevisionMismatch):
			mismatch++
		}
	}
	if ok != 1 || mismatch != 1 {
		t.Errorf("успешных %d, REVISION_MISMATCH %d; ожидалось 1 и 1", ok, mismatch)
	}
}

// TestDelete проверяет удаление и последующее обновление.
func TestDelete(t *testing.T) {
	svc, _, authz := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()

	ref, err := svc.Create(ctx, objectInput())
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}
	if err := svc.Delete(ctx, ref.DID, "deadbeef"); !errors.Is(err, ErrRevisionMismatch) {
		t.Errorf("Delete с чужой ревизией = %v", err)
	}
	if err := svc.Delete(ctx, ref.DID, ref.Rev); err != nil {
		t.Fatalf("Delete ошибка: %v", err)
	}
	if c := authz.lastCall(); c.method != MethodDelete {
		t.Errorf("проверка прав = %+v, ожидался delete", c)
	}
	if _, err := svc.Update(ctx, ref.DID, ref.Rev, model.RecordChanges{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update удалённой записи = %v, ожидался ErrNotFound", err)
	}
}

// TestBlankLifecycle проверяет create_blank → blank_update.
func TestBlankLifecycle(t *testing.T) {
	svc, _, authz := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()

	if _, err := svc.CreateBlank(ctx, BlankInput{}); !errors.Is(err, ErrValidation) {
		t.Errorf("CreateBlank без uploader = %v, ожидался ErrValidation", err)
	}

	ref, err := svc.CreateBlank(ctx, BlankInput{Uploader: "u"})
	if err != nil {
		t.Fatalf("CreateBlank ошибка: %v", err)
	}
	if c := authz.lastCall(); c.method != MethodFileUpload || c.resources[0] != ResourceDataFile {
		t.Errorf("проверка прав = %+v", c)
	}

	rec, err := svc.Get(ctx, ref.DID)
	if err != nil {
		t.Fatalf("Get ошибка: %v", err)
	}
	if !rec.IsBlank() || len(rec.ACL) != 0 || rec.Size != nil {
		t.Errorf("blank-запись: size=%v acl=%v", rec.Size, rec.ACL)
	}

	in := BlankUpdateInput{
		Size:   ptr[int64](10),
		Hashes: map[string]string{"md5": "8b9942cf415384b27cadf1f4d2d981f5"},
		URLs:   []string{"s3://b/k"},
	}
	if _, err := svc.BlankUpdate(ctx, ref.DID, "00000000", in); !errors.Is(err, ErrRevisionMismatch) {
		t.Errorf("BlankUpdate с чужой ревизией = %v", err)
	}
	ref2, err := svc.BlankUpdate(ctx, ref.DID, ref.Rev, in)
	if err != nil {
		t.Fatalf("BlankUpdate ошибка: %v", err)
	}

	rec, err = svc.Get(ctx, ref.DID)
	if err != nil {
		t.Fatalf("Get ошибка: %v", err)
	}
	if rec.Size == nil || *rec.Size != 10 || rec.Rev != ref2.Rev {
		t.Errorf("после BlankUpdate: size=%v rev=%s", rec.Size, rec.Rev)
	}

	// Повторное заполнение запрещено
	if _, err := svc.BlankUpdate(ctx, ref.DID, ref2.Rev, in); !errors.Is(err, ErrValidation) {
		t.Errorf("повторный BlankUpdate = %v, ожидался ErrValidation", err)
	}
}

// TestBlankVersion проверяет blank-версию в семействе существующей записи.
func TestBlankVersion(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()

	a, err := svc.Create(ctx, objectInput())
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}
	b, err := svc.CreateBlankVersion(ctx, a.DID, BlankInput{Uploader: "u"})
	if err != nil {
		t.Fatalf("CreateBlankVersion ошибка: %v", err)
	}
	if b.BaseID != a.BaseID || b.DID == a.DID {
		t.Errorf("blank-версия: %+v, источник %+v", b, a)
	}
	if _, err := svc.CreateBlankVersion(ctx, "missing", BlankInput{Uploader: "u"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateBlankVersion(missing) = %v", err)
	}
}

// TestVersionChain проверяет create_version, get_all_versions и get_latest_version.
func TestVersionChain(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()

	a, err := svc.Create(ctx, objectInput())
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	in := objectInput()
	in.Version = ptr("2")
	b, err := svc.CreateVersion(ctx, a.DID, in)
	if err != nil {
		t.Fatalf("CreateVersion ошибка: %v", err)
	}
	if b.BaseID != a.BaseID {
		t.Errorf("baseid версии = %q, ожидался %q", b.BaseID, a.BaseID)
	}

	all, err := svc.GetAllVersions(ctx, a.DID, false)
	if err != nil {
		t.Fatalf("GetAllVersions ошибка: %v", err)
	}
	if len(all) != 2 || all[0].DID != a.DID || all[1].DID != b.DID {
		t.Errorf("GetAllVersions = %d записей", len(all))
	}

	got, err := svc.GetLatestVersion(ctx, a.BaseID, false, false)
	if err != nil {
		t.Fatalf("GetLatestVersion ошибка: %v", err)
	}
	if got.DID != b.DID {
		t.Errorf("GetLatestVersion = %s, ожидался %s", got.DID, b.DID)
	}

	// Пометка deleted исключает версию
	_, err = svc.Update(ctx, b.DID, b.Rev, model.RecordChanges{
		Metadata: model.Some(map[string]string{model.MetadataDeleted: "true"}),
	})
	if err != nil {
		t.Fatalf("Update ошибка: %v", err)
	}
	got, err = svc.GetLatestVersion(ctx, a.DID, false, true)
	if err != nil || got.DID != a.DID {
		t.Errorf("GetLatestVersion(exclude_deleted) = %v, %v; ожидался %s", got, err, a.DID)
	}
	all, _ = svc.GetAllVersions(ctx, a.DID, true)
	if len(all) != 1 {
		t.Errorf("GetAllVersions(exclude_deleted) = %d записей, ожидалась 1", len(all))
	}

	// has_version: версия есть только у b, но b помечена deleted
	if _, err := svc.GetLatestVersion(ctx, a.DID, true, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLatestVersion(has_version, exclude_deleted) = %v, ожидался ErrNotFound", err)
	}

	if _, err := svc.CreateVersion(ctx, "missing", objectInput()); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateVersion(missing) = %v", err)
	}
}

// TestLatest_TieBreak проверяет выбор меньшего did при равном updated_date.
func TestLatest_TieBreak(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	versions := []*model.Record{
		{DID: "c", UpdatedDate: ts},
		{DID: "a", UpdatedDate: ts},
		{DID: "b", UpdatedDate: ts.Add(-time.Second)},
	}
	if got := latest(versions); got.DID != "a" {
		t.Errorf("latest = %s, ожидался a", got.DID)
	}
	if latest(nil) != nil {
		t.Error("latest(nil) должен возвращать nil")
	}
}

// TestBulk проверяет порядок bulk_get и bulk_get_latest.
func TestBulk(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()

	a, _ := svc.Create(ctx, objectInput())
	b, _ := svc.Create(ctx, objectInput())
	time.Sleep(2 * time.Millisecond)
	a2, err := svc.CreateVersion(ctx, a.DID, objectInput())
	if err != nil {
		t.Fatalf("CreateVersion ошибка: %v", err)
	}

	recs, err := svc.BulkGet(ctx, []string{b.DID, "missing", a.DID, b.DID})
	if err != nil {
		t.Fatalf("BulkGet ошибка: %v", err)
	}
	if len(recs) != 2 || recs[0].DID != b.DID || recs[1].DID != a.DID {
		t.Errorf("BulkGet вернул %d записей в неверном порядке", len(recs))
	}

	latestRecs, err := svc.BulkGetLatest(ctx, []string{a.DID, a2.DID, b.DID, "missing"}, false, false)
	if err != nil {
		t.Fatalf("BulkGetLatest ошибка: %v", err)
	}
	if len(latestRecs) != 2 || latestRecs[0].DID != a2.DID || latestRecs[1].DID != b.DID {
		t.Errorf("BulkGetLatest = %d записей", len(latestRecs))
	}
}

// TestRecordAliases проверяет операции над алиасами записей.
func TestRecordAliases(t *testing.T) {
	svc, _, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()

	a, _ := svc.Create(ctx, objectInput())
	b, _ := svc.Create(ctx, objectInput())

	names, err := svc.AppendAliases(ctx, a.DID, []string{"x", "y"})
	if err != nil {
		t.Fatalf("AppendAliases ошибка: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("aliases = %v", names)
	}
	rec, _ := svc.Get(ctx, a.DID)
	if rec.Rev == a.Rev {
		t.Error("ревизия не изменилась после AppendAliases")
	}

	// Имя занято другой записью
	if _, err := svc.AppendAliases(ctx, b.DID, []string{"x"}); !errors.Is(err, ErrDuplicateRecord) {
		t.Errorf("AppendAliases(занятое имя) = %v, ожидался ErrDuplicateRecord", err)
	}

	// Replace с конфликтом откатывается целиком
	if _, err := svc.AppendAliases(ctx, b.DID, []string{"z"}); err != nil {
		t.Fatalf("AppendAliases ошибка: %v", err)
	}
	if _, err := svc.ReplaceAliases(ctx, a.DID, []string{"q", "z"}); !errors.Is(err, ErrDuplicateRecord) {
		t.Errorf("ReplaceAliases с конфликтом = %v", err)
	}
	names, _ = svc.GetAliases(ctx, a.DID)
	if len(names) != 2 || names[0] != "x" || names[1] != "y" {
		t.Errorf("после неудачного Replace aliases = %v, ожидались [x y]", names)
	}

	names, err = svc.ReplaceAliases(ctx, a.DID, []string{"q"})
	if err != nil || len(names) != 1 || names[0] != "q" {
		t.Errorf("ReplaceAliases = %v, %v", names, err)
	}

	if err := svc.DeleteAlias(ctx, a.DID, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteAlias(nope) = %v", err)
	}
	if err := svc.DeleteAlias(ctx, a.DID, "q"); err != nil {
		t.Errorf("DeleteAlias ошибка: %v", err)
	}
	if err := svc.DeleteAllAliases(ctx, b.DID); err != nil {
		t.Errorf("DeleteAllAliases ошибка: %v", err)
	}
	names, _ = svc.GetAliases(ctx, b.DID)
	if len(names) != 0 {
		t.Errorf("после DeleteAllAliases aliases = %v", names)
	}

	if _, err := svc.AppendAliases(ctx, a.DID, []string{"d", "d"}); !errors.Is(err, ErrValidation) {
		t.Errorf("AppendAliases с дубликатами = %v", err)
	}
	if _, err := svc.GetAliases(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAliases(missing) = %v", err)
	}
}

// TestDeleteRemovesAliases проверяет, что алиасы удаляются вместе с записью.
func TestDeleteRemovesAliases(t *testing.T) {
	svc, store, _ := newTestService(config.IndexDriverMulti, PrefixSettings{})
	ctx := context.Background()

	a, _ := svc.Create(ctx, objectInput())
	if _, err := svc.AppendAliases(ctx, a.DID, []string{"owned"}); err != nil {
		t.Fatalf("AppendAliases ошибка: %v", err)
	}
	rec, _ := svc.Get(ctx, a.DID)
	if err := svc.Delete(ctx, a.DID, rec.Rev); err != nil {
		t.Fatalf("Delete ошибка: %v", err)
	}
	if len(store.state.aliases) != 0 {
		t.Errorf("алиасы остались после удаления: %v", store.state.aliases)
	}
	if _, ok := store.state.bases[a.BaseID]; !ok {
		t.Error("семейство версий удалено вместе с записью")
	}
}

var _ IndexStore = (*repository.IndexStore)(nil)
