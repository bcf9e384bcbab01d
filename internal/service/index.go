// index.go — движок записей индекса: создание, обновление, удаление, версии и алиасы записей.
// Каждая операция выполняется в одной транзакции; мутации проверяют ревизию
// под блокировкой строки записи.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/index-module/internal/config"
	"github.com/bigkaa/goartstore/index-module/internal/domain/guid"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

// Prometheus-метрики мутаций.
var (
	recordsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_records_created_total",
		Help: "Количество созданных записей индекса.",
	}, []string{"kind"})
	recordsUpdatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_records_updated_total",
		Help: "Количество обновлений записей индекса.",
	}, []string{"kind"})
	recordsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_records_deleted_total",
		Help: "Количество удалённых записей индекса.",
	})
)

// Методы и ресурсы policy engine.
const (
	MethodCreate     = "create"
	MethodRead       = "read"
	MethodUpdate     = "update"
	MethodDelete     = "delete"
	MethodFileUpload = "file_upload"

	// ResourceDataFile — ресурс, право file_upload на который требуется для blank-записей
	ResourceDataFile = "/data_file"
)

// IndexStore — транзакционный доступ к выбранной раскладке индекса.
type IndexStore interface {
	Session(ctx context.Context, fn func(repo repository.IndexRepository) error) error
	Layout() string
}

// Authorizer — проверка прав текущего запроса (учётные данные берутся из контекста).
// Возвращает auth.ErrAuth при неверных учётных данных и auth.ErrAuthz при отказе.
type Authorizer interface {
	// Authorize требует право method на каждый ресурс.
	Authorize(ctx context.Context, method string, resources []string) error
	// RequireBasic требует валидные Basic-учётные данные.
	RequireBasic(ctx context.Context) error
}

// PrefixSettings — настройки префикса идентификаторов.
type PrefixSettings struct {
	DefaultPrefix  string
	PrependPrefix  bool
	AddPrefixAlias bool
}

// PrefixSettingsFromConfig извлекает настройки префикса из конфигурации.
func PrefixSettingsFromConfig(cfg *config.Config) PrefixSettings {
	return PrefixSettings{
		DefaultPrefix:  cfg.DefaultPrefix,
		PrependPrefix:  cfg.PrependPrefix,
		AddPrefixAlias: cfg.AddPrefixAlias,
	}
}

// mintPrefix возвращает префикс для новых did.
func (p PrefixSettings) mintPrefix() string {
	if p.PrependPrefix {
		return p.DefaultPrefix
	}
	return ""
}

// RecordRef — результат мутации.
type RecordRef struct {
	DID    string
	Rev    string
	BaseID string
}

// CreateInput — дескриптор новой записи или версии.
type CreateInput struct {
	Form               model.Form
	DID                string
	BaseID             string
	Size               *int64
	URLs               []string
	Hashes             map[string]string
	FileName           *string
	Version            *string
	Uploader           *string
	Description        *string
	Metadata           map[string]string
	URLsMetadata       map[string]map[string]string
	ACL                []string
	Authz              []string
	ContentCreatedDate *time.Time
	ContentUpdatedDate *time.Time
}

// BlankInput — параметры blank-записи.
type BlankInput struct {
	Uploader string
	FileName *string
}

// BlankUpdateInput — заполнение blank-записи. Authz == nil — не менять.
type BlankUpdateInput struct {
	Size   *int64
	Hashes map[string]string
	URLs   []string
	Authz  []string
}

// IndexService — движок записей и запросов индекса.
type IndexService struct {
	store  IndexStore
	authz  Authorizer
	prefix PrefixSettings
	logger *slog.Logger
}

// NewIndexService создаёт сервис индекса.
func NewIndexService(store IndexStore, authz Authorizer, prefix PrefixSettings, logger *slog.Logger) *IndexService {
	return &IndexService{
		store:  store,
		authz:  authz,
		prefix: prefix,
		logger: logger.With(slog.String("component", "index_service")),
	}
}

// Prefix возвращает префикс по умолчанию.
func (s *IndexService) Prefix() string {
	return s.prefix.DefaultPrefix
}

// MintPrefix возвращает префикс, добавляемый к выпускаемым did ("" без PREPEND_PREFIX).
func (s *IndexService) MintPrefix() string {
	return s.prefix.mintPrefix()
}

// MintGUIDs выпускает count идентификаторов без резервирования в хранилище.
func (s *IndexService) MintGUIDs(count int) []string {
	return guid.MintGUIDs(count, s.prefix.mintPrefix())
}

// Layout возвращает имя раскладки индекса.
func (s *IndexService) Layout() string {
	return s.store.Layout()
}

// newRecord проверяет вход и собирает запись (без did и baseid).
func newRecord(in *CreateInput) (*model.Record, error) {
	if in.Size == nil {
		return nil, validationf("size обязателен")
	}
	if len(in.Hashes) == 0 {
		return nil, validationf("требуется хотя бы один хэш")
	}
	if in.DID != "" {
		if err := guid.ValidateDID(in.DID); err != nil {
			return nil, invalid(err)
		}
	}

	now := model.Now()
	rec := &model.Record{
		DID:                in.DID,
		BaseID:             in.BaseID,
		Rev:                guid.MintRev(),
		Form:               in.Form,
		Size:               in.Size,
		CreatedDate:        now,
		UpdatedDate:        now,
		FileName:           in.FileName,
		Version:            in.Version,
		Uploader:           in.Uploader,
		Description:        in.Description,
		ContentCreatedDate: in.ContentCreatedDate,
		ContentUpdatedDate: in.ContentUpdatedDate,
		Hashes:             in.Hashes,
		URLs:               in.URLs,
		URLsMetadata:       in.URLsMetadata,
		Metadata:           in.Metadata,
		ACL:                in.ACL,
		Authz:              in.Authz,
	}
	// ключи urls_metadata проверяются до нормализации, которая отбрасывает лишние
	if err := model.ValidateURLs(rec.URLs, rec.URLsMetadata); err != nil {
		return nil, invalid(err)
	}
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, invalid(err)
	}
	return rec, nil
}

// Create создаёт запись. did и baseid выпускаются, если не переданы.
func (s *IndexService) Create(ctx context.Context, in CreateInput) (RecordRef, error) {
	rec, err := newRecord(&in)
	if err != nil {
		return RecordRef{}, err
	}
	if rec.DID == "" {
		rec.DID = guid.MintGUIDs(1, s.prefix.mintPrefix())[0]
	}
	if rec.BaseID == "" {
		rec.BaseID = guid.MintGUIDs(1, "")[0]
	}
	if s.prefix.AddPrefixAlias {
		rec.Aliases = []string{s.prefix.DefaultPrefix + guid.StripPrefix(rec.DID, s.prefix.DefaultPrefix)}
	}

	if err := s.authz.Authorize(ctx, MethodCreate, rec.Authz); err != nil {
		return RecordRef{}, err
	}

	err = s.store.Session(ctx, func(repo repository.IndexRepository) error {
		return repo.Insert(ctx, rec)
	})
	if err != nil {
		return RecordRef{}, translateRepoErr(err, "создание записи")
	}

	recordsCreatedTotal.WithLabelValues("record").Inc()
	s.logger.Info("Запись создана",
		slog.String("did", rec.DID),
		slog.String("baseid", rec.BaseID),
		slog.String("rev", rec.Rev),
	)
	return RecordRef{DID: rec.DID, Rev: rec.Rev, BaseID: rec.BaseID}, nil
}

// blankRecord собирает blank-запись в семействе baseid.
func (s *IndexService) blankRecord(in BlankInput, baseid string) (*model.Record, error) {
	if in.Uploader == "" {
		return nil, validationf("uploader обязателен")
	}
	now := model.Now()
	uploader := in.Uploader
	rec := &model.Record{
		DID:         guid.MintGUIDs(1, s.prefix.mintPrefix())[0],
		BaseID:      baseid,
		Rev:         guid.MintRev(),
		Form:        model.FormObject,
		CreatedDate: now,
		UpdatedDate: now,
		Uploader:    &uploader,
		FileName:    in.FileName,
	}
	rec.Normalize()
	return rec, nil
}

// CreateBlank резервирует blank-запись (без размера, хэшей и URL).
func (s *IndexService) CreateBlank(ctx context.Context, in BlankInput) (RecordRef, error) {
	rec, err := s.blankRecord(in, guid.MintGUIDs(1, "")[0])
	if err != nil {
		return RecordRef{}, err
	}
	if err := s.authz.Authorize(ctx, MethodFileUpload, []string{ResourceDataFile}); err != nil {
		return RecordRef{}, err
	}

	err = s.store.Session(ctx, func(repo repository.IndexRepository) error {
		return repo.Insert(ctx, rec)
	})
	if err != nil {
		return RecordRef{}, translateRepoErr(err, "создание blank-записи")
	}

	recordsCreatedTotal.WithLabelValues("blank").Inc()
	s.logger.Info("Blank-запись создана",
		slog.String("did", rec.DID),
		slog.String("uploader", in.Uploader),
	)
	return RecordRef{DID: rec.DID, Rev: rec.Rev, BaseID: rec.BaseID}, nil
}

// CreateBlankVersion создаёт blank-запись в семействе записи did.
func (s *IndexService) CreateBlankVersion(ctx context.Context, did string, in BlankInput) (RecordRef, error) {
	if err := s.authz.Authorize(ctx, MethodFileUpload, []string{ResourceDataFile}); err != nil {
		return RecordRef{}, err
	}

	var rec *model.Record
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		src, err := repo.Get(ctx, did, false)
		if err != nil {
			return translateRepoErr(err, "получение исходной записи")
		}
		rec, err = s.blankRecord(in, src.BaseID)
		if err != nil {
			return err
		}
		return translateRepoErr(repo.Insert(ctx, rec), "создание blank-версии")
	})
	if err != nil {
		return RecordRef{}, err
	}

	recordsCreatedTotal.WithLabelValues("blank_version").Inc()
	s.logger.Info("Blank-версия создана",
		slog.String("did", rec.DID),
		slog.String("source_did", did),
	)
	return RecordRef{DID: rec.DID, Rev: rec.Rev, BaseID: rec.BaseID}, nil
}

// BlankUpdate заполняет blank-запись размером, хэшами и URL.
func (s *IndexService) BlankUpdate(ctx context.Context, did, rev string, in BlankUpdateInput) (RecordRef, error) {
	if in.Size == nil {
		return RecordRef{}, validationf("size обязателен")
	}
	if *in.Size < 0 {
		return RecordRef{}, validationf("размер не может быть отрицательным: %d", *in.Size)
	}
	if err := model.ValidateHashes(in.Hashes, true); err != nil {
		return RecordRef{}, invalid(err)
	}
	if err := model.ValidateURLs(in.URLs, nil); err != nil {
		return RecordRef{}, invalid(err)
	}

	var ref RecordRef
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		rec, err := repo.Get(ctx, did, true)
		if err != nil {
			return translateRepoErr(err, "получение blank-записи")
		}
		if err := checkRev(rec.Rev, rev); err != nil {
			return err
		}
		if !rec.IsBlank() {
			return validationf("запись %s уже заполнена", did)
		}

		if in.Authz != nil {
			err = s.authz.Authorize(ctx, MethodUpdate, in.Authz)
		} else {
			err = s.authz.Authorize(ctx, MethodFileUpload, []string{ResourceDataFile})
		}
		if err != nil {
			return err
		}

		rec.Size = in.Size
		rec.Hashes = in.Hashes
		rec.URLs = in.URLs
		rec.URLsMetadata = nil
		if in.Authz != nil {
			rec.Authz = in.Authz
		}
		rec.Rev = guid.MintRev()
		rec.UpdatedDate = model.Now()
		rec.Normalize()
		if err := rec.Validate(); err != nil {
			return invalid(err)
		}
		if err := repo.Save(ctx, rec); err != nil {
			return translateRepoErr(err, "заполнение blank-записи")
		}
		ref = RecordRef{DID: rec.DID, Rev: rec.Rev, BaseID: rec.BaseID}
		return nil
	})
	if err != nil {
		return RecordRef{}, err
	}

	recordsUpdatedTotal.WithLabelValues("blank").Inc()
	s.logger.Info("Blank-запись заполнена", slog.String("did", did), slog.String("rev", ref.Rev))
	return ref, nil
}

// Update применяет изменения к записи при совпадении ревизии.
// Право update требуется на объединение старого и нового authz.
func (s *IndexService) Update(ctx context.Context, did, rev string, changes model.RecordChanges) (RecordRef, error) {
	if changes.Size.Set && s.store.Layout() != config.IndexDriverSingle {
		return RecordRef{}, validationf("изменение size поддерживается только раскладкой single")
	}

	var ref RecordRef
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		old, err := repo.Get(ctx, did, true)
		if err != nil {
			return translateRepoErr(err, "получение записи")
		}
		if err := checkRev(old.Rev, rev); err != nil {
			return err
		}

		rec, err := changes.Apply(old)
		if err != nil {
			return invalid(err)
		}
		if err := s.authz.Authorize(ctx, MethodUpdate, model.UnionAuthz(old.Authz, rec.Authz)); err != nil {
			return err
		}

		rec.Rev = guid.MintRev()
		rec.UpdatedDate = model.Now()
		if err := repo.Save(ctx, rec); err != nil {
			return translateRepoErr(err, "обновление записи")
		}
		ref = RecordRef{DID: rec.DID, Rev: rec.Rev, BaseID: rec.BaseID}
		return nil
	})
	if err != nil {
		return RecordRef{}, err
	}

	recordsUpdatedTotal.WithLabelValues("record").Inc()
	s.logger.Info("Запись обновлена", slog.String("did", did), slog.String("rev", ref.Rev))
	return ref, nil
}

// Delete удаляет запись вместе с её алиасами. Семейство версий остаётся.
func (s *IndexService) Delete(ctx context.Context, did, rev string) error {
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		rec, err := repo.Get(ctx, did, true)
		if err != nil {
			return translateRepoErr(err, "получение записи")
		}
		if err := checkRev(rec.Rev, rev); err != nil {
			return err
		}
		if err := s.authz.Authorize(ctx, MethodDelete, rec.Authz); err != nil {
			return err
		}
		return translateRepoErr(repo.Delete(ctx, did), "удаление записи")
	})
	if err != nil {
		return err
	}

	recordsDeletedTotal.Inc()
	s.logger.Info("Запись удалена", slog.String("did", did))
	return nil
}

// CreateVersion добавляет новую запись в семейство записи did.
func (s *IndexService) CreateVersion(ctx context.Context, did string, in CreateInput) (RecordRef, error) {
	in.BaseID = ""
	rec, err := newRecord(&in)
	if err != nil {
		return RecordRef{}, err
	}
	if rec.DID == "" {
		rec.DID = guid.MintGUIDs(1, s.prefix.mintPrefix())[0]
	}

	err = s.store.Session(ctx, func(repo repository.IndexRepository) error {
		src, err := repo.Get(ctx, did, false)
		if err != nil {
			return translateRepoErr(err, "получение исходной записи")
		}
		if err := s.authz.Authorize(ctx, MethodUpdate, model.UnionAuthz(src.Authz, rec.Authz)); err != nil {
			return err
		}
		rec.BaseID = src.BaseID
		return translateRepoErr(repo.Insert(ctx, rec), "создание версии")
	})
	if err != nil {
		return RecordRef{}, err
	}

	recordsCreatedTotal.WithLabelValues("version").Inc()
	s.logger.Info("Версия создана",
		slog.String("did", rec.DID),
		slog.String("source_did", did),
		slog.String("baseid", rec.BaseID),
	)
	return RecordRef{DID: rec.DID, Rev: rec.Rev, BaseID: rec.BaseID}, nil
}

// --- чтение ---

// getByKey ищет запись по did, затем последнюю созданную запись семейства baseid.
func getByKey(ctx context.Context, repo repository.IndexRepository, key string) (*model.Record, error) {
	rec, err := repo.Get(ctx, key, false)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("получение записи: %w", err)
	}

	versions, err := repo.ListVersions(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("получение версий: %w", err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	// ListVersions упорядочен по created_date
	return versions[len(versions)-1], nil
}

// Get возвращает запись по did или последнюю созданную запись семейства baseid.
func (s *IndexService) Get(ctx context.Context, key string) (*model.Record, error) {
	var rec *model.Record
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		var err error
		rec, err = getByKey(ctx, repo, key)
		return err
	})
	return rec, err
}

// GetWithNonstrictPrefix как Get, но при промахе повторяет поиск с добавленным или снятым префиксом.
func (s *IndexService) GetWithNonstrictPrefix(ctx context.Context, key string) (*model.Record, error) {
	rec, err := s.Get(ctx, key)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return rec, err
	}
	alt, ok := guid.Alternate(key, s.prefix.DefaultPrefix)
	if !ok {
		return nil, err
	}
	return s.Get(ctx, alt)
}

// resolveBaseID разрешает did или baseid в baseid.
func resolveBaseID(ctx context.Context, repo repository.IndexRepository, key string) (string, error) {
	ids, err := repo.BaseIDsOf(ctx, []string{key})
	if err != nil {
		return "", err
	}
	if baseid, ok := ids[key]; ok {
		return baseid, nil
	}
	exists, err := repo.BaseIDExists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return key, nil
}

// filterVersions отбрасывает версии по флагам hasVersion и excludeDeleted.
func filterVersions(versions []*model.Record, hasVersion, excludeDeleted bool) []*model.Record {
	out := versions[:0:0]
	for _, v := range versions {
		if hasVersion && v.Version == nil {
			continue
		}
		if excludeDeleted && v.IsDeleted() {
			continue
		}
		out = append(out, v)
	}
	return out
}

// latest выбирает версию с наибольшим updated_date; при равенстве — с меньшим did.
func latest(versions []*model.Record) *model.Record {
	var best *model.Record
	for _, v := range versions {
		if best == nil || v.UpdatedDate.After(best.UpdatedDate) ||
			(v.UpdatedDate.Equal(best.UpdatedDate) && v.DID < best.DID) {
			best = v
		}
	}
	return best
}

// GetAllVersions возвращает все версии семейства в порядке создания.
func (s *IndexService) GetAllVersions(ctx context.Context, key string, excludeDeleted bool) ([]*model.Record, error) {
	var versions []*model.Record
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		baseid, err := resolveBaseID(ctx, repo, key)
		if err != nil {
			return err
		}
		versions, err = repo.ListVersions(ctx, baseid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return filterVersions(versions, false, excludeDeleted), nil
}

// GetLatestVersion возвращает последнюю по updated_date версию семейства.
func (s *IndexService) GetLatestVersion(ctx context.Context, key string, hasVersion, excludeDeleted bool) (*model.Record, error) {
	var versions []*model.Record
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		baseid, err := resolveBaseID(ctx, repo, key)
		if err != nil {
			return err
		}
		versions, err = repo.ListVersions(ctx, baseid)
		return err
	})
	if err != nil {
		return nil, err
	}
	rec := latest(filterVersions(versions, hasVersion, excludeDeleted))
	if rec == nil {
		return nil, fmt.Errorf("%w: нет подходящих версий для %s", ErrNotFound, key)
	}
	return rec, nil
}

// BulkGet возвращает записи в порядке входного списка; отсутствующие did пропускаются.
func (s *IndexService) BulkGet(ctx context.Context, dids []string) ([]*model.Record, error) {
	var found []*model.Record
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		var err error
		found, err = repo.GetMany(ctx, dids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("пакетное получение: %w", err)
	}

	byDID := make(map[string]*model.Record, len(found))
	for _, rec := range found {
		byDID[rec.DID] = rec
	}
	out := make([]*model.Record, 0, len(found))
	for _, did := range dids {
		if rec, ok := byDID[did]; ok {
			out = append(out, rec)
			delete(byDID, did)
		}
	}
	return out, nil
}

// BulkGetLatest возвращает последнюю версию каждого семейства, затронутого входными did.
func (s *IndexService) BulkGetLatest(ctx context.Context, dids []string, hasVersion, excludeDeleted bool) ([]*model.Record, error) {
	var baseids []string
	var versions []*model.Record
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		ids, err := repo.BaseIDsOf(ctx, dids)
		if err != nil {
			return err
		}
		seen := map[string]struct{}{}
		for _, did := range dids {
			baseid, ok := ids[did]
			if !ok {
				continue
			}
			if _, dup := seen[baseid]; dup {
				continue
			}
			seen[baseid] = struct{}{}
			baseids = append(baseids, baseid)
		}
		versions, err = repo.ListVersionsByBaseIDs(ctx, baseids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("пакетное получение последних версий: %w", err)
	}

	families := map[string][]*model.Record{}
	for _, v := range versions {
		families[v.BaseID] = append(families[v.BaseID], v)
	}
	out := make([]*model.Record, 0, len(baseids))
	for _, baseid := range baseids {
		if rec := latest(filterVersions(families[baseid], hasVersion, excludeDeleted)); rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

// --- алиасы записей ---

// validateAliasNames проверяет имена алиасов.
func validateAliasNames(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return validationf("пустое имя алиаса")
		}
		if _, dup := seen[n]; dup {
			return validationf("дублирующийся алиас %q", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// GetAliases возвращает алиасы записи.
func (s *IndexService) GetAliases(ctx context.Context, did string) ([]string, error) {
	var names []string
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		if _, err := repo.Get(ctx, did, false); err != nil {
			return translateRepoErr(err, "получение записи")
		}
		var err error
		names, err = repo.ListAliases(ctx, did)
		return err
	})
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// mutateAliases выполняет fn под блокировкой записи после проверки права update
// и обновляет ревизию записи. Возвращает итоговый список алиасов.
func (s *IndexService) mutateAliases(ctx context.Context, did string, fn func(repo repository.IndexRepository) error) ([]string, error) {
	var names []string
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		rec, err := repo.Get(ctx, did, true)
		if err != nil {
			return translateRepoErr(err, "получение записи")
		}
		if err := s.authz.Authorize(ctx, MethodUpdate, rec.Authz); err != nil {
			return err
		}
		if err := fn(repo); err != nil {
			return err
		}
		if err := repo.Touch(ctx, did, guid.MintRev(), model.Now()); err != nil {
			return translateRepoErr(err, "обновление ревизии")
		}
		names, err = repo.ListAliases(ctx, did)
		return err
	})
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	recordsUpdatedTotal.WithLabelValues("aliases").Inc()
	return names, nil
}

// AppendAliases привязывает алиасы к записи; ErrDuplicateRecord, если имя занято.
func (s *IndexService) AppendAliases(ctx context.Context, did string, names []string) ([]string, error) {
	if err := validateAliasNames(names); err != nil {
		return nil, err
	}
	out, err := s.mutateAliases(ctx, did, func(repo repository.IndexRepository) error {
		return translateRepoErr(repo.AddAliases(ctx, did, names), "привязка алиасов")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Алиасы добавлены", slog.String("did", did), slog.Int("count", len(names)))
	return out, nil
}

// ReplaceAliases атомарно заменяет набор алиасов записи.
func (s *IndexService) ReplaceAliases(ctx context.Context, did string, names []string) ([]string, error) {
	if err := validateAliasNames(names); err != nil {
		return nil, err
	}
	out, err := s.mutateAliases(ctx, did, func(repo repository.IndexRepository) error {
		if err := repo.DeleteAllAliases(ctx, did); err != nil {
			return translateRepoErr(err, "удаление алиасов")
		}
		return translateRepoErr(repo.AddAliases(ctx, did, names), "привязка алиасов")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Алиасы заменены", slog.String("did", did), slog.Int("count", len(names)))
	return out, nil
}

// DeleteAlias отвязывает алиас; ErrNotFound, если он не принадлежит записи.
func (s *IndexService) DeleteAlias(ctx context.Context, did, name string) error {
	_, err := s.mutateAliases(ctx, did, func(repo repository.IndexRepository) error {
		return translateRepoErr(repo.DeleteAlias(ctx, did, name), "удаление алиаса")
	})
	if err != nil {
		return err
	}
	s.logger.Info("Алиас удалён", slog.String("did", did), slog.String("alias", name))
	return nil
}

// DeleteAllAliases отвязывает все алиасы записи.
func (s *IndexService) DeleteAllAliases(ctx context.Context, did string) error {
	_, err := s.mutateAliases(ctx, did, func(repo repository.IndexRepository) error {
		return translateRepoErr(repo.DeleteAllAliases(ctx, did), "удаление алиасов")
	})
	if err != nil {
		return err
	}
	s.logger.Info("Все алиасы удалены", slog.String("did", did))
	return nil
}
