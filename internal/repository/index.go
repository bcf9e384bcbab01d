package repository

import (
	"context"
	"time"

	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
)

// IndexRepository — операции над записями индекса.
// Обе раскладки (multi и single) реализуют одинаковый набор предикатов и мутаций.
type IndexRepository interface {
	// Layout возвращает имя раскладки (multi или single).
	Layout() string

	// Insert сохраняет новую запись вместе с алиасами; создаёт base_version при необходимости.
	// ErrConflict — если did или один из алиасов уже заняты.
	Insert(ctx context.Context, rec *model.Record) error
	// Get возвращает запись по did; forUpdate блокирует строку до конца транзакции.
	Get(ctx context.Context, did string, forUpdate bool) (*model.Record, error)
	// Save перезаписывает редактируемые поля записи (кроме алиасов).
	Save(ctx context.Context, rec *model.Record) error
	// Touch обновляет rev и updated_date.
	Touch(ctx context.Context, did, rev string, updated time.Time) error
	// Delete удаляет запись и всё, чем она владеет. base_version остаётся.
	Delete(ctx context.Context, did string) error

	// GetMany возвращает существующие записи из списка did (порядок не гарантирован).
	GetMany(ctx context.Context, dids []string) ([]*model.Record, error)
	// ListVersions возвращает все записи семейства baseid, по created_date, затем did.
	ListVersions(ctx context.Context, baseid string) ([]*model.Record, error)
	// ListVersionsByBaseIDs возвращает все записи перечисленных семейств.
	ListVersionsByBaseIDs(ctx context.Context, baseids []string) ([]*model.Record, error)
	// BaseIDsOf возвращает baseid для каждого найденного did (did → baseid).
	BaseIDsOf(ctx context.Context, dids []string) (map[string]string, error)
	// BaseIDExists проверяет наличие семейства.
	BaseIDExists(ctx context.Context, baseid string) (bool, error)

	// ListAliases возвращает алиасы записи в алфавитном порядке.
	ListAliases(ctx context.Context, did string) ([]string, error)
	// AddAliases привязывает алиасы к записи; ErrConflict, если имя уже занято.
	AddAliases(ctx context.Context, did string, names []string) error
	// DeleteAlias отвязывает один алиас; ErrNotFound, если он не принадлежит записи.
	DeleteAlias(ctx context.Context, did, name string) error
	// DeleteAllAliases отвязывает все алиасы записи.
	DeleteAllAliases(ctx context.Context, did string) error

	// List — фильтрованный постраничный список.
	List(ctx context.Context, q ListQuery) ([]*model.Record, error)
	// ListURLs возвращает пары (url, метаданные url) по записям, подходящим под фильтр.
	ListURLs(ctx context.Context, q URLListQuery) ([]URLEntry, error)
	// QueryURLs возвращает пары (did, url через запятую).
	QueryURLs(ctx context.Context, q URLsQuery) ([]DIDURLs, error)
	// QueryMetadataByKey возвращает (did, url, rev) по строкам метаданных URL.
	QueryMetadataByKey(ctx context.Context, q MetadataKeyQuery) ([]URLMetadataHit, error)
	// Stats возвращает количество записей и сумму размеров.
	Stats(ctx context.Context) (count, totalBytes int64, err error)
}

// RecordFilter — предикаты на поля записи. Пустые поля не фильтруют.
//
// Пустая строка во вложенных значениях означает «поле или ключ отсутствует»:
// Metadata{"k": ""} выбирает записи без ключа k, FileName="" — записи без file_name.
// Пустой (не nil) ACL или Authz означает «список пуст».
type RecordFilter struct {
	Size     *int64
	Hashes   map[string]string
	FileName *string
	Version  *string
	Uploader *string
	URLs     []string
	ACL      []string
	Authz    []string
	Metadata map[string]string
	// URLsMetadata — префикс URL → пары ключ/значение, которые должны быть у одного URL
	URLsMetadata map[string]map[string]string
}

// IsZero сообщает, что фильтр ничего не ограничивает.
func (f *RecordFilter) IsZero() bool {
	return f.Size == nil && len(f.Hashes) == 0 && f.FileName == nil && f.Version == nil &&
		f.Uploader == nil && len(f.URLs) == 0 && f.ACL == nil && f.Authz == nil &&
		len(f.Metadata) == 0 && len(f.URLsMetadata) == 0
}

// ListQuery — параметры List.
type ListQuery struct {
	Filter RecordFilter
	// Negate — предикаты, каждый из которых добавляется с отрицанием
	Negate RecordFilter
	// IDs — явный список did
	IDs []string
	// Start — курсор: did строго больше Start
	Start string
	// Offset — смещение (постраничный режим)
	Offset int
	Limit  int
	// OrderByUpdated — сортировка по updated_date вместо did
	OrderByUpdated bool
}

// URLListQuery — параметры ListURLs.
type URLListQuery struct {
	Size   *int64
	Hashes map[string]string
	IDs    []string
	Offset int
	Limit  int
}

// URLEntry — URL и его метаданные.
type URLEntry struct {
	URL      string
	Metadata map[string]string
}

// URLsQuery — параметры QueryURLs. Include/Exclude — подстроки склеенного списка URL.
type URLsQuery struct {
	Include   string
	Exclude   string
	Versioned *bool
	Offset    int
	Limit     int
}

// DIDURLs — did и его URL через запятую.
type DIDURLs struct {
	DID  string
	URLs string
}

// MetadataKeyQuery — параметры QueryMetadataByKey. URL — подстрока.
type MetadataKeyQuery struct {
	Key       string
	Value     string
	URL       string
	Versioned *bool
	Offset    int
	Limit     int
}

// URLMetadataHit — строка метаданных URL, совпавшая с запросом.
type URLMetadataHit struct {
	DID string
	URL string
	Rev string
}
