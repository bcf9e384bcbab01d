// Пакет model — доменные типы Index Module.
package model

import (
	"fmt"
	"sort"
	"time"
)

// Form — форма записи.
type Form string

const (
	FormObject    Form = "object"
	FormContainer Form = "container"
	FormMultipart Form = "multipart"
)

// Valid проверяет, что форма входит в допустимый набор.
func (f Form) Valid() bool {
	switch f {
	case FormObject, FormContainer, FormMultipart:
		return true
	}
	return false
}

// MetadataProjectID — ключ metadata, дублируемый в отдельную колонку project_id.
const MetadataProjectID = "project_id"

// MetadataDeleted — ключ metadata, которым помечаются логически удалённые версии.
const MetadataDeleted = "deleted"

// Record — запись индекса: неизменяемый did и проверяемый дескриптор данных.
type Record struct {
	// DID — глобально уникальный идентификатор, никогда не переназначается
	DID string
	// BaseID — идентификатор семейства версий
	BaseID string
	// Rev — 8-символьный токен ревизии, меняется при каждой мутации
	Rev string
	// Form — object, container или multipart
	Form Form
	// Size — размер в байтах (nil для blank-записи)
	Size *int64

	FileName    *string
	Version     *string
	Uploader    *string
	Description *string

	// CreatedDate — время создания записи (неизменно)
	CreatedDate time.Time
	// UpdatedDate — время последней мутации
	UpdatedDate time.Time
	// ContentCreatedDate, ContentUpdatedDate — времена создания/изменения содержимого
	ContentCreatedDate *time.Time
	ContentUpdatedDate *time.Time

	// Hashes — алгоритм → hex-дайджест
	Hashes map[string]string
	// URLs — URL хранилищ (без дубликатов)
	URLs []string
	// URLsMetadata — url → (ключ → значение); ключи ⊆ URLs
	URLsMetadata map[string]map[string]string
	// Metadata — произвольные метаданные
	Metadata map[string]string
	// ACL — устаревший список ACE
	ACL []string
	// Authz — пути ресурсов для policy engine
	Authz []string
	// Aliases — алиасы записи (глобально уникальны)
	Aliases []string
}

// IsBlank сообщает, является ли запись blank-резервацией (без хэшей и размера).
func (r *Record) IsBlank() bool {
	return r.Size == nil && len(r.Hashes) == 0
}

// ProjectID возвращает значение metadata.project_id (или nil).
func (r *Record) ProjectID() *string {
	if v, ok := r.Metadata[MetadataProjectID]; ok {
		return &v
	}
	return nil
}

// IsDeleted сообщает, помечена ли запись как удалённая через metadata.
func (r *Record) IsDeleted() bool {
	return r.Metadata[MetadataDeleted] == "true"
}

// Normalize приводит коллекции к каноническому виду:
// nil-коллекции заменяются пустыми, у каждого URL есть запись в URLsMetadata.
func (r *Record) Normalize() {
	if r.Hashes == nil {
		r.Hashes = map[string]string{}
	}
	if r.URLs == nil {
		r.URLs = []string{}
	}
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
	if r.ACL == nil {
		r.ACL = []string{}
	}
	if r.Authz == nil {
		r.Authz = []string{}
	}
	if r.Aliases == nil {
		r.Aliases = []string{}
	}
	meta := make(map[string]map[string]string, len(r.URLs))
	for _, u := range r.URLs {
		m := r.URLsMetadata[u]
		if m == nil {
			m = map[string]string{}
		}
		meta[u] = m
	}
	r.URLsMetadata = meta
}

// Validate проверяет инварианты записи в покое.
// Для blank-записи хэши не требуются, для остальных — минимум один хэш.
func (r *Record) Validate() error {
	if !r.Form.Valid() {
		return fmt.Errorf("недопустимая форма %q: допустимые object, container, multipart", r.Form)
	}
	if r.Size != nil && *r.Size < 0 {
		return fmt.Errorf("размер не может быть отрицательным: %d", *r.Size)
	}
	if !r.IsBlank() {
		if err := ValidateHashes(r.Hashes, true); err != nil {
			return err
		}
	}
	if err := ValidateURLs(r.URLs, r.URLsMetadata); err != nil {
		return err
	}
	if err := ValidateContentDates(r.ContentCreatedDate, r.ContentUpdatedDate); err != nil {
		return err
	}
	if err := uniqueStrings("acl", r.ACL); err != nil {
		return err
	}
	return uniqueStrings("authz", r.Authz)
}

// ValidateURLs проверяет отсутствие дубликатов и то, что ключи urls_metadata ⊆ urls.
func ValidateURLs(urls []string, urlsMetadata map[string]map[string]string) error {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if u == "" {
			return fmt.Errorf("пустой URL недопустим")
		}
		if _, dup := set[u]; dup {
			return fmt.Errorf("дублирующийся URL %q", u)
		}
		set[u] = struct{}{}
	}
	for u := range urlsMetadata {
		if _, ok := set[u]; !ok {
			return fmt.Errorf("urls_metadata содержит URL %q, отсутствующий в urls", u)
		}
	}
	return nil
}

// ValidateContentDates проверяет content_updated_date ≥ content_created_date.
func ValidateContentDates(created, updated *time.Time) error {
	if updated == nil {
		return nil
	}
	if created == nil {
		return fmt.Errorf("content_updated_date требует content_created_date")
	}
	if updated.Before(*created) {
		return fmt.Errorf("content_updated_date не может быть раньше content_created_date")
	}
	return nil
}

func uniqueStrings(field string, values []string) error {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			return fmt.Errorf("%s: дублирующееся значение %q", field, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// UnionAuthz объединяет списки ресурсов без дубликатов, сохраняя порядок появления.
func UnionAuthz(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, l := range lists {
		for _, r := range l {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// SortedKeys возвращает отсортированные ключи карты (детерминированный порядок вставки в БД).
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Now возвращает текущее время UTC с микросекундной точностью (точность timestamp в PostgreSQL).
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
