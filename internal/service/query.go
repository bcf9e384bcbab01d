// query.go — движок запросов: фильтрованный список, URL по хэшам, поиск по метаданным URL.
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/bigkaa/goartstore/index-module/internal/domain/guid"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

// Границы размера страницы.
const (
	DefaultLimit = 100
	MaxLimit     = 1024
)

// ListParams — параметры List.
type ListParams struct {
	Filter repository.RecordFilter
	Negate repository.RecordFilter
	IDs    []string
	// Start — курсор по did (строго больше)
	Start string
	// Page — номер страницы; при наличии сортировка по updated_date
	Page  *int
	Limit int
}

// URLListParams — параметры GetURLs. Start — смещение.
type URLListParams struct {
	Size   *int64
	Hashes map[string]string
	IDs    []string
	Start  int
	Limit  int
}

// checkLimit проверяет размер страницы. limit = 0 допустим и означает пустой результат.
func checkLimit(limit int) error {
	if limit < 0 || limit > MaxLimit {
		return validationf("limit должен быть в диапазоне [0, %d], получено %d", MaxLimit, limit)
	}
	return nil
}

// checkFilterHashes проверяет непустые дайджесты фильтра.
func checkFilterHashes(hashes map[string]string) error {
	for algo, digest := range hashes {
		if digest == "" {
			if _, ok := model.HashPattern(algo); !ok {
				return validationf("неизвестный тип хэша %q", algo)
			}
			continue
		}
		if err := model.ValidateHash(algo, digest); err != nil {
			return invalid(err)
		}
	}
	return nil
}

// List возвращает записи, подходящие под фильтр и отрицания.
func (s *IndexService) List(ctx context.Context, p ListParams) ([]*model.Record, error) {
	if err := checkLimit(p.Limit); err != nil {
		return nil, err
	}
	if len(p.IDs) > 0 && (p.Start != "" || p.Page != nil) {
		return nil, validationf("ids несовместим со start и page")
	}
	if p.Start != "" && p.Page != nil {
		return nil, validationf("start и page взаимоисключающие")
	}
	if p.Page != nil && *p.Page < 0 {
		return nil, validationf("page не может быть отрицательным: %d", *p.Page)
	}
	if err := checkFilterHashes(p.Filter.Hashes); err != nil {
		return nil, err
	}
	if err := checkFilterHashes(p.Negate.Hashes); err != nil {
		return nil, err
	}
	if p.Limit == 0 {
		return []*model.Record{}, nil
	}

	q := repository.ListQuery{
		Filter: p.Filter,
		Negate: p.Negate,
		IDs:    p.IDs,
		Start:  p.Start,
		Limit:  p.Limit,
	}
	if p.Page != nil {
		q.Offset = p.Limit * *p.Page
		q.OrderByUpdated = true
	}

	var recs []*model.Record
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		var err error
		recs, err = repo.List(ctx, q)
		if err != nil || len(p.IDs) == 0 || s.prefix.DefaultPrefix == "" {
			return err
		}

		// Для did, не найденных как есть, повторяем с добавленным или снятым префиксом
		found := make(map[string]struct{}, len(recs))
		for _, r := range recs {
			found[r.DID] = struct{}{}
		}
		var alts []string
		for _, id := range p.IDs {
			if _, ok := found[id]; ok {
				continue
			}
			if alt, ok := guid.Alternate(id, s.prefix.DefaultPrefix); ok {
				if _, dup := found[alt]; !dup {
					alts = append(alts, alt)
				}
			}
		}
		if len(alts) == 0 {
			return nil
		}
		q.IDs = alts
		more, err := repo.List(ctx, q)
		if err != nil {
			return err
		}
		recs = append(recs, more...)
		sort.Slice(recs, func(i, j int) bool { return recs[i].DID < recs[j].DID })
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("получение списка записей: %w", err)
	}
	if recs == nil {
		recs = []*model.Record{}
	}
	return recs, nil
}

// GetURLs возвращает различные пары (url, метаданные url) по подходящим записям.
// Требуется хотя бы один из size, hashes, ids.
func (s *IndexService) GetURLs(ctx context.Context, p URLListParams) ([]repository.URLEntry, error) {
	if p.Size == nil && len(p.Hashes) == 0 && len(p.IDs) == 0 {
		return nil, validationf("требуется хотя бы один из параметров size, hash, ids")
	}
	if err := checkLimit(p.Limit); err != nil {
		return nil, err
	}
	if p.Start < 0 {
		return nil, validationf("start не может быть отрицательным: %d", p.Start)
	}
	if err := checkFilterHashes(p.Hashes); err != nil {
		return nil, err
	}
	if p.Limit == 0 {
		return []repository.URLEntry{}, nil
	}

	var entries []repository.URLEntry
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		var err error
		entries, err = repo.ListURLs(ctx, repository.URLListQuery{
			Size:   p.Size,
			Hashes: p.Hashes,
			IDs:    p.IDs,
			Offset: p.Start,
			Limit:  p.Limit,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("получение URL: %w", err)
	}
	if entries == nil {
		entries = []repository.URLEntry{}
	}
	return entries, nil
}

// HashesToURLs возвращает различные URL записей с точным размером и всеми перечисленными хэшами.
func (s *IndexService) HashesToURLs(ctx context.Context, size *int64, hashes map[string]string, start, limit int) ([]string, error) {
	if size == nil || len(hashes) == 0 {
		return nil, validationf("требуются size и хотя бы один хэш")
	}
	entries, err := s.GetURLs(ctx, URLListParams{Size: size, Hashes: hashes, Start: start, Limit: limit})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(entries))
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.URL]; ok {
			continue
		}
		seen[e.URL] = struct{}{}
		urls = append(urls, e.URL)
	}
	return urls, nil
}

// QueryURLs возвращает пары (did, склеенные URL) по подстрокам include/exclude.
func (s *IndexService) QueryURLs(ctx context.Context, q repository.URLsQuery) ([]repository.DIDURLs, error) {
	if err := checkLimit(q.Limit); err != nil {
		return nil, err
	}
	if q.Offset < 0 {
		return nil, validationf("offset не может быть отрицательным: %d", q.Offset)
	}
	if q.Limit == 0 {
		return []repository.DIDURLs{}, nil
	}

	var out []repository.DIDURLs
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		var err error
		out, err = repo.QueryURLs(ctx, q)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("поиск URL: %w", err)
	}
	if out == nil {
		out = []repository.DIDURLs{}
	}
	return out, nil
}

// QueryMetadataByKey возвращает (did, url, rev) по ключу и значению метаданных URL.
func (s *IndexService) QueryMetadataByKey(ctx context.Context, q repository.MetadataKeyQuery) ([]repository.URLMetadataHit, error) {
	if q.Key == "" {
		return nil, validationf("key обязателен")
	}
	if err := checkLimit(q.Limit); err != nil {
		return nil, err
	}
	if q.Offset < 0 {
		return nil, validationf("offset не может быть отрицательным: %d", q.Offset)
	}
	if q.Limit == 0 {
		return []repository.URLMetadataHit{}, nil
	}

	var out []repository.URLMetadataHit
	err := s.store.Session(ctx, func(repo repository.IndexRepository) error {
		var err error
		out, err = repo.QueryMetadataByKey(ctx, q)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("поиск по метаданным URL: %w", err)
	}
	if out == nil {
		out = []repository.URLMetadataHit{}
	}
	return out, nil
}
