package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

// --- Mock Authorizer ---

type authzCall struct {
	method    string
	resources []string
}

// mockAuthorizer — мок Authorizer; по умолчанию разрешает всё и запоминает вызовы.
type mockAuthorizer struct {
	mu             sync.Mutex
	calls          []authzCall
	authorizeFn    func(ctx context.Context, method string, resources []string) error
	requireBasicFn func(ctx context.Context) error
}

func (m *mockAuthorizer) Authorize(ctx context.Context, method string, resources []string) error {
	m.mu.Lock()
	m.calls = append(m.calls, authzCall{method: method, resources: append([]string(nil), resources...)})
	m.mu.Unlock()
	if m.authorizeFn != nil {
		return m.authorizeFn(ctx, method, resources)
	}
	return nil
}

func (m *mockAuthorizer) RequireBasic(ctx context.Context) error {
	if m.requireBasicFn != nil {
		return m.requireBasicFn(ctx)
	}
	return nil
}

func (m *mockAuthorizer) lastCall() authzCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return authzCall{}
	}
	return m.calls[len(m.calls)-1]
}

// --- In-memory IndexStore ---

// memState — состояние in-memory индекса.
type memState struct {
	records map[string]*model.Record
	aliases map[string]string // имя → did
	bases   map[string]struct{}
}

func (s *memState) clone() *memState {
	out := &memState{
		records: make(map[string]*model.Record, len(s.records)),
		aliases: make(map[string]string, len(s.aliases)),
		bases:   make(map[string]struct{}, len(s.bases)),
	}
	for k, v := range s.records {
		out.records[k] = v.Clone()
	}
	for k, v := range s.aliases {
		out.aliases[k] = v
	}
	for k := range s.bases {
		out.bases[k] = struct{}{}
	}
	return out
}

// memStore — IndexStore поверх памяти. Session сериализует транзакции и
// применяет изменения только при успешном завершении fn.
type memStore struct {
	mu     sync.Mutex
	layout string
	state  *memState
}

func newMemStore(layout string) *memStore {
	return &memStore{
		layout: layout,
		state: &memState{
			records: map[string]*model.Record{},
			aliases: map[string]string{},
			bases:   map[string]struct{}{},
		},
	}
}

func (s *memStore) Layout() string { return s.layout }

func (s *memStore) Session(ctx context.Context, fn func(repo repository.IndexRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(&memRepo{layout: s.layout, st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// memRepo — IndexRepository над memState.
type memRepo struct {
	layout string
	st     *memState
}

func (r *memRepo) Layout() string { return r.layout }

func (r *memRepo) withAliases(rec *model.Record) *model.Record {
	out := rec.Clone()
	out.Aliases = []string{}
	for name, did := range r.st.aliases {
		if did == rec.DID {
			out.Aliases = append(out.Aliases, name)
		}
	}
	sort.Strings(out.Aliases)
	out.Normalize()
	return out
}

func (r *memRepo) Insert(ctx context.Context, rec *model.Record) error {
	if _, ok := r.st.records[rec.DID]; ok {
		return repository.ErrConflict
	}
	stored := rec.Clone()
	stored.Aliases = nil
	r.st.records[rec.DID] = stored
	r.st.bases[rec.BaseID] = struct{}{}
	return r.AddAliases(ctx, rec.DID, rec.Aliases)
}

func (r *memRepo) Get(_ context.Context, did string, _ bool) (*model.Record, error) {
	rec, ok := r.st.records[did]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withAliases(rec), nil
}

func (r *memRepo) Save(_ context.Context, rec *model.Record) error {
	if _, ok := r.st.records[rec.DID]; !ok {
		return repository.ErrNotFound
	}
	stored := rec.Clone()
	stored.Aliases = nil
	r.st.records[rec.DID] = stored
	return nil
}

func (r *memRepo) Touch(_ context.Context, did, rev string, updated time.Time) error {
	rec, ok := r.st.records[did]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Rev = rev
	rec.UpdatedDate = updated
	return nil
}

func (r *memRepo) Delete(ctx context.Context, did string) error {
	if _, ok := r.st.records[did]; !ok {
		return repository.ErrNotFound
	}
	_ = r.DeleteAllAliases(ctx, did)
	delete(r.st.records, did)
	return nil
}

func (r *memRepo) GetMany(_ context.Context, dids []string) ([]*model.Record, error) {
	var out []*model.Record
	for _, did := range dids {
		if rec, ok := r.st.records[did]; ok {
			out = append(out, r.withAliases(rec))
		}
	}
	return out, nil
}

func (r *memRepo) ListVersions(_ context.Context, baseid string) ([]*model.Record, error) {
	var out []*model.Record
	for _, rec := range r.st.records {
		if rec.BaseID == baseid {
			out = append(out, r.withAliases(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedDate.Equal(out[j].CreatedDate) {
			return out[i].CreatedDate.Before(out[j].CreatedDate)
		}
		return out[i].DID < out[j].DID
	})
	return out, nil
}

func (r *memRepo) ListVersionsByBaseIDs(ctx context.Context, baseids []string) ([]*model.Record, error) {
	var out []*model.Record
	for _, b := range baseids {
		v, _ := r.ListVersions(ctx, b)
		out = append(out, v...)
	}
	return out, nil
}

func (r *memRepo) BaseIDsOf(_ context.Context, dids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, did := range dids {
		if rec, ok := r.st.records[did]; ok {
			out[did] = rec.BaseID
		}
	}
	return out, nil
}

func (r *memRepo) BaseIDExists(_ context.Context, baseid string) (bool, error) {
	_, ok := r.st.bases[baseid]
	return ok, nil
}

func (r *memRepo) ListAliases(_ context.Context, did string) ([]string, error) {
	var out []string
	for name, d := range r.st.aliases {
		if d == did {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *memRepo) AddAliases(_ context.Context, did string, names []string) error {
	for _, n := range names {
		if _, ok := r.st.aliases[n]; ok {
			return repository.ErrConflict
		}
		r.st.aliases[n] = did
	}
	return nil
}

func (r *memRepo) DeleteAlias(_ context.Context, did, name string) error {
	if r.st.aliases[name] != did {
		return repository.ErrNotFound
	}
	delete(r.st.aliases, name)
	return nil
}

func (r *memRepo) DeleteAllAliases(_ context.Context, did string) error {
	for name, d := range r.st.aliases {
		if d == did {
			delete(r.st.aliases, name)
		}
	}
	return nil
}

// List поддерживает IDs, Start и Limit; предикаты фильтра проверяются в repository.
func (r *memRepo) List(_ context.Context, q repository.ListQuery) ([]*model.Record, error) {
	ids := map[string]bool{}
	for _, id := range q.IDs {
		ids[id] = true
	}
	var out []*model.Record
	for did, rec := range r.st.records {
		if len(ids) > 0 && !ids[did] {
			continue
		}
		if q.Start != "" && did <= q.Start {
			continue
		}
		out = append(out, r.withAliases(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DID < out[j].DID })
	if q.Offset < len(out) {
		out = out[q.Offset:]
	} else {
		out = nil
	}
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *memRepo) ListURLs(_ context.Context, q repository.URLListQuery) ([]repository.URLEntry, error) {
	var out []repository.URLEntry
	for _, did := range sortedDIDs(r.st.records) {
		rec := r.st.records[did]
		if q.Size != nil && (rec.Size == nil || *rec.Size != *q.Size) {
			continue
		}
		match := true
		for algo, digest := range q.Hashes {
			if rec.Hashes[algo] != digest {
				match = false
			}
		}
		if !match {
			continue
		}
		for _, u := range rec.URLs {
			out = append(out, repository.URLEntry{URL: u, Metadata: rec.URLsMetadata[u]})
		}
	}
	return out, nil
}

func (r *memRepo) QueryURLs(_ context.Context, q repository.URLsQuery) ([]repository.DIDURLs, error) {
	var out []repository.DIDURLs
	for _, did := range sortedDIDs(r.st.records) {
		urls := append([]string(nil), r.st.records[did].URLs...)
		sort.Strings(urls)
		joined := strings.Join(urls, ",")
		if q.Include != "" && !strings.Contains(joined, q.Include) {
			continue
		}
		out = append(out, repository.DIDURLs{DID: did, URLs: joined})
	}
	return out, nil
}

func (r *memRepo) QueryMetadataByKey(_ context.Context, q repository.MetadataKeyQuery) ([]repository.URLMetadataHit, error) {
	var out []repository.URLMetadataHit
	for _, did := range sortedDIDs(r.st.records) {
		rec := r.st.records[did]
		for u, m := range rec.URLsMetadata {
			if m[q.Key] == q.Value {
				out = append(out, repository.URLMetadataHit{DID: did, URL: u, Rev: rec.Rev})
			}
		}
	}
	return out, nil
}

func (r *memRepo) Stats(context.Context) (int64, int64, error) {
	var count, total int64
	for _, rec := range r.st.records {
		count++
		if rec.Size != nil {
			total += *rec.Size
		}
	}
	return count, total, nil
}

func sortedDIDs(m map[string]*model.Record) []string {
	return model.SortedKeys(m)
}
