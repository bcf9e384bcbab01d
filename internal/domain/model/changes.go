package model

import (
	"fmt"
	"time"
)

// Patch — изменение одного поля: Set=false означает «поле не передано».
// Позволяет отличить отсутствие поля от явного null.
type Patch[T any] struct {
	Set   bool
	Value T
}

// Some создаёт установленный Patch.
func Some[T any](v T) Patch[T] {
	return Patch[T]{Set: true, Value: v}
}

// RecordChanges — набор редактируемых полей для update.
// did, baseid, created_date, form и hashes не редактируются.
type RecordChanges struct {
	FileName           Patch[*string]
	Version            Patch[*string]
	Uploader           Patch[*string]
	Description        Patch[*string]
	Metadata           Patch[map[string]string]
	ACL                Patch[[]string]
	Authz              Patch[[]string]
	URLs               Patch[[]string]
	URLsMetadata       Patch[map[string]map[string]string]
	ContentCreatedDate Patch[*time.Time]
	ContentUpdatedDate Patch[*time.Time]
	Size               Patch[*int64]
}

// IsEmpty сообщает, что ни одно поле не передано.
func (c *RecordChanges) IsEmpty() bool {
	return !c.FileName.Set && !c.Version.Set && !c.Uploader.Set && !c.Description.Set &&
		!c.Metadata.Set && !c.ACL.Set && !c.Authz.Set && !c.URLs.Set && !c.URLsMetadata.Set &&
		!c.ContentCreatedDate.Set && !c.ContentUpdatedDate.Set && !c.Size.Set
}

// Apply применяет изменения к копии записи и возвращает её.
// urls применяются раньше urls_metadata: urls_metadata для удалённых URL отбрасываются,
// переданные urls_metadata проверяются по новому набору URL.
func (c *RecordChanges) Apply(rec *Record) (*Record, error) {
	out := rec.Clone()

	if c.FileName.Set {
		out.FileName = c.FileName.Value
	}
	if c.Version.Set {
		out.Version = c.Version.Value
	}
	if c.Uploader.Set {
		out.Uploader = c.Uploader.Value
	}
	if c.Description.Set {
		out.Description = c.Description.Value
	}
	if c.Metadata.Set {
		out.Metadata = c.Metadata.Value
	}
	if c.ACL.Set {
		out.ACL = c.ACL.Value
	}
	if c.Authz.Set {
		out.Authz = c.Authz.Value
	}
	if c.ContentCreatedDate.Set {
		out.ContentCreatedDate = c.ContentCreatedDate.Value
	}
	if c.ContentUpdatedDate.Set {
		out.ContentUpdatedDate = c.ContentUpdatedDate.Value
	}
	if c.Size.Set {
		if c.Size.Value != nil && *c.Size.Value < 0 {
			return nil, fmt.Errorf("размер не может быть отрицательным: %d", *c.Size.Value)
		}
		out.Size = c.Size.Value
	}

	if c.URLs.Set {
		out.URLs = c.URLs.Value
		kept := make(map[string]map[string]string, len(out.URLs))
		for _, u := range out.URLs {
			if m, ok := out.URLsMetadata[u]; ok {
				kept[u] = m
			}
		}
		out.URLsMetadata = kept
	}
	if c.URLsMetadata.Set {
		if err := ValidateURLs(out.URLs, c.URLsMetadata.Value); err != nil {
			return nil, err
		}
		out.URLsMetadata = c.URLsMetadata.Value
	}

	out.Normalize()
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Clone возвращает глубокую копию записи.
func (r *Record) Clone() *Record {
	out := *r
	out.Hashes = cloneMap(r.Hashes)
	out.Metadata = cloneMap(r.Metadata)
	out.URLs = append([]string(nil), r.URLs...)
	out.ACL = append([]string(nil), r.ACL...)
	out.Authz = append([]string(nil), r.Authz...)
	out.Aliases = append([]string(nil), r.Aliases...)
	if r.URLsMetadata != nil {
		out.URLsMetadata = make(map[string]map[string]string, len(r.URLsMetadata))
		for u, m := range r.URLsMetadata {
			out.URLsMetadata[u] = cloneMap(m)
		}
	}
	return &out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
