package projection

import (
	"sort"

	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
)

// DOSURL — URL объекта DOS с метаданными.
type DOSURL struct {
	URL            string            `json:"url"`
	SystemMetadata map[string]string `json:"system_metadata"`
	UserMetadata   map[string]string `json:"user_metadata"`
}

// DOSObject — объект DOS v1.
type DOSObject struct {
	ID          string     `json:"id"`
	Name        *string    `json:"name"`
	Size        *int64     `json:"size"`
	Created     string     `json:"created"`
	Updated     string     `json:"updated"`
	Version     *string    `json:"version"`
	MimeType    string     `json:"mime_type"`
	Checksums   []Checksum `json:"checksums"`
	URLs        []DOSURL   `json:"urls"`
	Description *string    `json:"description"`
	Aliases     []string   `json:"aliases"`
}

// DOSResponse — ответ GET /ga4gh/dos/v1/dataobjects/{id}.
type DOSResponse struct {
	DataObject DOSObject `json:"data_object"`
}

// DOSList — ответ GET /ga4gh/dos/v1/dataobjects.
type DOSList struct {
	DataObjects []DOSObject `json:"data_objects"`
}

// ToDOS преобразует запись в объект DOS.
// system_metadata — метаданные URL, user_metadata — метаданные записи.
func ToDOS(rec *model.Record) DOSObject {
	urls := make([]DOSURL, 0, len(rec.URLs))
	for _, u := range rec.URLs {
		sys := rec.URLsMetadata[u]
		if sys == nil {
			sys = map[string]string{}
		}
		user := rec.Metadata
		if user == nil {
			user = map[string]string{}
		}
		urls = append(urls, DOSURL{URL: u, SystemMetadata: sys, UserMetadata: user})
	}
	aliases := append([]string{}, rec.Aliases...)
	sort.Strings(aliases)

	return DOSObject{
		ID:          rec.DID,
		Name:        rec.FileName,
		Size:        rec.Size,
		Created:     formatTime(rec.CreatedDate),
		Updated:     formatTime(rec.UpdatedDate),
		Version:     rec.Version,
		MimeType:    "application/json",
		Checksums:   checksums(rec.Hashes),
		URLs:        urls,
		Description: rec.Description,
		Aliases:     aliases,
	}
}

// ToDOSList преобразует страницу записей.
func ToDOSList(recs []*model.Record) DOSList {
	out := DOSList{DataObjects: make([]DOSObject, 0, len(recs))}
	for _, rec := range recs {
		out.DataObjects = append(out.DataObjects, ToDOS(rec))
	}
	return out
}
