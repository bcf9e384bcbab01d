// Пакет projection — преобразование записей индекса в форматы GA4GH DRS и DOS.
// Чистые функции без ввода-вывода.
package projection

import (
	"maps"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
)

// timeLayout — формат времени в DRS/DOS-документах (ISO 8601, UTC).
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Checksum — дайджест в DRS/DOS.
type Checksum struct {
	Checksum string `json:"checksum"`
	Type     string `json:"type"`
}

// AccessURL — адрес доступа к данным.
type AccessURL struct {
	URL string `json:"url"`
}

// AccessMethod — способ доступа DRS (по одному на URL записи).
type AccessMethod struct {
	Type      string    `json:"type"`
	AccessURL AccessURL `json:"access_url"`
	AccessID  string    `json:"access_id"`
	Region    string    `json:"region"`
}

// DRSObject — объект DRS v1.
type DRSObject struct {
	ID            string         `json:"id"`
	Name          *string        `json:"name"`
	SelfURI       string         `json:"self_uri"`
	Size          *int64         `json:"size"`
	CreatedTime   string         `json:"created_time"`
	UpdatedTime   string         `json:"updated_time"`
	Version       *string        `json:"version"`
	MimeType      string         `json:"mime_type"`
	Checksums     []Checksum     `json:"checksums"`
	AccessMethods []AccessMethod `json:"access_methods"`
	Description   *string        `json:"description"`
	Aliases       []string       `json:"aliases"`
	Form          model.Form     `json:"form"`
}

// DRSList — страница DRS-объектов.
type DRSList struct {
	DRSObjects []DRSObject `json:"drs_objects"`
}

// formatTime форматирует время в UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// checksums возвращает дайджесты в порядке имён алгоритмов.
func checksums(hashes map[string]string) []Checksum {
	out := make([]Checksum, 0, len(hashes))
	for _, algo := range model.SortedKeys(hashes) {
		out = append(out, Checksum{Checksum: hashes[algo], Type: algo})
	}
	return out
}

// urlScheme возвращает схему URL (s3, gs, https...); пусто, если её нет.
func urlScheme(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		scheme, _, ok := strings.Cut(raw, "://")
		if !ok {
			return ""
		}
		return scheme
	}
	return u.Scheme
}

// SelfURI возвращает drs://<prefix>:<accession> для did с префиксом
// или drs://<did>, если префикс не задан или did его не содержит.
func SelfURI(did, prefix string) string {
	name := strings.TrimRight(prefix, "/:")
	if name == "" || !strings.HasPrefix(did, prefix) {
		return "drs://" + did
	}
	return "drs://" + name + ":" + strings.TrimPrefix(did, prefix)
}

// ToDRS преобразует запись в объект DRS.
func ToDRS(rec *model.Record, prefix string) DRSObject {
	methods := make([]AccessMethod, 0, len(rec.URLs))
	for _, u := range rec.URLs {
		scheme := urlScheme(u)
		methods = append(methods, AccessMethod{
			Type:      scheme,
			AccessURL: AccessURL{URL: u},
			AccessID:  scheme,
		})
	}
	aliases := append([]string{}, rec.Aliases...)
	sort.Strings(aliases)

	return DRSObject{
		ID:            rec.DID,
		Name:          rec.FileName,
		SelfURI:       SelfURI(rec.DID, prefix),
		Size:          rec.Size,
		CreatedTime:   formatTime(rec.CreatedDate),
		UpdatedTime:   formatTime(rec.UpdatedDate),
		Version:       rec.Version,
		MimeType:      "application/json",
		Checksums:     checksums(rec.Hashes),
		AccessMethods: methods,
		Description:   rec.Description,
		Aliases:       aliases,
		Form:          rec.Form,
	}
}

// ToDRSList преобразует страницу записей.
func ToDRSList(recs []*model.Record, prefix string) DRSList {
	out := DRSList{DRSObjects: make([]DRSObject, 0, len(recs))}
	for _, rec := range recs {
		out.DRSObjects = append(out.DRSObjects, ToDRS(rec, prefix))
	}
	return out
}

// ServiceInfo возвращает GA4GH service-info с применёнными переопределениями.
// Переопределения заменяют ключи верхнего уровня.
func ServiceInfo(version string, overrides map[string]any) map[string]any {
	info := map[string]any{
		"id":          "io.goartstore.index-module",
		"name":        "Index Module DRS",
		"description": "Реестр идентификаторов данных",
		"type": map[string]any{
			"group":    "org.ga4gh",
			"artifact": "drs",
			"version":  "1.0.3",
		},
		"version": version,
		"organization": map[string]any{
			"name": "goartstore",
			"url":  "https://github.com/bigkaa/goartstore",
		},
	}
	maps.Copy(info, overrides)
	return info
}
