// Пакет schema — JSON-схемы тел запросов (kin-openapi).
// Тело сначала проверяется схемой, затем декодируется в структуру запроса.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/bigkaa/goartstore/index-module/internal/domain/guid"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/service"
)

// Схемы тел запросов.
var (
	// CreateRecord — POST /index/ и POST /index/{did}
	CreateRecord = createRecordSchema(true)
	// CreateVersion — POST /index/{did}: form может быть опущена
	CreateVersion = createRecordSchema(false)
	// UpdateRecord — PUT /index/{did}
	UpdateRecord = updateRecordSchema()
	// BlankCreate — POST /index/blank/ и POST /index/blank/{did}
	BlankCreate = blankCreateSchema()
	// BlankUpdate — PUT /index/blank/{did}
	BlankUpdate = blankUpdateSchema()
	// RecordAliases — POST/PUT /index/{did}/aliases
	RecordAliases = recordAliasesSchema()
	// GlobalAlias — PUT /alias/{name}
	GlobalAlias = globalAliasSchema()
	// BulkIDs — POST /bulk/documents (список did)
	BulkIDs = openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
)

func nullableString() *openapi3.Schema {
	return openapi3.NewStringSchema().WithNullable()
}

func stringList() *openapi3.Schema {
	return openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
}

func stringMap() *openapi3.Schema {
	return openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewStringSchema())
}

func closed(s *openapi3.Schema) *openapi3.Schema {
	s.AdditionalProperties = openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)}
	return s
}

// hashesSchema — алгоритм → дайджест; неизвестные алгоритмы отклоняются.
func hashesSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	for _, algo := range model.HashTypes() {
		pattern, _ := model.HashPattern(algo)
		s.WithProperty(algo, openapi3.NewStringSchema().WithPattern(pattern))
	}
	return closed(s)
}

func urlsMetadataSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().WithAdditionalProperties(stringMap())
}

// recordFields — поля дескриптора, общие для создания и версии.
func recordFields(s *openapi3.Schema) *openapi3.Schema {
	return s.
		WithProperty("did", openapi3.NewStringSchema().WithPattern(guid.DIDPattern())).
		WithProperty("baseid", openapi3.NewStringSchema()).
		WithProperty("form", openapi3.NewStringSchema().WithEnum(
			string(model.FormObject), string(model.FormContainer), string(model.FormMultipart))).
		WithProperty("size", openapi3.NewInt64Schema().WithMin(0)).
		WithProperty("urls", stringList()).
		WithProperty("hashes", hashesSchema()).
		WithProperty("file_name", nullableString()).
		WithProperty("version", nullableString()).
		WithProperty("uploader", nullableString()).
		WithProperty("description", nullableString()).
		WithProperty("metadata", stringMap()).
		WithProperty("urls_metadata", urlsMetadataSchema()).
		WithProperty("acl", stringList()).
		WithProperty("authz", stringList()).
		WithProperty("content_created_date", nullableString()).
		WithProperty("content_updated_date", nullableString())
}

func createRecordSchema(formRequired bool) *openapi3.Schema {
	required := []string{"size", "urls", "hashes"}
	if formRequired {
		required = append([]string{"form"}, required...)
	}
	return recordFields(openapi3.NewObjectSchema()).WithRequired(required)
}

func updateRecordSchema() *openapi3.Schema {
	return closed(openapi3.NewObjectSchema().
		WithProperty("file_name", nullableString()).
		WithProperty("version", nullableString()).
		WithProperty("uploader", nullableString()).
		WithProperty("description", nullableString()).
		WithProperty("metadata", stringMap()).
		WithProperty("acl", stringList()).
		WithProperty("authz", stringList()).
		WithProperty("urls", stringList()).
		WithProperty("urls_metadata", urlsMetadataSchema()).
		WithProperty("content_created_date", nullableString()).
		WithProperty("content_updated_date", nullableString()).
		WithProperty("size", openapi3.NewInt64Schema().WithMin(0).WithNullable()))
}

func blankCreateSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("uploader", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("file_name", nullableString()).
		WithRequired([]string{"uploader"})
}

func blankUpdateSchema() *openapi3.Schema {
	return closed(openapi3.NewObjectSchema().
		WithProperty("size", openapi3.NewInt64Schema().WithMin(0)).
		WithProperty("hashes", hashesSchema()).
		WithProperty("urls", stringList()).
		WithProperty("authz", stringList()).
		WithRequired([]string{"size", "hashes", "urls"}))
}

func recordAliasesSchema() *openapi3.Schema {
	item := closed(openapi3.NewObjectSchema().
		WithProperty("value", openapi3.NewStringSchema().WithMinLength(1)).
		WithRequired([]string{"value"}))
	return closed(openapi3.NewObjectSchema().
		WithProperty("aliases", openapi3.NewArraySchema().WithItems(item)).
		WithRequired([]string{"aliases"}))
}

func globalAliasSchema() *openapi3.Schema {
	return closed(openapi3.NewObjectSchema().
		WithProperty("size", openapi3.NewInt64Schema().WithMin(0)).
		WithProperty("hashes", hashesSchema()).
		WithProperty("release", openapi3.NewStringSchema().WithEnum(
			string(model.ReleasePublic), string(model.ReleasePrivate), string(model.ReleaseControlled))).
		WithProperty("metastring", openapi3.NewStringSchema()).
		WithProperty("host_authorities", stringList()).
		WithProperty("keeper_authority", openapi3.NewStringSchema()))
}

// Decode проверяет тело схемой и декодирует его в dst.
// Ошибки оборачивают service.ErrValidation.
func Decode(s *openapi3.Schema, body []byte, dst any) error {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("%w: некорректный JSON: %v", service.ErrValidation, err)
	}
	if err := s.VisitJSON(raw); err != nil {
		return fmt.Errorf("%w: %v", service.ErrValidation, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", service.ErrValidation, err)
	}
	return nil
}
