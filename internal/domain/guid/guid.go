// Пакет guid — выпуск идентификаторов записей и токенов ревизии.
package guid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxMintCount — верхняя граница количества идентификаторов за один запрос.
const MaxMintCount = 10000

// RevLength — длина токена ревизии.
const RevLength = 8

// uuidPattern — канонический UUID v4 в нижнем регистре.
const uuidPattern = `[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}`

var (
	// didRe — did: опциональный префикс (любой текст) и канонический UUID в конце.
	didRe = regexp.MustCompile(`^.*` + uuidPattern + `$`)
	revRe = regexp.MustCompile(`^[0-9a-f]{8}$`)
)

// DIDPattern возвращает регулярное выражение допустимого did (для JSON-схемы).
func DIDPattern() string {
	return didRe.String()
}

// ClampCount приводит количество к диапазону [0, MaxMintCount].
func ClampCount(count int) int {
	if count < 0 {
		return 0
	}
	if count > MaxMintCount {
		return MaxMintCount
	}
	return count
}

// MintGUIDs выпускает count новых UUID v4; prefix добавляется к каждому, если не пуст.
// Выпуск не резервирует идентификаторы в хранилище.
func MintGUIDs(count int, prefix string) []string {
	count = ClampCount(count)
	out := make([]string, count)
	for i := range out {
		out[i] = prefix + uuid.NewString()
	}
	return out
}

// MintRev возвращает новый 8-символьный hex-токен ревизии.
func MintRev() string {
	return uuid.NewString()[:RevLength]
}

// ValidRev проверяет формат токена ревизии.
func ValidRev(rev string) bool {
	return revRe.MatchString(rev)
}

// ValidateDID проверяет переданный клиентом did.
func ValidateDID(did string) error {
	if !didRe.MatchString(did) {
		return fmt.Errorf("did %q не соответствует формату UUID v4 с опциональным префиксом", did)
	}
	return nil
}

// Alternate возвращает did с добавленным или снятым префиксом.
// Если префикс пуст — вторая форма отсутствует (ok=false).
func Alternate(did, prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	if strings.HasPrefix(did, prefix) {
		return strings.TrimPrefix(did, prefix), true
	}
	return prefix + did, true
}

// StripPrefix снимает префикс с did, если он есть.
func StripPrefix(did, prefix string) string {
	if prefix == "" {
		return did
	}
	return strings.TrimPrefix(did, prefix)
}
