package model

import (
	"fmt"
	"regexp"
)

// Поддерживаемые алгоритмы хэширования.
const (
	HashMD5    = "md5"
	HashSHA1   = "sha1"
	HashSHA256 = "sha256"
	HashSHA512 = "sha512"
	HashCRC    = "crc"
	HashETag   = "etag"
)

// hashPatterns — допустимый вид дайджеста для каждого алгоритма (lowercase hex фиксированной длины).
// etag допускает суффикс многокомпонентной загрузки "-<n>".
var hashPatterns = map[string]*regexp.Regexp{
	HashMD5:    regexp.MustCompile(`^[0-9a-f]{32}$`),
	HashSHA1:   regexp.MustCompile(`^[0-9a-f]{40}$`),
	HashSHA256: regexp.MustCompile(`^[0-9a-f]{64}$`),
	HashSHA512: regexp.MustCompile(`^[0-9a-f]{128}$`),
	HashCRC:    regexp.MustCompile(`^[0-9a-f]{8}$`),
	HashETag:   regexp.MustCompile(`^[0-9a-f]{32}(-\d+)?$`),
}

// HashPattern возвращает регулярное выражение для алгоритма (используется JSON-схемой).
func HashPattern(algo string) (string, bool) {
	re, ok := hashPatterns[algo]
	if !ok {
		return "", false
	}
	return re.String(), true
}

// HashTypes возвращает список поддерживаемых алгоритмов в фиксированном порядке.
func HashTypes() []string {
	return []string{HashMD5, HashSHA1, HashSHA256, HashSHA512, HashCRC, HashETag}
}

// ValidateHash проверяет пару (алгоритм, дайджест).
func ValidateHash(algo, digest string) error {
	re, ok := hashPatterns[algo]
	if !ok {
		return fmt.Errorf("неподдерживаемый тип хэша %q", algo)
	}
	if !re.MatchString(digest) {
		return fmt.Errorf("некорректное значение хэша %s: %q", algo, digest)
	}
	return nil
}

// ValidateHashes проверяет все пары; required — требуется ли хотя бы один хэш.
func ValidateHashes(hashes map[string]string, required bool) error {
	if required && len(hashes) == 0 {
		return fmt.Errorf("требуется хотя бы один хэш")
	}
	for _, algo := range SortedKeys(hashes) {
		if err := ValidateHash(algo, hashes[algo]); err != nil {
			return err
		}
	}
	return nil
}
