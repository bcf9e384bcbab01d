package model

import "fmt"

// Release — уровень доступности данных глобального алиаса.
type Release string

const (
	ReleasePublic     Release = "public"
	ReleasePrivate    Release = "private"
	ReleaseControlled Release = "controlled"
)

// Valid проверяет допустимость значения release.
func (r Release) Valid() bool {
	switch r {
	case ReleasePublic, ReleasePrivate, ReleaseControlled:
		return true
	}
	return false
}

// GlobalAlias — запись независимого реестра алиасов.
// Не связана с алиасами записей индекса: отдельные таблицы и отдельное пространство имён.
type GlobalAlias struct {
	Name            string
	Rev             string
	Size            *int64
	Release         *Release
	Metastring      *string
	KeeperAuthority *string
	Hashes          map[string]string
	HostAuthorities []string
}

// Validate проверяет поля глобального алиаса.
func (a *GlobalAlias) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("имя алиаса обязательно")
	}
	if a.Size != nil && *a.Size < 0 {
		return fmt.Errorf("размер не может быть отрицательным: %d", *a.Size)
	}
	if a.Release != nil && !a.Release.Valid() {
		return fmt.Errorf("недопустимый release %q: допустимые public, private, controlled", *a.Release)
	}
	if err := ValidateHashes(a.Hashes, false); err != nil {
		return err
	}
	return uniqueStrings("host_authorities", a.HostAuthorities)
}

// GlobalAliasChanges — поля upsert; nil означает «не менять».
type GlobalAliasChanges struct {
	Size            *int64
	Release         *Release
	Metastring      *string
	KeeperAuthority *string
	Hashes          map[string]string
	HostAuthorities []string
}

// Apply применяет непустые поля к алиасу.
func (c *GlobalAliasChanges) Apply(a *GlobalAlias) {
	if c.Size != nil {
		a.Size = c.Size
	}
	if c.Release != nil {
		a.Release = c.Release
	}
	if c.Metastring != nil {
		a.Metastring = c.Metastring
	}
	if c.KeeperAuthority != nil {
		a.KeeperAuthority = c.KeeperAuthority
	}
	if c.Hashes != nil {
		a.Hashes = c.Hashes
	}
	if c.HostAuthorities != nil {
		a.HostAuthorities = c.HostAuthorities
	}
}
