// alias.go — реестр глобальных алиасов.
// Не связан с алиасами записей: отдельные таблицы и отдельное пространство имён.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bigkaa/goartstore/index-module/internal/domain/guid"
	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

// AliasStore — транзакционный доступ к реестру алиасов.
type AliasStore interface {
	Session(ctx context.Context, fn func(repo repository.AliasRepository) error) error
}

// AliasRef — результат мутации глобального алиаса.
type AliasRef struct {
	Name string
	Rev  string
}

// AliasService — сервис реестра глобальных алиасов.
type AliasService struct {
	store  AliasStore
	authz  Authorizer
	logger *slog.Logger
}

// NewAliasService создаёт сервис глобальных алиасов.
func NewAliasService(store AliasStore, authz Authorizer, logger *slog.Logger) *AliasService {
	return &AliasService{
		store:  store,
		authz:  authz,
		logger: logger.With(slog.String("component", "alias_service")),
	}
}

// Upsert создаёт алиас или обновляет непустые поля существующего.
// Если алиас существует и rev передан, он должен совпадать с текущим.
func (s *AliasService) Upsert(ctx context.Context, name, rev string, changes model.GlobalAliasChanges) (AliasRef, error) {
	if name == "" {
		return AliasRef{}, validationf("имя алиаса обязательно")
	}
	if err := s.authz.RequireBasic(ctx); err != nil {
		return AliasRef{}, err
	}

	var ref AliasRef
	created := false
	err := s.store.Session(ctx, func(repo repository.AliasRepository) error {
		a, err := repo.Get(ctx, name, true)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			a = &model.GlobalAlias{Name: name, Hashes: map[string]string{}, HostAuthorities: []string{}}
			created = true
		case err != nil:
			return translateRepoErr(err, "получение алиаса")
		default:
			if rev != "" {
				if err := checkRev(a.Rev, rev); err != nil {
					return err
				}
			}
		}

		changes.Apply(a)
		a.Rev = guid.MintRev()
		if err := a.Validate(); err != nil {
			return invalid(err)
		}

		if created {
			err = repo.Insert(ctx, a)
		} else {
			err = repo.Update(ctx, a)
		}
		if err != nil {
			return translateRepoErr(err, "сохранение алиаса")
		}
		ref = AliasRef{Name: a.Name, Rev: a.Rev}
		return nil
	})
	if err != nil {
		return AliasRef{}, err
	}

	s.logger.Info("Глобальный алиас сохранён",
		slog.String("name", name),
		slog.String("rev", ref.Rev),
		slog.Bool("created", created),
	)
	return ref, nil
}

// Get возвращает глобальный алиас.
func (s *AliasService) Get(ctx context.Context, name string) (*model.GlobalAlias, error) {
	var a *model.GlobalAlias
	err := s.store.Session(ctx, func(repo repository.AliasRepository) error {
		var err error
		a, err = repo.Get(ctx, name, false)
		return translateRepoErr(err, "получение алиаса")
	})
	return a, err
}

// Delete удаляет глобальный алиас; rev, если передан, должен совпадать.
func (s *AliasService) Delete(ctx context.Context, name, rev string) error {
	if err := s.authz.RequireBasic(ctx); err != nil {
		return err
	}
	err := s.store.Session(ctx, func(repo repository.AliasRepository) error {
		a, err := repo.Get(ctx, name, true)
		if err != nil {
			return translateRepoErr(err, "получение алиаса")
		}
		if rev != "" {
			if err := checkRev(a.Rev, rev); err != nil {
				return err
			}
		}
		return translateRepoErr(repo.Delete(ctx, name), "удаление алиаса")
	})
	if err != nil {
		return err
	}
	s.logger.Info("Глобальный алиас удалён", slog.String("name", name))
	return nil
}

// List возвращает алиасы по имени, начиная после start.
func (s *AliasService) List(ctx context.Context, q repository.AliasListQuery) ([]*model.GlobalAlias, error) {
	if err := checkLimit(q.Limit); err != nil {
		return nil, err
	}
	if err := checkFilterHashes(q.Hashes); err != nil {
		return nil, err
	}
	if q.Limit == 0 {
		return []*model.GlobalAlias{}, nil
	}
	var out []*model.GlobalAlias
	err := s.store.Session(ctx, func(repo repository.AliasRepository) error {
		var err error
		out, err = repo.List(ctx, q)
		return err
	})
	if err != nil {
		return nil, translateRepoErr(err, "получение списка алиасов")
	}
	if out == nil {
		out = []*model.GlobalAlias{}
	}
	return out, nil
}
