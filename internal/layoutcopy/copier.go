// Пакет layoutcopy — перенос записей индекса между раскладками (multi → single и обратно).
//
// Copier читает страницы источника (по did, смещением) N сборщиками и пишет их
// M вставщиками через канал ёмкостью N. Закрытие канала — признак конца данных.
// Записи, уже существующие в приёмнике, пропускаются.
//
// Prometheus-метрики:
//   - im_layout_copy_records_total — обработанные записи (result: copied, skipped)
package layoutcopy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/index-module/internal/domain/model"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
)

var copyRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "im_layout_copy_records_total",
	Help: "Количество записей, обработанных при переносе между раскладками.",
}, []string{"result"})

// Store — транзакционный доступ к раскладке индекса.
// Реализуется repository.IndexStore.
type Store interface {
	Session(ctx context.Context, fn func(repo repository.IndexRepository) error) error
}

// Options — параметры переноса.
type Options struct {
	// Collectors — количество параллельных читателей (и ёмкость очереди)
	Collectors int
	// Inserters — количество параллельных писателей
	Inserters int
	// PageSize — размер страницы чтения
	PageSize int
}

// Result — итог переноса.
type Result struct {
	Copied  int64
	Skipped int64
}

// Copier — перенос записей между раскладками.
type Copier struct {
	src    Store
	dst    Store
	opts   Options
	logger *slog.Logger
}

// New создаёт Copier. Нулевые параметры заменяются значениями по умолчанию.
func New(src, dst Store, opts Options, logger *slog.Logger) *Copier {
	if opts.Collectors < 1 {
		opts.Collectors = 4
	}
	if opts.Inserters < 1 {
		opts.Inserters = 4
	}
	if opts.PageSize < 1 {
		opts.PageSize = 500
	}
	return &Copier{
		src:    src,
		dst:    dst,
		opts:   opts,
		logger: logger.With(slog.String("component", "layout_copy")),
	}
}

// Run выполняет перенос. Первая ошибка чтения или записи останавливает все горутины.
func (c *Copier) Run(ctx context.Context) (Result, error) {
	queue := make(chan *model.Record, c.opts.Collectors)
	var copied, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)

	collectors, cctx := errgroup.WithContext(gctx)
	for i := 0; i < c.opts.Collectors; i++ {
		first := i
		collectors.Go(func() error {
			return c.collect(cctx, first, queue)
		})
	}
	g.Go(func() error {
		err := collectors.Wait()
		close(queue)
		return err
	})

	for i := 0; i < c.opts.Inserters; i++ {
		g.Go(func() error {
			for rec := range queue {
				ok, err := c.insert(gctx, rec)
				if err != nil {
					return err
				}
				if ok {
					copied.Add(1)
					copyRecordsTotal.WithLabelValues("copied").Inc()
				} else {
					skipped.Add(1)
					copyRecordsTotal.WithLabelValues("skipped").Inc()
				}
			}
			return nil
		})
	}

	err := g.Wait()
	res := Result{Copied: copied.Load(), Skipped: skipped.Load()}
	if err != nil {
		return res, fmt.Errorf("перенос записей: %w", err)
	}
	c.logger.Info("Перенос записей завершён",
		slog.Int64("copied", res.Copied),
		slog.Int64("skipped", res.Skipped),
	)
	return res, nil
}

// collect читает страницы first, first+N, first+2N... до первой неполной.
func (c *Copier) collect(ctx context.Context, first int, queue chan<- *model.Record) error {
	for page := first; ; page += c.opts.Collectors {
		var recs []*model.Record
		err := c.src.Session(ctx, func(repo repository.IndexRepository) error {
			var err error
			recs, err = repo.List(ctx, repository.ListQuery{
				Offset: page * c.opts.PageSize,
				Limit:  c.opts.PageSize,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("чтение страницы %d: %w", page, err)
		}

		for _, rec := range recs {
			select {
			case queue <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		c.logger.Debug("Страница прочитана", slog.Int("page", page), slog.Int("records", len(recs)))
		if len(recs) < c.opts.PageSize {
			return nil
		}
	}
}

// insert сохраняет запись в приёмнике; false — запись уже существует.
func (c *Copier) insert(ctx context.Context, rec *model.Record) (bool, error) {
	err := c.dst.Session(ctx, func(repo repository.IndexRepository) error {
		return repo.Insert(ctx, rec)
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrConflict):
		c.logger.Debug("Запись уже существует, пропуск", slog.String("did", rec.DID))
		return false, nil
	default:
		return false, fmt.Errorf("вставка %s: %w", rec.DID, err)
	}
}
