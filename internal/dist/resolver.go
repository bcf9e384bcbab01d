// Пакет dist — глобальное разрешение did через внешние реестры.
// Если запись не найдена локально, резолвер опрашивает по порядку пиров,
// чьи подсказки (регулярные выражения) совпадают с did, и возвращает
// первый найденный документ.
package dist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/index-module/internal/config"
)

// ErrNotFound — ни один пир не знает did.
var ErrNotFound = errors.New("did не найден во внешних реестрах")

// maxDocumentSize — ограничение размера документа от пира.
const maxDocumentSize = 4 << 20

// Document — документ, полученный от пира.
type Document struct {
	// Peer — имя (или host) пира
	Peer string
	// Body — тело ответа как есть (indexd-запись или DRS-объект)
	Body json.RawMessage
}

type peer struct {
	cfg   config.DistPeer
	hints []*regexp.Regexp
}

// matches проверяет подсказки; пир без подсказок подходит для любого did.
func (p *peer) matches(did string) bool {
	if len(p.hints) == 0 {
		return true
	}
	for _, h := range p.hints {
		if h.MatchString(did) {
			return true
		}
	}
	return false
}

// objectURL — адрес документа на пире.
func (p *peer) objectURL(did string) string {
	host := strings.TrimRight(p.cfg.Host, "/")
	if p.cfg.Type == "drs" {
		return host + "/ga4gh/drs/v1/objects/" + did
	}
	return host + "/index/" + did
}

func (p *peer) name() string {
	if p.cfg.Name != "" {
		return p.cfg.Name
	}
	return p.cfg.Host
}

// Resolver — глобальный резолвер did.
type Resolver struct {
	peers      []*peer
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт резолвер. Подсказки компилируются заранее (проверены в config).
func New(peers []config.DistPeer, timeout time.Duration, logger *slog.Logger) (*Resolver, error) {
	r := &Resolver{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{MaxIdleConnsPerHost: 10},
		},
		logger: logger.With(slog.String("component", "dist_resolver")),
	}
	for _, pc := range peers {
		p := &peer{cfg: pc}
		for _, h := range pc.Hints {
			re, err := regexp.Compile(h)
			if err != nil {
				return nil, fmt.Errorf("пир %q: подсказка %q: %w", pc.Host, h, err)
			}
			p.hints = append(p.hints, re)
		}
		r.peers = append(r.peers, p)
	}
	return r, nil
}

// Enabled сообщает, настроен ли хотя бы один пир.
func (r *Resolver) Enabled() bool {
	return len(r.peers) > 0
}

// Resolve опрашивает подходящих пиров по порядку.
// Сбои отдельных пиров логируются и не прерывают поиск.
func (r *Resolver) Resolve(ctx context.Context, did string) (*Document, error) {
	for _, p := range r.peers {
		if !p.matches(did) {
			continue
		}
		body, err := r.fetch(ctx, p, did)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("Пир DIST недоступен",
				slog.String("peer", p.name()),
				slog.String("did", did),
				slog.String("error", err.Error()),
			)
			continue
		}
		if body == nil {
			continue
		}
		r.logger.Debug("did разрешён внешним реестром",
			slog.String("peer", p.name()),
			slog.String("did", did),
		)
		return &Document{Peer: p.name(), Body: body}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, did)
}

// fetch возвращает тело документа, nil при 404.
func (r *Resolver) fetch(ctx context.Context, p *peer, did string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.objectURL(did), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req) //nolint:gosec // URL из конфигурации IM_DIST
	if err != nil {
		return nil, fmt.Errorf("запрос к %s: %w", p.cfg.Host, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("пир %s вернул статус %d", p.cfg.Host, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("чтение ответа %s: %w", p.cfg.Host, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("пир %s вернул некорректный JSON", p.cfg.Host)
	}
	return data, nil
}
