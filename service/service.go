// Package service 管理一组具名的可持久化容器 (线段树与有序集合)，
// 负责并发控制、查询缓存、指标、链路追踪与快照持久化。
package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/wyfcoding/versioned/cache"
	"github.com/wyfcoding/versioned/config"
	"github.com/wyfcoding/versioned/idgen"
	"github.com/wyfcoding/versioned/logging"
	"github.com/wyfcoding/versioned/metrics"
	"github.com/wyfcoding/versioned/segtree"
	"github.com/wyfcoding/versioned/snapshot"
	"github.com/wyfcoding/versioned/tracing"
	"github.com/wyfcoding/versioned/treap"
	"github.com/wyfcoding/versioned/version"
	"github.com/wyfcoding/versioned/xerrors"
)

// Kind 容器类型。
type Kind string

const (
	KindSegment Kind = "segment"
	KindSet     Kind = "set"
	kindForest  Kind = "forest"
)

// Info 容器概要。
type Info struct {
	CreatedAt  time.Time  `json:"created_at"`
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Kind       Kind       `json:"kind"`
	Aggregator string     `json:"aggregator,omitempty"`
	Len        int        `json:"len,omitempty"` // 线段树的位置数。
	Versions   int        `json:"versions"`
	Latest     version.ID `json:"latest"`
	Nodes      int        `json:"nodes"`
}

// container 单个容器，写操作独占，读操作共享。
// 新版本在路径建好之后才追加到版本表，读者看不到构建到一半的版本。
type container struct {
	mu      sync.RWMutex
	created time.Time
	seg     *segtree.Tree
	set     *treap.Treap
	id      string
	name    string
	kind    Kind
}

func (c *container) infoLocked() Info {
	info := Info{ID: c.id, Name: c.name, Kind: c.kind, CreatedAt: c.created}
	switch c.kind {
	case KindSegment:
		info.Aggregator = c.seg.Aggregator().Name()
		info.Len = c.seg.Len()
		info.Versions, info.Latest, info.Nodes = c.seg.Versions(), c.seg.Latest(), c.seg.Nodes()
	case KindSet:
		info.Versions, info.Latest, info.Nodes = c.set.Versions(), c.set.Latest(), c.set.Nodes()
	}
	return info
}

func (c *container) info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.infoLocked()
}

// Option 定义 Service 构造参数。
type Option func(*Service)

// WithLogger 注入日志记录器。
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics 注入指标采集器。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCache 为只读查询启用结果缓存。版本一经发布便不可变，缓存条目永远不会过时。
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithStore 启用快照保存与加载。
func WithStore(store snapshot.Store) Option {
	return func(s *Service) { s.store = store }
}

// Service 容器目录。
type Service struct {
	mu         sync.RWMutex
	containers map[string]*container
	names      map[string]string // name -> id
	ids        idgen.Generator
	cache      cache.Cache
	store      snapshot.Store
	metrics    *metrics.Metrics
	logger     *logging.Logger
	group      singleflight.Group
	cfg        config.EngineConfig
	cacheTTL   time.Duration
}

// New 创建容器目录。
func New(cfg config.EngineConfig, ids idgen.Generator, opts ...Option) *Service {
	s := &Service{
		containers: make(map[string]*container),
		names:      make(map[string]string),
		ids:        ids,
		logger:     logging.Default(),
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// observe 为一次操作开启 Span 并在结束时记录结果与耗时。用法: defer done(&err)。
func (s *Service) observe(ctx context.Context, kind Kind, op string) (context.Context, func(*error)) {
	ctx, span := tracing.StartSpan(ctx, "versioned."+string(kind)+"."+op)
	start := time.Now()
	return ctx, func(errp *error) {
		result := "ok"
		if *errp != nil {
			result = "error"
			tracing.SetError(ctx, *errp)
		}
		if s.metrics != nil {
			s.metrics.OpsTotal.WithLabelValues(string(kind), op, result).Inc()
			s.metrics.OpDuration.WithLabelValues(string(kind), op).Observe(time.Since(start).Seconds())
		}
		span.End()
	}
}

// track 记录一次修改带来的节点与版本增量。
func (s *Service) track(kind Kind, nodes, versions int) {
	if s.metrics == nil {
		return
	}
	s.metrics.ArenaNodes.WithLabelValues(string(kind)).Add(float64(nodes))
	s.metrics.Versions.WithLabelValues(string(kind)).Add(float64(versions))
}

func (s *Service) gauge(vec *prometheus.GaugeVec, kind Kind, delta float64) {
	if s.metrics != nil {
		vec.WithLabelValues(string(kind)).Add(delta)
	}
}

// register 分配 ID 并登记容器，name 为空时以 ID 作为名字。
func (s *Service) register(ctx context.Context, c *container) (Info, error) {
	c.id = strconv.FormatInt(s.ids.Generate(), 10)
	if c.name == "" {
		c.name = c.id
	}
	c.created = time.Now()

	s.mu.Lock()
	if s.cfg.MaxContainers > 0 && len(s.containers) >= s.cfg.MaxContainers {
		s.mu.Unlock()
		return Info{}, xerrors.ErrContainerLimit.Derive("limit %d", s.cfg.MaxContainers)
	}
	if _, ok := s.names[c.name]; ok {
		s.mu.Unlock()
		return Info{}, xerrors.ErrNameTaken.Derive("name %q", c.name)
	}
	s.containers[c.id] = c
	s.names[c.name] = c.id
	s.mu.Unlock()

	info := c.info()
	if s.metrics != nil {
		s.gauge(s.metrics.Containers, c.kind, 1)
		s.track(c.kind, info.Nodes, info.Versions)
	}
	s.logger.InfoContext(ctx, "container created", "id", c.id, "name", c.name, "kind", c.kind, "nodes", info.Nodes)
	return info, nil
}

func (s *Service) lookup(id string, kind Kind) (*container, error) {
	s.mu.RLock()
	c, ok := s.containers[id]
	s.mu.RUnlock()
	if !ok {
		return nil, xerrors.ErrContainerNotFound.Derive("id %s", id)
	}
	if kind != "" && c.kind != kind {
		return nil, xerrors.ErrKindMismatch.Derive("container %s is a %s, not a %s", id, c.kind, kind)
	}
	return c, nil
}

func (s *Service) arenaLimit() int { return s.cfg.ArenaLimit }

// CreateSegment 用初始数组创建线段树容器，aggregator 为空时使用配置的默认值。
func (s *Service) CreateSegment(ctx context.Context, name string, values []int64, aggregator string) (info Info, err error) {
	ctx, done := s.observe(ctx, KindSegment, "create")
	defer done(&err)

	if s.cfg.MaxPositions > 0 && len(values) > s.cfg.MaxPositions {
		return Info{}, xerrors.ErrTooManyPositions.Derive("%d positions, limit %d", len(values), s.cfg.MaxPositions)
	}
	if aggregator == "" {
		aggregator = cmp.Or(s.cfg.Aggregator, "sum")
	}
	agg, err := segtree.ParseAggregator(aggregator)
	if err != nil {
		return Info{}, err
	}
	tree, err := segtree.New(values,
		segtree.WithAggregator(agg),
		segtree.WithArenaLimit(s.arenaLimit()),
		segtree.WithLogger(s.logger.Logger),
	)
	if err != nil {
		return Info{}, err
	}
	return s.register(ctx, &container{name: name, kind: KindSegment, seg: tree})
}

// CreateOrderedSet 创建空的有序集合容器。seed 为 0 时使用配置的种子，配置也为 0 则按时间取种子。
func (s *Service) CreateOrderedSet(ctx context.Context, name string, seed uint64) (info Info, err error) {
	ctx, done := s.observe(ctx, KindSet, "create")
	defer done(&err)

	opts := []treap.Option{treap.WithArenaLimit(s.arenaLimit()), treap.WithLogger(s.logger.Logger)}
	if seed = cmp.Or(seed, s.cfg.TreapSeed); seed != 0 {
		opts = append(opts, treap.WithSeed(seed))
	}
	return s.register(ctx, &container{name: name, kind: KindSet, set: treap.New(opts...)})
}

// Get 返回容器概要。
func (s *Service) Get(_ context.Context, id string) (Info, error) {
	c, err := s.lookup(id, "")
	if err != nil {
		return Info{}, err
	}
	return c.info(), nil
}

// List 按创建时间返回全部容器。
func (s *Service) List(_ context.Context) []Info {
	s.mu.RLock()
	all := make([]*container, 0, len(s.containers))
	for _, c := range s.containers {
		all = append(all, c)
	}
	s.mu.RUnlock()

	out := make([]Info, 0, len(all))
	for _, c := range all {
		out = append(out, c.info())
	}
	slices.SortFunc(out, func(a, b Info) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Drop 删除容器。已缓存的查询结果按容器 ID 隔离，ID 不会复用，无需清理。
func (s *Service) Drop(ctx context.Context, id string) error {
	s.mu.Lock()
	c, ok := s.containers[id]
	if ok {
		delete(s.containers, id)
		delete(s.names, c.name)
	}
	s.mu.Unlock()
	if !ok {
		return xerrors.ErrContainerNotFound.Derive("id %s", id)
	}

	info := c.info()
	if s.metrics != nil {
		s.gauge(s.metrics.Containers, c.kind, -1)
		s.track(c.kind, -info.Nodes, -info.Versions)
	}
	s.logger.InfoContext(ctx, "container dropped", "id", id, "name", c.name, "kind", c.kind)
	return nil
}

// Checkout 把任意历史版本重新发布为最新版本，不分配节点。
func (s *Service) Checkout(ctx context.Context, id string, v version.ID) (nv version.ID, err error) {
	c, err := s.lookup(id, "")
	if err != nil {
		return version.None, err
	}
	ctx, done := s.observe(ctx, c.kind, "checkout")
	defer done(&err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kind == KindSegment {
		nv, err = c.seg.Checkout(v)
	} else {
		nv, err = c.set.Checkout(v)
	}
	if err == nil {
		s.track(c.kind, 0, 1)
		s.logger.DebugContext(ctx, "version checked out", "id", id, "from", v, "version", nv)
	}
	return nv, err
}

// Audit 对容器的一个版本做结构自检。
func (s *Service) Audit(ctx context.Context, id string, v version.ID) (err error) {
	c, err := s.lookup(id, "")
	if err != nil {
		return err
	}
	ctx, done := s.observe(ctx, c.kind, "audit")
	defer done(&err)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.kind == KindSegment {
		err = c.seg.Audit(v)
	} else {
		err = c.set.Audit(v)
	}
	if err != nil && errors.Is(err, xerrors.ErrAuditFailed) {
		s.logger.ErrorContext(ctx, "audit failed", "id", id, "version", v, "error", err)
	}
	return err
}

// cached 对不可变的查询结果做缓存，并合并并发的相同查询。
// 调用方不得持有容器锁，load 自行加读锁，慢速的二级缓存不会阻塞写者。
func (s *Service) cached(ctx context.Context, key string, load func() (int64, error)) (int64, error) {
	if s.cache == nil {
		return load()
	}
	var out int64
	err := s.cache.Get(ctx, key, &out)
	if err == nil {
		s.lookupResult("hit")
		return out, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "query cache unavailable", "key", key, "error", err)
	}
	s.lookupResult("miss")

	v, err, _ := s.group.Do(key, func() (any, error) {
		r, err := load()
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, r, s.cacheTTL); err != nil {
			s.logger.WarnContext(ctx, "query cache write failed", "key", key, "error", err)
		}
		return r, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (s *Service) lookupResult(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookup.WithLabelValues(result).Inc()
	}
}
