package escala

import (
	"context"
	"time"

	"github.com/escala-app/escala/api"
	"github.com/escala-app/escala/authz"
	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/eventbus/membus"
	"github.com/escala-app/escala/internal/config"
	"github.com/escala-app/escala/logging"
	"github.com/escala-app/escala/session"
	"github.com/escala-app/escala/storage"
	"github.com/escala-app/escala/storage/badgerstore"
	"github.com/escala-app/escala/storage/memstore"
	"github.com/escala-app/escala/storage/sqlstore"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
)

// ErrUnknownDriver is returned for an unsupported storage.driver.
var ErrUnknownDriver = errors.NewC("escala: unknown storage driver", codes.InvalidArgument)

// AppOption customizes how the App is wired.
type AppOption func(*builder)

// WithContext sets the base context. Its logger, if any, is kept.
func WithContext(ctx context.Context) AppOption {
	return func(b *builder) {
		b.baseContext = ctx
	}
}

// WithStorage uses st instead of opening the configured driver. The App
// does not close it.
func WithStorage(st storage.Store) AppOption {
	return func(b *builder) {
		b.storage = st
	}
}

// WithAPIOption passes opt to the API client, after the App's own options.
func WithAPIOption(opt api.Option) AppOption {
	return func(b *builder) {
		b.apiOpts = append(b.apiOpts, opt)
	}
}

// WithRegisterer registers the App's metrics with reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) AppOption {
	return func(b *builder) {
		b.registerer = reg
	}
}

// WithGate replaces the default route table.
func WithGate(g *authz.Gate) AppOption {
	return func(b *builder) {
		b.gate = g
	}
}

type builder struct {
	baseContext context.Context
	storage     storage.Store
	registerer  prometheus.Registerer
	gate        *authz.Gate
	apiOpts     []api.Option

	baseURL     string
	timeout     time.Duration
	rateLimit   float64
	rateBurst   int
	driver      string
	dsn         string
	dir         string
	tablePrefix string
	logMode     string
	storageKey  string
	workers     int
}

// New wires an App from Config and opts.
func New(opts ...AppOption) (*App, error) {
	config.ApplyDefaults(Config)

	b := &builder{
		baseURL:     Config.String("api.baseURL"),
		timeout:     Config.Duration("api.timeout"),
		rateLimit:   Config.Float64("api.rateLimit"),
		rateBurst:   Config.Int("api.rateBurst"),
		driver:      Config.String("storage.driver"),
		dsn:         Config.String("storage.dsn"),
		dir:         Config.String("storage.dir"),
		tablePrefix: Config.String("storage.tablePrefix"),
		logMode:     Config.String("logging.mode"),
		storageKey:  Config.String("session.storageKey"),
		workers:     Config.Int("eventbus.workers"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b.build()
}

func (b *builder) build() (*App, error) {
	if b.baseContext == nil {
		b.baseContext = context.Background()
	}
	ctx := logging.WithDefault(b.baseContext, logging.New(b.logMode))
	ctx, cancel := context.WithCancel(ctx)

	a := &App{ctx: ctx, cancel: cancel, gate: b.gate}
	if a.gate == nil {
		a.gate = authz.DefaultGate()
	}

	st := b.storage
	if st == nil {
		var err error
		st, err = openStorage(ctx, b.driver, b.dsn, b.dir, b.tablePrefix)
		if err != nil {
			cancel()
			return nil, err
		}
		a.ownedStorage = st
	}

	a.bus = membus.New(ctx, membus.WithWorkerPool(b.workers))
	a.sessions = session.New(st,
		session.WithEventBus(a.bus),
		session.WithStorageKey(b.storageKey))

	reg := b.registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	a.auditor = newAuditor(reg)
	a.auditor.subscribe(a.bus)

	apiOpts := []api.Option{
		api.WithTokenSource(a.sessions),
		api.WithMetrics(api.NewMetrics(reg)),
		api.WithTimeout(b.timeout),
	}
	if b.rateLimit > 0 {
		apiOpts = append(apiOpts, api.WithRateLimit(b.rateLimit, b.rateBurst))
	}
	a.client = api.New(b.baseURL, append(apiOpts, b.apiOpts...)...)

	logging.Debugw(ctx, "escala: app built",
		"api.baseURL", a.client.BaseURL(), "storage.driver", b.driver)
	return a, nil
}

func openStorage(ctx context.Context, driver, dsn, dir, prefix string) (storage.Store, error) {
	switch driver {
	case DriverMemory:
		return memstore.New(), nil
	case DriverSQLite:
		return sqlstore.New(sqlstore.SQLite, dsn, sqlstore.WithPrefix(prefix))
	case DriverPostgres:
		return sqlstore.New(sqlstore.Postgres, dsn, sqlstore.WithPrefix(prefix))
	case DriverBadger:
		return badgerstore.New(dir, badgerstore.WithLogger(logging.FromContext(ctx)))
	default:
		return nil, errors.Mark(ErrUnknownDriver, 0).Append(driver)
	}
}
