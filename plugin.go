package whitebox

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/oarkflow/squealx"
	"github.com/oarkflow/squealx/drivers/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/oarkflow/whitebox/pkg/contracts"
	"github.com/oarkflow/whitebox/pkg/http/middlewares"
	"github.com/oarkflow/whitebox/pkg/http/routes"
	"github.com/oarkflow/whitebox/pkg/libs"
	"github.com/oarkflow/whitebox/pkg/objects"
	"github.com/oarkflow/whitebox/pkg/ratelimit"
	"github.com/oarkflow/whitebox/pkg/storage"
	"github.com/oarkflow/whitebox/pkg/utils"
)

//go:embed auth
var Assets embed.FS

const ratelimitSweepInterval = time.Minute

type Plugin struct {
	App     *fiber.App
	Config  *libs.Config
	DB      *squealx.DB
	Store   contracts.Store
	Redis   redis.UniversalClient
	Counter ratelimit.Counter
	Logger  *zap.Logger
	Options []libs.Option

	manager   *libs.Manager
	memory    *ratelimit.MemoryCounter
	ownsDB    bool
	ownsRedis bool
}

type Option func(*Plugin)

func WithApp(app *fiber.App) Option {
	return func(p *Plugin) { p.App = app }
}

func WithConfig(cfg *libs.Config) Option {
	return func(p *Plugin) { p.Config = cfg }
}

func WithDB(db *squealx.DB) Option {
	return func(p *Plugin) { p.DB = db }
}

// WithStore bypasses the database entirely.
func WithStore(store contracts.Store) Option {
	return func(p *Plugin) { p.Store = store }
}

func WithRedis(client redis.UniversalClient) Option {
	return func(p *Plugin) { p.Redis = client }
}

func WithCounter(counter ratelimit.Counter) Option {
	return func(p *Plugin) { p.Counter = counter }
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Plugin) { p.Logger = log }
}

// WithManagerOptions passes options through to libs.NewManager.
func WithManagerOptions(opts ...libs.Option) Option {
	return func(p *Plugin) { p.Options = append(p.Options, opts...) }
}

func NewPlugin(opts ...Option) *Plugin {
	p := &Plugin{}
	for _, opt := range opts {
		opt(p)
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	objects.ViewEngine = NewViewEngine()
	if objects.Layout == "" {
		objects.Layout = "layouts/main"
	}
	return p
}

// NewViewEngine parses the embedded templates.
func NewViewEngine() *html.Engine {
	engine := html.NewFileSystem(http.FS(Assets), ".html")
	engine.AddFuncMap(map[string]any{
		"unescape": func(s string) template.HTML {
			return template.HTML(s)
		},
		"dataurl": func(s string) template.URL {
			return template.URL(s)
		},
		"uris": func() map[string]string {
			return utils.GetURIs()
		},
	})
	return engine
}

// Register opens the store, builds the manager and mounts every route.
func (p *Plugin) Register(ctx context.Context) error {
	if p.Config == nil {
		if objects.Config == nil {
			return errors.New("whitebox: no configuration loaded")
		}
		cfg, err := libs.LoadConfig(objects.Config)
		if err != nil {
			return err
		}
		p.Config = cfg
	}
	if p.Store == nil {
		if p.DB == nil {
			db, err := sqlite.Open("whitebox.db", "sqlite")
			if err != nil {
				return err
			}
			p.DB = db
			p.ownsDB = true
		}
		store, err := storage.NewDatabaseStorage(ctx, p.DB)
		if err != nil {
			return err
		}
		p.Store = store
	}
	if p.Counter == nil {
		p.Counter = p.counter()
	}

	opts := append([]libs.Option{libs.WithLogger(p.Logger)}, p.Options...)
	manager, err := libs.NewManager(p.Store, p.Counter, p.Config, opts...)
	if err != nil {
		return err
	}
	p.manager = manager
	objects.Manager = manager

	if p.App != nil {
		p.App.Use(middlewares.RequestLogger(p.Logger))
		p.App.Use(middlewares.SecurityHeaders(p.Config.HTTPS))
		routes.Setup(p.App)
	}
	return nil
}

func (p *Plugin) counter() ratelimit.Counter {
	if p.Config.RateLimitBackend == "redis" {
		client := p.Redis
		if client == nil {
			client = redis.NewClient(&redis.Options{Addr: p.Config.RedisAddr})
			p.Redis = client
			p.ownsRedis = true
		}
		return ratelimit.NewRedisCounter(client, "")
	}
	p.memory = ratelimit.NewMemoryCounter()
	return p.memory
}

// StartJanitor sweeps expired windows of the in-memory counter until ctx is
// done. It does nothing for other backends.
func (p *Plugin) StartJanitor(ctx context.Context) {
	if p.memory != nil {
		p.memory.StartJanitor(ctx, ratelimitSweepInterval)
	}
}

func (p *Plugin) Manager() *libs.Manager {
	return p.manager
}

func (p *Plugin) Name() string {
	return "Whitebox"
}

func (p *Plugin) DependsOn() []string {
	return []string{"Database"}
}

func (p *Plugin) Close() error {
	var errs []error
	if p.Store != nil && p.ownsDB {
		errs = append(errs, p.Store.Close())
	}
	if p.Redis != nil && p.ownsRedis {
		errs = append(errs, p.Redis.Close())
	}
	return errors.Join(errs...)
}
