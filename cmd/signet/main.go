package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/signet/internal/cache"
	memcache "github.com/dropDatabas3/signet/internal/cache/memory"
	rediscache "github.com/dropDatabas3/signet/internal/cache/redis"
	"github.com/dropDatabas3/signet/internal/config"
	httpserver "github.com/dropDatabas3/signet/internal/http"
	"github.com/dropDatabas3/signet/internal/http/handlers"
	"github.com/dropDatabas3/signet/internal/http/session"
	"github.com/dropDatabas3/signet/internal/jwt"
	"github.com/dropDatabas3/signet/internal/metrics"
	"github.com/dropDatabas3/signet/internal/observability/logger"
	"github.com/dropDatabas3/signet/internal/oidc"
	"github.com/dropDatabas3/signet/internal/profile"
	"github.com/dropDatabas3/signet/internal/rate"
	memstore "github.com/dropDatabas3/signet/internal/store/memory"
	pgstore "github.com/dropDatabas3/signet/internal/store/pg"
	redisstore "github.com/dropDatabas3/signet/internal/store/redis"
	migrations "github.com/dropDatabas3/signet/migrations/postgres"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:   "signet",
		Short: "OAuth2/OIDC authorization server",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("SIGNET_CONFIG", "signet.yaml"), "path to the config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfgPath)
		},
	}

	var keyPath, keyKID string
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate the signing key and print the JWKS",
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := jwt.LoadOrCreate(keyPath, keyKID)
			if err != nil {
				return err
			}
			fmt.Println(string(ks.JWKSJSON()))
			return nil
		},
	}
	keysCmd.Flags().StringVar(&keyPath, "path", "signet-keys.json", "key file path")
	keysCmd.Flags().StringVar(&keyKID, "kid", "active", "key ID for a newly generated key")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), cfgPath)
		},
	}

	root.AddCommand(serveCmd, keysCmd, migrateCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       envOr("LOG_LEVEL", "info"),
		ServiceName: "signet",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cache (sessions, PAR payloads).
	var byteCache cache.Cache
	var ready []handlers.Pinger
	var redisClient *rdb.Client
	switch cfg.Cache.Kind {
	case "redis":
		rc := rediscache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
		byteCache = rc
		redisClient = rc.Client()
		ready = append(ready, redisPinger{c: redisClient})
	default:
		byteCache = memcache.New(config.Duration(cfg.Cache.Memory.DefaultTTL, 2*time.Minute))
	}

	// Credential-endpoint throttling. Shared through Redis when the cache
	// already runs on it, in-process otherwise.
	var limit rate.Limiter
	if cfg.RateLimit.Max > 0 {
		window := config.Duration(cfg.RateLimit.Window, time.Minute)
		if redisClient != nil {
			limit = rate.NewRedisLimiter(redisClient, "rl:", cfg.RateLimit.Max, window)
		} else {
			limit = rate.NewMemoryLimiter(cfg.RateLimit.Max, window)
		}
	}

	// Stores.
	var (
		clients oidc.ClientStore
		codes   oidc.AuthorizationCodeStore
		grants  oidc.PersistedGrantStore
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := pgstore.New(ctx, cfg.Storage.Postgres.DSN, pgstore.Config{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: config.Duration(cfg.Storage.Postgres.ConnMaxLifetime, 30*time.Minute),
		})
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer pg.Close()
		clients = pgstore.NewClientStore(pg)
		codes = pgstore.NewCodeStore(pg)
		grants = pgstore.NewGrantStore(pg)
		ready = append(ready, pg)
	case "redis":
		rc := rdb.NewClient(&rdb.Options{Addr: cfg.Storage.Redis.Addr, DB: cfg.Storage.Redis.DB})
		codes = redisstore.NewCodeStore(rc)
		grants = redisstore.NewGrantStore(rc)
		ready = append(ready, redisPinger{c: rc})
		// The redis driver keeps codes and grants shared; clients stay
		// static from the config file.
		clients, err = staticClients(cfg)
		if err != nil {
			return err
		}
	default:
		codes = memstore.NewCodeStore()
		grants = memstore.NewGrantStore()
		clients, err = staticClients(cfg)
		if err != nil {
			return err
		}
	}

	// Signing key.
	keyPath := cfg.Keys.Path
	if keyPath == "" {
		keyPath = "signet-keys.json"
	}
	keys, err := jwt.LoadOrCreate(keyPath, cfg.Keys.KID)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}
	issuer := jwt.NewIssuer(cfg.Issuer, keys)
	issuer.AccessTTL = config.Duration(cfg.OAuth.AccessTTL, 15*time.Minute)

	// Core validators and the grant engine.
	users, err := cfg.BuildUsers()
	if err != nil {
		return err
	}
	profiles := profile.NewStatic(users)

	validator := oidc.NewAuthorizeRequestValidator(oidc.AuthorizeValidatorDeps{
		Clients:  clients,
		Redirect: oidc.NewRedirectURIValidator(),
		Scopes:   oidc.NewScopeValidator(cfg.BuildCatalog()),
		PKCE:     oidc.NewPKCEValidator(),
	})
	grant := oidc.NewAuthorizationCodeGrantHandler(oidc.GrantHandlerDeps{
		Codes:   codes,
		Grants:  grants,
		PKCE:    oidc.NewPKCEValidator(),
		Profile: profiles,
	})

	sessions := session.NewManager(
		byteCache,
		cfg.Session.CookieName,
		config.Duration(cfg.Session.TTL, 12*time.Hour),
		cfg.App.Env == "prod",
	)

	if err := metrics.Register(nil); err != nil {
		return err
	}

	deps := &handlers.Deps{
		Validator:  validator,
		Grant:      grant,
		Clients:    clients,
		Codes:      codes,
		Grants:     grants,
		Profile:    profiles,
		Issuer:     issuer,
		Sessions:   sessions,
		Auth:       profiles,
		PAR:        handlers.NewPARStore(byteCache, config.Duration(cfg.OAuth.PARTTL, 90*time.Second)),
		LoginURL:   cfg.LoginURL,
		Limit:      limit,
		CodeTTL:    config.Duration(cfg.OAuth.CodeTTL, 5*time.Minute),
		RefreshTTL: config.Duration(cfg.OAuth.RefreshTTL, 720*time.Hour),
		Ready:      ready,
	}

	log.Info("starting signet",
		logger.String("issuer", cfg.Issuer),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("addr", cfg.Server.Addr),
	)
	srv := httpserver.NewServer(cfg.Server.Addr, httpserver.NewRouter(deps))
	return srv.Run(ctx)
}

func staticClients(cfg *config.Config) (oidc.ClientStore, error) {
	list, err := cfg.BuildClients()
	if err != nil {
		return nil, err
	}
	ptrs := make([]*oidc.Client, len(list))
	for i := range list {
		ptrs[i] = &list[i]
	}
	return memstore.NewClientStore(ptrs...), nil
}

// migrate applies the embedded SQL files in lexical order. Files are
// idempotent (IF NOT EXISTS) so re-running is safe.
func migrate(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is not configured")
	}
	pg, err := pgstore.New(ctx, cfg.Storage.Postgres.DSN, pgstore.Config{})
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer pg.Close()

	entries, err := migrations.FS.ReadDir(migrations.Dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := migrations.FS.ReadFile(migrations.Dir + "/" + name)
		if err != nil {
			return err
		}
		if _, err := pg.Pool().Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		fmt.Printf("applied %s\n", name)
	}
	return nil
}

type redisPinger struct{ c *rdb.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
