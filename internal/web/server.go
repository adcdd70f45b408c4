package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/storage/bbolt/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/rs/zerolog/log"

	"github.com/dirctl/ldapdm/internal/authz"
	"github.com/dirctl/ldapdm/internal/config"
	"github.com/dirctl/ldapdm/internal/entity"
	"github.com/dirctl/ldapdm/internal/hooks"
	"github.com/dirctl/ldapdm/internal/ldapclient"
	"github.com/dirctl/ldapdm/internal/orgconsistency"
	"github.com/dirctl/ldapdm/internal/pluginhost"
	"github.com/dirctl/ldapdm/internal/schema"
	"github.com/dirctl/ldapdm/internal/trash"
)

// organizationSchemaName is the naming convention server wiring uses to
// find the one schema that plays the role of organization: a schema
// literally named "organization" opts a deployment into the
// /ldap/organizations/* endpoints and OrgConsistency enforcement.
const organizationSchemaName = "organization"

// entityOps is the subset of *entity.FlatEntity the HTTP handlers depend
// on, so they can be exercised against a fake without a live directory.
type entityOps interface {
	List(ctx context.Context, filter string) (map[string]schema.Entry, error)
	Get(ctx context.Context, idOrDN string) (schema.Entry, error)
	Add(ctx context.Context, id string, attrs schema.Entry) (schema.Entry, []string, error)
	Modify(ctx context.Context, idOrDN string, changes schema.ChangeSet) (bool, []string, error)
	Move(ctx context.Context, idOrDN, targetOrgDN string, moveChangesDN bool) (entity.MoveResult, []string, error)
	Delete(ctx context.Context, idOrDN string) ([]string, error)
	Search(ctx context.Context, filter string, attributes []string) ([]schema.Entry, error)
}

// App owns every subsystem the HTTP surface needs for the process
// lifetime, mirroring the teacher's single App value holding the LDAP
// config, client, and Fiber server together.
type App struct {
	cfg    *config.Config
	client *ldapclient.Client
	hooks  *hooks.Registry

	// entitiesMu guards every field below it, so Reload can hot-swap
	// schema-derived state (spec.md's schemas are file-backed and
	// operator-editable) without a process restart.
	entitiesMu          sync.RWMutex
	entities            map[string]entityOps
	entitySchemas       map[string]*schema.Schema
	entityMoveChangesDN map[string]bool
	orgEntity           string
	orgObjectClasses    []string

	authz       *authz.Authz
	tokenAuth   *authz.TokenAuthenticator
	rateLimiter *RateLimiter

	pluginHost  *pluginhost.Host
	pluginOrder []string

	fiber *fiber.App
}

// NewApp loads every schema, wires the LDAP client, the built-in plugins
// (authz, orgconsistency, trash), and every flat entity kind, then builds
// the Fiber server and registers its routes.
func NewApp(cfg *config.Config) (*App, error) {
	schemas, err := schema.LoadAll(cfg.FlatSchemaPaths)
	if err != nil {
		return nil, err
	}

	registry := hooks.New()

	client := ldapclient.New(ldapclient.Config{
		URL:               cfg.LDAPURL,
		BindDN:            cfg.LDAPBindDN,
		BindPassword:      cfg.LDAPBindPassword,
		Base:              cfg.LDAPBaseDN,
		PoolSize:          cfg.LDAPPoolSize,
		ConnectionTTL:     cfg.LDAPConnectionTTL,
		QueryConcurrency:  cfg.LDAPQueryConcurrency,
		CacheMax:          cfg.LDAPCacheMax,
		CacheTTL:          cfg.LDAPCacheTTL,
		UserMainAttribute: cfg.LDAPUserMainAttribute,
	}, registry)

	host := pluginhost.NewHost()

	authzEnforcer, err := newAuthzEnforcer(cfg, client)
	if err != nil {
		return nil, err
	}

	if err := host.Add(authzEnforcer); err != nil {
		return nil, err
	}

	orgEntity, orgObjectClasses, err := addOrgConsistency(host, schemas, cfg, client)
	if err != nil {
		return nil, err
	}

	var trashEnforcer *trash.Trash
	if cfg.TrashBase != "" {
		trashEnforcer = trash.New(trash.Config{
			TrashBase:    cfg.TrashBase,
			WatchedBases: cfg.TrashWatchedBases,
			AddMetadata:  cfg.TrashAddMetadata,
			AutoCreate:   cfg.TrashAutoCreate,
		}, client)

		if err := host.Add(trashEnforcer); err != nil {
			return nil, err
		}
	}

	if cfg.PluginManifest != "" {
		manifest, err := pluginhost.LoadManifest(cfg.PluginManifest)
		if err != nil {
			return nil, err
		}

		if err := host.ApplyManifest(manifest); err != nil {
			return nil, err
		}
	}

	pluginOrder, err := host.Load(registry)
	if err != nil {
		return nil, err
	}

	registry.Seal()

	if trashEnforcer != nil {
		if err := trashEnforcer.EnsureTrashBranch(context.Background()); err != nil {
			return nil, fmt.Errorf("web: ensure trash branch: %w", err)
		}
	}

	entities, entitySchemas, entityMoveChangesDN := buildEntities(schemas, client, registry)

	var tokenAuth *authz.TokenAuthenticator
	if len(cfg.AuthBearerTokens) > 0 {
		tokenAuth = authz.NewTokenAuthenticator(cfg.AuthBearerTokens)
	}

	a := &App{
		cfg:                 cfg,
		client:              client,
		hooks:               registry,
		entities:            entities,
		entitySchemas:       entitySchemas,
		entityMoveChangesDN: entityMoveChangesDN,
		orgEntity:           orgEntity,
		orgObjectClasses:    orgObjectClasses,
		authz:               authzEnforcer,
		tokenAuth:           tokenAuth,
		rateLimiter:         NewRateLimiter(DefaultRateLimiterConfig()),
		pluginHost:          host,
		pluginOrder:         pluginOrder,
		fiber:               newFiberApp(),
	}

	a.setupRoutes()

	return a, nil
}

func buildEntities(schemas map[string]*schema.Schema, client *ldapclient.Client, registry *hooks.Registry) (map[string]entityOps, map[string]*schema.Schema, map[string]bool) {
	entities := make(map[string]entityOps, len(schemas))
	entitySchemas := make(map[string]*schema.Schema, len(schemas))
	entityMoveChangesDN := make(map[string]bool, len(schemas))

	for _, s := range schemas {
		fe := entity.FromSchema(s, client, registry)
		entities[s.Entity.PluralName] = fe
		entitySchemas[s.Entity.PluralName] = s
		entityMoveChangesDN[s.Entity.PluralName] = s.Entity.MoveChangesDN
	}

	return entities, entitySchemas, entityMoveChangesDN
}

func newAuthzEnforcer(cfg *config.Config, client *ldapclient.Client) (*authz.Authz, error) {
	var matrix authz.Matrix
	if cfg.AuthzPerBranchConfig != "" {
		loaded, err := authz.LoadMatrix(cfg.AuthzPerBranchConfig)
		if err != nil {
			return nil, err
		}

		matrix = *loaded
	}

	store := authzCacheStorage(cfg)
	cache := authz.NewMembershipCache(store, cfg.AuthzCacheTTL)

	var resolveUserDN func(string) string
	if cfg.AuthzGroupBase != "" {
		resolveUserDN = client.NormalizeDN
	}

	return authz.New(&matrix, authz.Config{
		GroupBase:          cfg.AuthzGroupBase,
		MemberAttribute:    cfg.AuthzMemberAttribute,
		GroupMainAttribute: cfg.AuthzGroupMainAttribute,
		ResolveUserDN:      resolveUserDN,
	}, client, cache), nil
}

// authzCacheStorage picks the teacher's bbolt-vs-memory session storage
// idiom for the membership cache instead: persisted across restarts when
// DM_AUTHZ_CACHE_PERSIST is set, in-memory otherwise.
func authzCacheStorage(cfg *config.Config) fiber.Storage {
	if cfg.AuthzCachePersist {
		return bbolt.New(bbolt.Config{
			Database: cfg.AuthzCachePath,
			Bucket:   "authz-membership",
			Reset:    false,
		})
	}

	return memory.New()
}

// orgInfo is the organization schema's routing-relevant shape: its plural
// name, object classes, and the two role-tagged attributes orgconsistency
// needs. Resolving it is separate from registering the plugin so Reload
// can refresh the routing bookkeeping without re-adding an already-loaded
// plugin to the host.
type orgInfo struct {
	pluralName  string
	objectClass []string
	linkAttr    string
	pathAttr    string
}

func resolveOrgInfo(schemas map[string]*schema.Schema) (*orgInfo, error) {
	orgSchema, ok := schemas[organizationSchemaName]
	if !ok {
		return nil, nil
	}

	linkAttr, ok := firstRoleAttribute(schemas, schema.RoleOrganizationLink)
	if !ok {
		return nil, fmt.Errorf("web: schema %q present but no attribute declares role %q", organizationSchemaName, schema.RoleOrganizationLink)
	}

	pathAttr, ok := firstRoleAttribute(schemas, schema.RoleOrganizationPath)
	if !ok {
		return nil, fmt.Errorf("web: schema %q present but no attribute declares role %q", organizationSchemaName, schema.RoleOrganizationPath)
	}

	return &orgInfo{
		pluralName:  orgSchema.Entity.PluralName,
		objectClass: orgSchema.Entity.ObjectClass,
		linkAttr:    linkAttr,
		pathAttr:    pathAttr,
	}, nil
}

// addOrgConsistency wires OrgConsistency when a schema named
// organizationSchemaName is present, deriving its Config from the role
// attributes schemas declare rather than new environment variables (no
// deployment is expected to name its organizationLink/organizationPath
// attributes differently across entity kinds). It returns the organization
// entity's plural name (empty if none) and its object classes.
func addOrgConsistency(host *pluginhost.Host, schemas map[string]*schema.Schema, cfg *config.Config, client *ldapclient.Client) (string, []string, error) {
	info, err := resolveOrgInfo(schemas)
	if err != nil {
		return "", nil, err
	}

	if info == nil {
		return "", nil, nil
	}

	consistency := orgconsistency.New(orgconsistency.Config{
		LinkAttribute:    info.linkAttr,
		PathAttribute:    info.pathAttr,
		OrgObjectClasses: info.objectClass,
		Base:             cfg.LDAPBaseDN,
	}, client)

	if err := host.Add(consistency); err != nil {
		return "", nil, err
	}

	return info.pluralName, info.objectClass, nil
}

func firstRoleAttribute(schemas map[string]*schema.Schema, role schema.Role) (string, bool) {
	for _, s := range schemas {
		if attr, ok := s.RoleAttribute(role); ok {
			return attr, true
		}
	}

	return "", false
}

// newFiberApp mirrors the teacher's createFiberApp: helmet and compress are
// kept since they protect every response regardless of what the session
// and CSRF middleware they shipped alongside used to guard; this core has
// no cookies to protect so those two are dropped instead.
func newFiberApp() *fiber.App {
	f := fiber.New(fiber.Config{
		AppName:      "dirctl/ldapdm",
		ErrorHandler: handle500,
	})

	f.Use(helmet.New())
	f.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	return f
}

func (a *App) setupRoutes() {
	f := a.fiber

	f.Get("/health", a.healthHandler)
	f.Get("/health/ready", a.readinessHandler)
	f.Get("/health/live", a.livenessHandler)

	api := f.Group(a.cfg.APIPrefix, a.requireAuth())

	api.Get("/config", a.configHandler)

	api.Get("/ldap/organizations/top", a.organizationsTopHandler)
	api.Get("/ldap/organizations/:dn/subnodes", a.organizationSubnodesHandler)
	api.Get("/ldap/organizations/:dn", a.organizationGetHandler)

	api.Get("/ldap/bulk-import/:name/template.csv", a.bulkImportTemplateHandler)
	api.Post("/ldap/bulk-import/:name", a.bulkImportHandler)

	api.Get("/ldap/:plural", a.listHandler)
	api.Post("/ldap/:plural", a.createHandler)
	api.Get("/ldap/:plural/:id", a.getHandler)
	api.Put("/ldap/:plural/:id", a.modifyHandler)
	api.Delete("/ldap/:plural/:id", a.deleteHandler)
	api.Post("/ldap/:plural/:id/move", a.moveHandler)

	for _, route := range a.pluginHost.Routes() {
		path := fmt.Sprintf("%s/plugins/%s%s", a.cfg.APIPrefix, route.Plugin, route.Route.Path)
		f.Add(route.Route.Method, path, a.requireAuth(), route.Route.Handler)
	}
}

// Listen begins serving HTTP requests on addr. It blocks until the server
// is shut down or encounters an error.
func (a *App) Listen(_ context.Context, addr string) error {
	return a.fiber.Listen(addr)
}

// Test sends req directly into the Fiber router without binding a socket,
// so tests can exercise the full HTTP surface (routing, auth, every wired
// plugin) against an App built by NewApp.
func (a *App) Test(req *http.Request, msTimeout ...int) (*http.Response, error) {
	return a.fiber.Test(req, msTimeout...)
}

// Shutdown gracefully stops the server and every background goroutine it
// owns within the given context's deadline.
func (a *App) Shutdown(ctx context.Context) error {
	log.Info().Msg("web: stopping rate limiter")
	a.rateLimiter.Stop()

	log.Info().Msg("web: shutting down fiber server")

	if err := a.fiber.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("web: error shutting down fiber server")
	}

	log.Info().Msg("web: closing LDAP connections")

	if err := a.client.Close(); err != nil {
		log.Warn().Err(err).Msg("web: failed to close LDAP pool")
	}

	return nil
}
