package web

import (
	"github.com/dirctl/ldapdm/internal/authz"
	"github.com/dirctl/ldapdm/internal/schema"
)

// OrgEntity returns the plural name of the schema playing the organization
// role, or "" if none is configured.
func (a *App) OrgEntity() string {
	a.entitiesMu.RLock()
	defer a.entitiesMu.RUnlock()

	return a.orgEntity
}

// OrgObjectClasses returns the object classes the organization schema
// declares.
func (a *App) OrgObjectClasses() []string {
	a.entitiesMu.RLock()
	defer a.entitiesMu.RUnlock()

	return a.orgObjectClasses
}

// WatchPaths lists every file a hot-reload watcher should track: the flat
// schema documents and, when configured, the authz per-branch matrix.
func (a *App) WatchPaths() []string {
	paths := make([]string, 0, len(a.cfg.FlatSchemaPaths)+1)
	paths = append(paths, a.cfg.FlatSchemaPaths...)

	if a.cfg.AuthzPerBranchConfig != "" {
		paths = append(paths, a.cfg.AuthzPerBranchConfig)
	}

	return paths
}

// Reload re-reads the flat schema documents and the authz matrix from
// disk and swaps them in, so an operator editing either file on disk takes
// effect without a process restart (SPEC_FULL.md §11, internal/config's
// fsnotify-backed Watcher drives this).
func (a *App) Reload() error {
	schemas, err := schema.LoadAll(a.cfg.FlatSchemaPaths)
	if err != nil {
		return err
	}

	info, err := resolveOrgInfo(schemas)
	if err != nil {
		return err
	}

	entities, entitySchemas, entityMoveChangesDN := buildEntities(schemas, a.client, a.hooks)

	a.entitiesMu.Lock()
	a.entities = entities
	a.entitySchemas = entitySchemas
	a.entityMoveChangesDN = entityMoveChangesDN

	if info != nil {
		a.orgEntity = info.pluralName
		a.orgObjectClasses = info.objectClass
	} else {
		a.orgEntity = ""
		a.orgObjectClasses = nil
	}

	a.entitiesMu.Unlock()

	if a.cfg.AuthzPerBranchConfig == "" {
		return nil
	}

	matrix, err := authz.LoadMatrix(a.cfg.AuthzPerBranchConfig)
	if err != nil {
		return err
	}

	a.authz.SetMatrix(matrix)

	return nil
}
