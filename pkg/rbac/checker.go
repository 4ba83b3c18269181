package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/platinummonkey/orgaccess/pkg/menus"
	"github.com/platinummonkey/orgaccess/pkg/permcache"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var checkerTracer = otel.Tracer("orgaccess/rbac/checker")

// loadTimeout bounds a shared resolution, which outlives the request that started it
const loadTimeout = 10 * time.Second

// OrgResolver resolves the organization a permission question is asked in.
// *orgs.Store satisfies it.
type OrgResolver interface {
	ResolveOrg(ctx context.Context, userID int64, orgID *int64) (int64, bool, error)
	IsMember(ctx context.Context, userID, orgID int64) (bool, error)
}

// MenuLister lists the enabled menu catalog. *menus.Store satisfies it.
type MenuLister interface {
	ListEnabled(ctx context.Context) ([]menus.Menu, error)
}

// DecisionRecorder observes permission decisions
type DecisionRecorder interface {
	RecordDecision(source string, allowed bool)
	RecordResolution(cached bool, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordDecision(string, bool) {}
func (noopRecorder) RecordResolution(bool, time.Duration) {}

// PermissionChecker answers which menus a user may use within an organization
type PermissionChecker struct {
	db       *sql.DB
	orgs     OrgResolver
	menus    MenuLister
	cache    permcache.Cache
	log      logrus.FieldLogger
	recorder DecisionRecorder
	group    singleflight.Group
}

// NewPermissionChecker creates a new permission checker. A nil cache disables
// caching of resolved permission sets.
func NewPermissionChecker(conn *sql.DB, orgs OrgResolver, menuLister MenuLister, cache permcache.Cache, log logrus.FieldLogger) *PermissionChecker {
	if cache == nil {
		cache = permcache.Noop{}
	}
	return &PermissionChecker{
		db:       conn,
		orgs:     orgs,
		menus:    menuLister,
		cache:    cache,
		log:      log,
		recorder: noopRecorder{},
	}
}

// SetRecorder installs a decision recorder, typically the service metrics
func (c *PermissionChecker) SetRecorder(r DecisionRecorder) {
	if r == nil {
		r = noopRecorder{}
	}
	c.recorder = r
}

// scope returns the organization to evaluate in. ok is false when the user has no
// primary organization or is not a member of the requested one.
func (c *PermissionChecker) scope(ctx context.Context, userID int64, orgID *int64) (int64, bool, error) {
	resolved, found, err := c.orgs.ResolveOrg(ctx, userID, orgID)
	if err != nil || !found {
		return 0, false, err
	}
	if orgID == nil {
		return resolved, true, nil
	}

	member, err := c.orgs.IsMember(ctx, userID, resolved)
	if err != nil {
		return 0, false, err
	}
	return resolved, member, nil
}

// IsAdminInOrg reports whether the user holds an enabled admin role in the organization
func (c *PermissionChecker) IsAdminInOrg(ctx context.Context, userID, orgID int64) (bool, error) {
	ok, err := db.Exists(ctx, c.db, `
		SELECT EXISTS(
			SELECT 1 FROM user_org_roles uor
			JOIN roles r ON r.id = uor.role_id
			WHERE uor.user_id = $1 AND uor.org_id = $2 AND r.code = $3 AND NOT r.is_disabled
		)`, userID, orgID, AdminRoleCode)
	if err != nil {
		return false, fmt.Errorf("failed to check admin role: %w", err)
	}
	return ok, nil
}

// ResolvePermissions decides every enabled menu for the user. A nil orgID means the
// primary organization. The result is empty when no organization applies.
func (c *PermissionChecker) ResolvePermissions(ctx context.Context, userID int64, orgID *int64) ([]MenuPermission, error) {
	ctx, span := checkerTracer.Start(ctx, "ResolvePermissions",
		trace.WithAttributes(attribute.Int64("user_id", userID)),
	)
	defer span.End()

	perms, err := c.resolvePermissions(ctx, span, userID, orgID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return perms, nil
}

func (c *PermissionChecker) resolvePermissions(ctx context.Context, span trace.Span, userID int64, orgID *int64) ([]MenuPermission, error) {
	start := time.Now()

	resolved, ok, err := c.scope(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []MenuPermission{}, nil
	}
	span.SetAttributes(attribute.Int64("org_id", resolved))

	key := fmt.Sprintf("perms:%d:%d", userID, resolved)
	if perms, hit := c.cached(ctx, key); hit {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		c.recorder.RecordResolution(true, time.Since(start))
		return perms, nil
	}

	// entries loaded before an Invalidate must not be stored after it, and callers
	// arriving after one must not share a load that started before it
	gen, genErr := c.cache.Generation(ctx)
	if genErr != nil {
		c.log.WithError(genErr).Warn("failed to read permission cache generation")
	}

	ch := c.group.DoChan(fmt.Sprintf("%s@%d", key, gen), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		perms, err := c.load(loadCtx, userID, resolved)
		if err != nil {
			return nil, err
		}
		if genErr == nil {
			c.store(loadCtx, gen, key, perms)
		}
		return perms, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	c.recorder.RecordResolution(false, time.Since(start))
	shared := res.Val.([]MenuPermission)
	out := make([]MenuPermission, len(shared))
	copy(out, shared)
	return out, nil
}

func (c *PermissionChecker) cached(ctx context.Context, key string) ([]MenuPermission, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, permcache.ErrCacheMiss) {
			c.log.WithError(err).Warn("failed to read permission cache")
		}
		return nil, false
	}

	var perms []MenuPermission
	if err := json.Unmarshal(data, &perms); err != nil {
		c.log.WithError(err).Warn("discarding malformed cached permissions")
		return nil, false
	}
	return perms, true
}

func (c *PermissionChecker) store(ctx context.Context, gen int64, key string, perms []MenuPermission) {
	data, err := json.Marshal(perms)
	if err != nil {
		c.log.WithError(err).Warn("failed to encode permissions for cache")
		return
	}
	if err := c.cache.Set(ctx, gen, key, data); err != nil {
		c.log.WithError(err).Warn("failed to write permission cache")
	}
}

// load reads the rule inputs for one (user, organization) pair and decides every
// enabled menu
func (c *PermissionChecker) load(ctx context.Context, userID, orgID int64) ([]MenuPermission, error) {
	admin, err := c.IsAdminInOrg(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	var overrides map[int64]PermissionType
	var granted map[int64]bool
	if !admin {
		if overrides, err = c.userOverrides(ctx, userID); err != nil {
			return nil, err
		}
		if granted, err = c.roleMenus(ctx, userID, orgID); err != nil {
			return nil, err
		}
	}

	enabled, err := c.menus.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	perms := make([]MenuPermission, 0, len(enabled))
	for _, m := range enabled {
		allowed, source := decide(admin, overrides[m.ID], granted[m.ID])
		perms = append(perms, MenuPermission{Menu: m, HasPermission: allowed, PermissionSource: source})
	}
	return perms, nil
}

// decide applies the precedence admin, deny, grant, role, none for one menu
func decide(admin bool, override PermissionType, roleGranted bool) (bool, Source) {
	switch {
	case admin:
		return true, SourceAdmin
	case override == PermissionDeny:
		return false, SourceDeny
	case override == PermissionGrant:
		return true, SourceUser
	case roleGranted:
		return true, SourceRole
	default:
		return false, SourceNone
	}
}

func (c *PermissionChecker) userOverrides(ctx context.Context, userID int64) (map[int64]PermissionType, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT menu_id, permission_type FROM user_menu_permissions WHERE user_id = $1`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu overrides: %w", err)
	}
	defer rows.Close()

	overrides := make(map[int64]PermissionType)
	for rows.Next() {
		var menuID int64
		var pt string
		if err := rows.Scan(&menuID, &pt); err != nil {
			return nil, fmt.Errorf("failed to scan menu override: %w", err)
		}
		overrides[menuID] = PermissionType(pt)
	}
	return overrides, rows.Err()
}

func (c *PermissionChecker) roleMenus(ctx context.Context, userID, orgID int64) (map[int64]bool, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT DISTINCT rm.menu_id
		FROM role_menus rm
		JOIN user_org_roles uor ON uor.role_id = rm.role_id
		JOIN roles r ON r.id = rm.role_id
		WHERE uor.user_id = $1 AND uor.org_id = $2 AND NOT r.is_disabled
	`, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role menus: %w", err)
	}
	defer rows.Close()

	granted := make(map[int64]bool)
	for rows.Next() {
		var menuID int64
		if err := rows.Scan(&menuID); err != nil {
			return nil, fmt.Errorf("failed to scan role menu: %w", err)
		}
		granted[menuID] = true
	}
	return granted, rows.Err()
}

// ResolveTree returns the permitted menus as a tree. Every node is decided on its
// own, so a permitted child of an unpermitted parent is promoted to a root.
func (c *PermissionChecker) ResolveTree(ctx context.Context, userID int64, orgID *int64) ([]*menus.TreeNode, error) {
	perms, err := c.ResolvePermissions(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	permitted := make([]menus.Menu, 0, len(perms))
	for _, p := range perms {
		if p.HasPermission {
			permitted = append(permitted, p.Menu)
		}
	}
	return menus.BuildTree(permitted), nil
}

// CheckPermission decides a single menu without resolving the whole catalog.
// Disabled and unknown menus are never allowed.
func (c *PermissionChecker) CheckPermission(ctx context.Context, userID int64, orgID *int64, menuID int64) (Decision, error) {
	ctx, span := checkerTracer.Start(ctx, "CheckPermission",
		trace.WithAttributes(
			attribute.Int64("user_id", userID),
			attribute.Int64("menu_id", menuID),
		),
	)
	defer span.End()

	decision, err := c.checkPermission(ctx, userID, orgID, menuID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Decision{}, err
	}

	span.SetAttributes(
		attribute.Bool("allowed", decision.Allowed),
		attribute.String("source", string(decision.Source)),
	)
	c.recorder.RecordDecision(string(decision.Source), decision.Allowed)
	return decision, nil
}

func (c *PermissionChecker) checkPermission(ctx context.Context, userID int64, orgID *int64, menuID int64) (Decision, error) {
	decision := Decision{UserID: userID, MenuID: menuID, Source: SourceNone}

	resolved, ok, err := c.scope(ctx, userID, orgID)
	if err != nil || !ok {
		return decision, err
	}
	decision.OrgID = resolved

	enabled, err := db.Exists(ctx, c.db,
		`SELECT EXISTS(SELECT 1 FROM menus WHERE id = $1 AND NOT is_disabled)`, menuID,
	)
	if err != nil {
		return decision, fmt.Errorf("failed to check menu: %w", err)
	}
	if !enabled {
		return decision, nil
	}

	admin, err := c.IsAdminInOrg(ctx, userID, resolved)
	if err != nil {
		return decision, err
	}

	var override PermissionType
	roleGranted := false
	if !admin {
		var pt sql.NullString
		err := c.db.QueryRowContext(ctx,
			`SELECT permission_type FROM user_menu_permissions WHERE user_id = $1 AND menu_id = $2`,
			userID, menuID,
		).Scan(&pt)
		if err != nil && err != sql.ErrNoRows {
			return decision, fmt.Errorf("failed to get menu override: %w", err)
		}
		override = PermissionType(pt.String)

		if override == "" {
			roleGranted, err = db.Exists(ctx, c.db, `
				SELECT EXISTS(
					SELECT 1 FROM role_menus rm
					JOIN user_org_roles uor ON uor.role_id = rm.role_id
					JOIN roles r ON r.id = rm.role_id
					WHERE uor.user_id = $1 AND uor.org_id = $2 AND rm.menu_id = $3 AND NOT r.is_disabled
				)`, userID, resolved, menuID)
			if err != nil {
				return decision, fmt.Errorf("failed to check role menus: %w", err)
			}
		}
	}

	decision.Allowed, decision.Source = decide(admin, override, roleGranted)
	return decision, nil
}
