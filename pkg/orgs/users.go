package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const (
	scopeSingle = `WITH scope AS (SELECT $1::bigint AS id)`
	// UNION rather than UNION ALL so a corrupt parent loop terminates
	scopeDescendants = `WITH RECURSIVE scope AS (
		SELECT id FROM organizations WHERE id = $1
		UNION
		SELECT o.id FROM organizations o JOIN scope s ON o.parent_id = s.id
	)`
)

// ListUsers returns a page of the organization's members with the role codes they
// hold in scope. With IncludeDescendants the scope covers every organization below
// orgID as well.
func (s *Store) ListUsers(ctx context.Context, orgID int64, opts ListUsersOptions) (*UserPage, error) {
	opts.normalize()

	if err := requireOrg(ctx, s.db, orgID); err != nil {
		return nil, err
	}

	fields := s.schema.Fields()
	scope := scopeSingle
	if opts.IncludeDescendants {
		scope = scopeDescendants
	}

	args := []any{orgID}
	conditions := []string{
		`EXISTS (SELECT 1 FROM user_organizations uo WHERE uo.user_id = u.id AND uo.org_id IN (SELECT id FROM scope))`,
	}

	if opts.Search != "" {
		args = append(args, "%"+escapeLike(opts.Search)+"%")
		n := len(args)
		searchable := []string{"u.username", "u.email"}
		if fields.RealName {
			searchable = append(searchable, "u.real_name")
		}
		var parts []string
		for _, col := range searchable {
			parts = append(parts, fmt.Sprintf("%s ILIKE $%d", col, n))
		}
		conditions = append(conditions, "("+strings.Join(parts, " OR ")+")")
	}

	if opts.RoleCode != "" {
		args = append(args, opts.RoleCode)
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM user_org_roles uor JOIN roles r ON r.id = uor.role_id
			WHERE uor.user_id = u.id AND uor.org_id IN (SELECT id FROM scope) AND r.code = $%d
		)`, len(args)))
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf(`%s SELECT COUNT(*) FROM users u WHERE %s`, scope, where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count organization users: %w", err)
	}

	columns := []string{"u.id", "u.username", "u.email"}
	for _, col := range fields.columns() {
		columns = append(columns, "u."+col)
	}
	columns = append(columns,
		`EXISTS (SELECT 1 FROM user_organizations p WHERE p.user_id = u.id AND p.org_id IN (SELECT id FROM scope) AND p.is_primary) AS is_primary`,
		`ARRAY(
			SELECT DISTINCT r.code FROM user_org_roles uor JOIN roles r ON r.id = uor.role_id
			WHERE uor.user_id = u.id AND uor.org_id IN (SELECT id FROM scope)
			ORDER BY r.code
		) AS role_codes`,
	)

	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)
	listQuery := fmt.Sprintf(`%s SELECT %s FROM users u WHERE %s ORDER BY u.id ASC LIMIT $%d OFFSET $%d`,
		scope, strings.Join(columns, ", "), where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization users: %w", err)
	}
	defer rows.Close()

	users := []OrgUser{}
	for rows.Next() {
		user, err := scanOrgUser(rows, fields)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organization users: %w", err)
	}

	return &UserPage{Users: users, Total: total, Page: opts.Page, Limit: opts.Limit}, nil
}

func scanOrgUser(rows *sql.Rows, fields UserFields) (OrgUser, error) {
	var user OrgUser
	var email sql.NullString
	var realName, phone, avatar, status sql.NullString

	dest := []any{&user.ID, &user.Username, &email}
	if fields.RealName {
		dest = append(dest, &realName)
	}
	if fields.Phone {
		dest = append(dest, &phone)
	}
	if fields.Avatar {
		dest = append(dest, &avatar)
	}
	if fields.Status {
		dest = append(dest, &status)
	}
	dest = append(dest, &user.IsPrimary, pq.Array(&user.RoleCodes))

	if err := rows.Scan(dest...); err != nil {
		return OrgUser{}, fmt.Errorf("failed to scan organization user: %w", err)
	}

	user.Email = email.String
	user.RealName = realName.String
	user.Phone = phone.String
	user.Avatar = avatar.String
	user.Status = status.String
	if user.RoleCodes == nil {
		user.RoleCodes = []string{}
	}
	return user, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
