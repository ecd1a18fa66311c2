package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/NikhilTirunagiri/petal-v1/store"
)

func (d *DB) CreateSession(ctx context.Context, create *store.Session) (*store.Session, error) {
	stmt := `
		INSERT INTO session (uid, user_id, name, icon, description, created_ts, updated_ts)
		VALUES (` + placeholders(7) + `)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.UserID,
		create.Name,
		create.Icon,
		create.Description,
		create.CreatedTs,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	create.UpdatedTs = create.CreatedTs
	return create, nil
}

func (d *DB) ListSessions(ctx context.Context, find *store.FindSession) ([]*store.Session, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}

	query := `
		SELECT id, uid, user_id, name, icon, description, created_ts, updated_ts
		FROM session
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY updated_ts DESC, id DESC
	`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET " + placeholder(len(args)+1)
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	defer rows.Close()

	list := []*store.Session{}
	for rows.Next() {
		var session store.Session
		if err := rows.Scan(
			&session.ID,
			&session.UID,
			&session.UserID,
			&session.Name,
			&session.Icon,
			&session.Description,
			&session.CreatedTs,
			&session.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan session")
		}
		list = append(list, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) GetSession(ctx context.Context, find *store.FindSession) (*store.Session, error) {
	list, err := d.ListSessions(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) UpdateSession(ctx context.Context, update *store.UpdateSession) (*store.Session, error) {
	set, args := []string{}, []any{}

	if update.Name != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *update.Name)
	}
	if update.Icon != nil {
		set, args = append(set, "icon = "+placeholder(len(args)+1)), append(args, *update.Icon)
	}
	if update.Description != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *update.Description)
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, update.UpdatedTs)

	stmt := `
		UPDATE session
		SET ` + strings.Join(set, ", ") + `
		WHERE uid = ` + placeholder(len(args)+1) + `
		RETURNING id, uid, user_id, name, icon, description, created_ts, updated_ts
	`
	args = append(args, update.UID)

	var session store.Session
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&session.ID,
		&session.UID,
		&session.UserID,
		&session.Name,
		&session.Icon,
		&session.Description,
		&session.CreatedTs,
		&session.UpdatedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Errorf("session %s not found", update.UID)
		}
		return nil, errors.Wrap(err, "failed to update session")
	}
	return &session, nil
}

func (d *DB) DeleteSession(ctx context.Context, delete *store.DeleteSession) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM session WHERE uid = "+placeholder(1), delete.UID)
	if err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Errorf("session %s not found", delete.UID)
	}
	return nil
}

func (d *DB) CountSessionMemories(ctx context.Context, sessionUID string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memory WHERE session_uid = "+placeholder(1), sessionUID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count session memories")
	}
	return count, nil
}
