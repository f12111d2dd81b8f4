package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kubex/caseload-identity/caseload"
)

var ErrUnknownField = errors.New("mysql: unknown collection field")

const userColumns = "`user`, name, email, role, title, created_at, migrated_from, migrated_at"

func scanUser(row interface{ Scan(...any) error }) (*caseload.User, error) {
	u := &caseload.User{}
	var role string
	if err := row.Scan(&u.Key, &u.Name, &u.Email, &role, &u.Title, &u.CreatedAt, &u.MigratedFrom, &u.MigratedAt); err != nil {
		return nil, err
	}
	u.Role = caseload.Role(role)
	return u, nil
}

func (p *Provider) GetUser(ctx context.Context, key string) (*caseload.User, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE `user` = ?", key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, caseload.ErrNotFound
	}
	return u, err
}

func (p *Provider) PutUserIfAbsent(ctx context.Context, user caseload.User) (*caseload.User, bool, error) {
	db, err := p.conn()
	if err != nil {
		return nil, false, err
	}
	_, err = db.ExecContext(ctx, "INSERT INTO users (`user`, name, email, email_fold, role, title, created_at, migrated_from, migrated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		user.Key, user.Name, user.Email, user.EmailFold(), string(user.Role), user.Title, user.CreatedAt, user.MigratedFrom, user.MigratedAt)
	if isDuplicateConflict(err) {
		existing, getErr := p.GetUser(ctx, user.Key)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &user, true, nil
}

func (p *Provider) DeleteUser(ctx context.Context, key string) error {
	db, err := p.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "DELETE FROM users WHERE `user` = ?", key)
	return err
}

func (p *Provider) FindUsersByEmail(ctx context.Context, email string) ([]caseload.User, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE email_fold = ? ORDER BY `user`", caseload.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []caseload.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (p *Provider) FindReferencing(ctx context.Context, ref caseload.Reference, key string) ([]string, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	if !knownField(ref.Collection, ref.Field) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, ref)
	}
	rows, err := db.QueryContext(ctx, "SELECT id FROM `"+ref.Collection+"` WHERE `"+ref.Field+"` = ? ORDER BY id", key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Provider) SetReference(ctx context.Context, ref caseload.Reference, recordID, oldKey, newKey string) (bool, error) {
	db, err := p.conn()
	if err != nil {
		return false, err
	}
	if !knownField(ref.Collection, ref.Field) {
		return false, fmt.Errorf("%w: %s", ErrUnknownField, ref)
	}
	res, err := db.ExecContext(ctx, "UPDATE `"+ref.Collection+"` SET `"+ref.Field+"` = ? WHERE id = ? AND `"+ref.Field+"` = ?", newKey, recordID, oldKey)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}
	var exists int
	err = db.QueryRowContext(ctx, "SELECT 1 FROM `"+ref.Collection+"` WHERE id = ?", recordID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, caseload.ErrNotFound
	}
	return false, err
}

// StoreRecord replaces the record; reference columns absent from Fields become NULL.
func (p *Provider) StoreRecord(ctx context.Context, record caseload.Record) error {
	db, err := p.conn()
	if err != nil {
		return err
	}
	fields := caseload.ReferenceFields()[record.Collection]
	if len(fields) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownField, record.Collection)
	}
	for name := range record.Fields {
		if !knownField(record.Collection, name) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, record.Collection, name)
		}
	}

	cols := []string{"`id`"}
	holders := []string{"?"}
	updates := make([]string, 0, len(fields))
	args := []any{record.ID}
	for _, field := range fields {
		value, ok := record.Fields[field]
		cols = append(cols, "`"+field+"`")
		holders = append(holders, "?")
		updates = append(updates, "`"+field+"` = VALUES(`"+field+"`)")
		args = append(args, sql.NullString{String: value, Valid: ok})
	}
	_, err = db.ExecContext(ctx, "INSERT INTO `"+record.Collection+"` ("+strings.Join(cols, ", ")+") VALUES ("+
		strings.Join(holders, ", ")+") ON DUPLICATE KEY UPDATE "+strings.Join(updates, ", "), args...)
	return err
}

func (p *Provider) RetrieveRecord(ctx context.Context, collection, id string) (*caseload.Record, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	fields := caseload.ReferenceFields()[collection]
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, collection)
	}
	cols := make([]string, len(fields))
	values := make([]sql.NullString, len(fields))
	dest := make([]any, len(fields))
	for i, field := range fields {
		cols[i] = "`" + field + "`"
		dest[i] = &values[i]
	}
	err = db.QueryRowContext(ctx, "SELECT "+strings.Join(cols, ", ")+" FROM `"+collection+"` WHERE id = ?", id).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, caseload.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	rec := &caseload.Record{Collection: collection, ID: id, Fields: map[string]string{}}
	for i, field := range fields {
		if values[i].Valid {
			rec.Fields[field] = values[i].String
		}
	}
	return rec, nil
}
