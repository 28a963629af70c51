package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oarkflow/squealx"
	"github.com/pressly/goose/v3"

	"github.com/oarkflow/whitebox/pkg/contracts"
	"github.com/oarkflow/whitebox/pkg/models"
	"github.com/oarkflow/whitebox/pkg/storage/migrations"
)

// DatabaseType represents the type of database
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgres"
	SQLite     DatabaseType = "sqlite"
)

// gooseDialect maps a database type onto the dialect name goose expects.
func (t DatabaseType) gooseDialect() string {
	if t == SQLite {
		return "sqlite3"
	}
	return string(t)
}

// DatabaseStorage is the SQL credential store.
type DatabaseStorage struct {
	db     *squealx.DB
	dbType DatabaseType
}

// NewDatabaseStorage wraps db and brings its schema up to date.
func NewDatabaseStorage(ctx context.Context, db *squealx.DB) (*DatabaseStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	dbType := DetectDatabaseType(db.DriverName(), "")
	if dbType == "" {
		return nil, fmt.Errorf("unsupported database driver: %s", db.DriverName())
	}
	storage := &DatabaseStorage{
		db:     db,
		dbType: dbType,
	}
	if err := storage.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return storage, nil
}

func (d *DatabaseStorage) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(d.dbType.gooseDialect()); err != nil {
		return err
	}
	return goose.UpContext(ctx, d.db.DB(), ".")
}

func (d *DatabaseStorage) Close() error {
	return d.db.Close()
}

type userRow struct {
	ID                    string `db:"id"`
	Username              string `db:"username"`
	PasswordHash          string `db:"password_hash"`
	SecondFactorSecret    any    `db:"second_factor_secret"`
	SecondFactorConfirmed any    `db:"second_factor_confirmed"`
	CreatedAt             int64  `db:"created_at"`
}

func (d *DatabaseStorage) toUser(row userRow) (*models.User, error) {
	user := &models.User{
		ID:                    row.ID,
		Username:              row.Username,
		PasswordHash:          row.PasswordHash,
		SecondFactorConfirmed: d.convertBoolFromDB(row.SecondFactorConfirmed),
		CreatedAt:             time.Unix(row.CreatedAt, 0),
	}
	encoded := convertStringFromDB(row.SecondFactorSecret)
	if encoded != "" {
		secret, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("corrupt second factor secret for user %s: %w", row.ID, err)
		}
		user.SecondFactorSecret = secret
	}
	return user, nil
}

const userColumns = `id, username, password_hash, second_factor_secret, second_factor_confirmed, created_at`

func (d *DatabaseStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return d.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = :username`, map[string]any{
		"username": username,
	})
}

func (d *DatabaseStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return d.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = :id`, map[string]any{
		"id": id,
	})
}

func (d *DatabaseStorage) getUser(ctx context.Context, query string, params map[string]any) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var row userRow
	if err := d.db.NamedGet(&row, query, params); err != nil {
		return nil, notFound(err)
	}
	return d.toUser(row)
}

func (d *DatabaseStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := `SELECT id, user_id, second_factor_passed, expires_at FROM sessions WHERE id = :id`
	var row struct {
		ID                 string `db:"id"`
		UserID             string `db:"user_id"`
		SecondFactorPassed any    `db:"second_factor_passed"`
		ExpiresAt          int64  `db:"expires_at"`
	}
	if err := d.db.NamedGet(&row, query, map[string]any{"id": id}); err != nil {
		return nil, notFound(err)
	}
	return &models.Session{
		ID:                 row.ID,
		UserID:             row.UserID,
		SecondFactorPassed: d.convertBoolFromDB(row.SecondFactorPassed),
		ExpiresAt:          time.Unix(row.ExpiresAt, 0),
	}, nil
}

func (d *DatabaseStorage) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := `SELECT user_id, angle, color1, color2 FROM user_profile_pictures WHERE user_id = :user_id`
	var row struct {
		UserID string `db:"user_id"`
		Angle  int    `db:"angle"`
		Color1 string `db:"color1"`
		Color2 string `db:"color2"`
	}
	if err := d.db.NamedGet(&row, query, map[string]any{"user_id": userID}); err != nil {
		return nil, notFound(err)
	}
	return &models.Profile{UserID: row.UserID, Angle: row.Angle, Color1: row.Color1, Color2: row.Color2}, nil
}

// Atomic runs fn inside a database transaction. The transaction commits only
// when fn returns nil.
func (d *DatabaseStorage) Atomic(ctx context.Context, fn func(tx contracts.Tx) error) (err error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(&databaseTx{tx: tx, storage: d}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type databaseTx struct {
	tx      *squealx.Tx
	storage *DatabaseStorage
}

func (t *databaseTx) exec(ctx context.Context, query string, params map[string]any) (sql.Result, error) {
	result, err := t.tx.NamedExecContext(ctx, query, params)
	if err != nil {
		return nil, conflict(err)
	}
	return result, nil
}

func (t *databaseTx) InsertUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, username, password_hash, second_factor_secret, second_factor_confirmed, created_at)
		VALUES (:id, :username, :password_hash, :second_factor_secret, :second_factor_confirmed, :created_at)`
	var secret any
	if len(user.SecondFactorSecret) > 0 {
		secret = hex.EncodeToString(user.SecondFactorSecret)
	}
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := t.exec(ctx, query, map[string]any{
		"id":                      user.ID,
		"username":                user.Username,
		"password_hash":           user.PasswordHash,
		"second_factor_secret":    secret,
		"second_factor_confirmed": t.storage.convertBoolForDB(user.SecondFactorConfirmed),
		"created_at":              createdAt.Unix(),
	})
	return err
}

func (t *databaseTx) UpdateUser(ctx context.Context, id string, update models.UserUpdate) error {
	sets := make([]string, 0, 2)
	params := map[string]any{"id": id}
	if update.SecondFactorSecret != nil {
		sets = append(sets, "second_factor_secret = :second_factor_secret")
		params["second_factor_secret"] = hex.EncodeToString(update.SecondFactorSecret)
	}
	if update.SecondFactorConfirmed != nil {
		sets = append(sets, "second_factor_confirmed = :second_factor_confirmed")
		params["second_factor_confirmed"] = t.storage.convertBoolForDB(*update.SecondFactorConfirmed)
	}
	if len(sets) == 0 {
		return nil
	}
	result, err := t.exec(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = :id`, params)
	if err != nil {
		return err
	}
	return t.requireAffected(result)
}

func (t *databaseTx) InsertProfile(ctx context.Context, profile *models.Profile) error {
	query := `INSERT INTO user_profile_pictures (user_id, angle, color1, color2) VALUES (:user_id, :angle, :color1, :color2)`
	_, err := t.exec(ctx, query, profileParams(profile))
	return err
}

func (t *databaseTx) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	query := `UPDATE user_profile_pictures SET angle = :angle, color1 = :color1, color2 = :color2 WHERE user_id = :user_id`
	result, err := t.exec(ctx, query, profileParams(profile))
	if err != nil {
		return err
	}
	return t.requireAffected(result)
}

func (t *databaseTx) InsertSession(ctx context.Context, session *models.Session) error {
	query := `INSERT INTO sessions (id, user_id, second_factor_passed, expires_at) VALUES (:id, :user_id, :second_factor_passed, :expires_at)`
	_, err := t.exec(ctx, query, map[string]any{
		"id":                   session.ID,
		"user_id":              session.UserID,
		"second_factor_passed": t.storage.convertBoolForDB(session.SecondFactorPassed),
		"expires_at":           session.ExpiresAt.Unix(),
	})
	return err
}

func (t *databaseTx) DeleteSession(ctx context.Context, id string) (bool, error) {
	result, err := t.exec(ctx, `DELETE FROM sessions WHERE id = :id`, map[string]any{"id": id})
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func profileParams(profile *models.Profile) map[string]any {
	return map[string]any{
		"user_id": profile.UserID,
		"angle":   profile.Angle,
		"color1":  profile.Color1,
		"color2":  profile.Color2,
	}
}

// requireAffected reports ErrNotFound when an update matched nothing. MySQL
// counts changed rows rather than matched rows, so it is skipped there.
func (t *databaseTx) requireAffected(result sql.Result) error {
	if t.storage.dbType == MySQL {
		return nil
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return contracts.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.ErrNotFound
	}
	return err
}

// conflict maps driver specific unique violations onto contracts.ErrConflict.
func conflict(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"),
		strings.Contains(msg, "duplicate key"),
		strings.Contains(msg, "duplicate entry"):
		return fmt.Errorf("%w: %v", contracts.ErrConflict, err)
	}
	return err
}

// convertBoolForDB converts a Go bool to the value the database expects.
func (d *DatabaseStorage) convertBoolForDB(value bool) any {
	switch d.dbType {
	case MySQL, SQLite:
		if value {
			return 1
		}
		return 0
	default:
		return value
	}
}

// convertBoolFromDB converts a database boolean value to a Go bool.
func (d *DatabaseStorage) convertBoolFromDB(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case []byte:
		return string(v) == "1" || strings.EqualFold(string(v), "true")
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	default:
		return false
	}
}

func convertStringFromDB(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// DetectDatabaseType detects database type from driver name or connection string
func DetectDatabaseType(driverName string, dataSource string) DatabaseType {
	driverName = strings.ToLower(driverName)
	dataSource = strings.ToLower(dataSource)

	switch {
	case strings.Contains(driverName, "mysql") || strings.Contains(dataSource, "mysql"):
		return MySQL
	case strings.Contains(driverName, "postgres") || strings.Contains(driverName, "pgx") ||
		strings.Contains(dataSource, "postgres"):
		return PostgreSQL
	case strings.Contains(driverName, "sqlite") || strings.Contains(dataSource, ".db"):
		return SQLite
	default:
		return ""
	}
}
