package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tube-curator/internal/models"
)

type postgresRepository struct {
	pool *pgxpool.Pool
	cfg  PostgresConfig
}

// NewPostgresRepository opens a Postgres-backed repository and applies the
// schema migrations.
func NewPostgresRepository(dsn string, opts ...Option) (Repository, error) {
	cfg := newPostgresConfig(dsn, opts...)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &postgresRepository{pool: pool, cfg: cfg}, nil
}

func (r *postgresRepository) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.cfg.OperationTimeout)
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *postgresRepository) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const userColumns = "id, email, display_name, roles, password_hash, created_at, updated_at, last_login_at"

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.Roles, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt)
	return user, err
}

func (r *postgresRepository) CreateUser(params CreateUserParams) (models.User, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(params.Email))
	if normalizedEmail == "" {
		return models.User{}, errors.New("email is required")
	}
	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		return models.User{}, errors.New("displayName is required")
	}
	if params.Password == "" {
		return models.User{}, errors.New("password is required")
	}

	id, err := generateID()
	if err != nil {
		return models.User{}, err
	}
	hashed, err := hashPassword(params.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := r.opContext()
	defer cancel()

	now := time.Now().UTC()
	user := models.User{
		ID:           id,
		Email:        normalizedEmail,
		DisplayName:  displayName,
		Roles:        normalizeRoles(params.Roles),
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO users (id, email, display_name, roles, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.DisplayName, user.Roles, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailInUse
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) AuthenticateUser(email, password string) (models.User, error) {
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}
	user, ok := r.FindUserByEmail(email)
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *postgresRepository) ListUsers() []models.User {
	ctx, cancel := r.opContext()
	defer cancel()

	rows, err := r.pool.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil
		}
		users = append(users, user)
	}
	return users
}

func (r *postgresRepository) GetUser(id string) (models.User, bool) {
	ctx, cancel := r.opContext()
	defer cancel()

	user, err := scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return models.User{}, false
	}
	return user, true
}

func (r *postgresRepository) FindUserByEmail(email string) (models.User, bool) {
	ctx, cancel := r.opContext()
	defer cancel()

	normalized := strings.TrimSpace(strings.ToLower(email))
	user, err := scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", normalized))
	if err != nil {
		return models.User{}, false
	}
	return user, true
}

func (r *postgresRepository) UpdateUser(id string, update UserUpdate) (models.User, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("begin update user: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	user, err := scanUser(tx.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("load user: %w", err)
	}

	if update.Email != nil {
		normalized := strings.TrimSpace(strings.ToLower(*update.Email))
		if normalized == "" {
			return models.User{}, errors.New("email is required")
		}
		user.Email = normalized
	}
	if update.DisplayName != nil {
		trimmed := strings.TrimSpace(*update.DisplayName)
		if trimmed == "" {
			return models.User{}, errors.New("displayName is required")
		}
		user.DisplayName = trimmed
	}
	if update.Roles != nil {
		user.Roles = normalizeRoles(*update.Roles)
	}
	user.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		`UPDATE users SET email = $2, display_name = $3, roles = $4, updated_at = $5 WHERE id = $1`,
		user.ID, user.Email, user.DisplayName, user.Roles, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailInUse
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.User{}, fmt.Errorf("commit update user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) SetUserPassword(id, password string) (models.User, error) {
	if password == "" {
		return models.User{}, errors.New("password is required")
	}
	hashed, err := hashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := r.opContext()
	defer cancel()

	user, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
		id, hashed, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("set password: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) RecordUserLogin(id string, at time.Time) error {
	ctx, cancel := r.opContext()
	defer cancel()

	tag, err := r.pool.Exec(ctx, "UPDATE users SET last_login_at = $2 WHERE id = $1", id, at.UTC())
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteUser(id string) error {
	ctx, cancel := r.opContext()
	defer cancel()

	tag, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const categoryColumns = "id, name, description, position, created_at, updated_at"

func scanCategory(row pgx.Row) (models.Category, error) {
	var category models.Category
	err := row.Scan(&category.ID, &category.Name, &category.Description, &category.Position, &category.CreatedAt, &category.UpdatedAt)
	return category, err
}

func (r *postgresRepository) CreateCategory(name, description string, position int) (models.Category, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return models.Category{}, errors.New("name is required")
	}
	id, err := generateID()
	if err != nil {
		return models.Category{}, err
	}

	ctx, cancel := r.opContext()
	defer cancel()

	now := time.Now().UTC()
	if position <= 0 {
		if err := r.pool.QueryRow(ctx, "SELECT COALESCE(MAX(position), 0) + 1 FROM categories").Scan(&position); err != nil {
			return models.Category{}, fmt.Errorf("next category position: %w", err)
		}
	}

	category := models.Category{
		ID:          id,
		Name:        trimmed,
		Description: strings.TrimSpace(description),
		Position:    position,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO categories (id, name, description, position, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		category.ID, category.Name, category.Description, category.Position, category.CreatedAt, category.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Category{}, fmt.Errorf("category %q already exists", trimmed)
		}
		return models.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return category, nil
}

func (r *postgresRepository) GetCategory(id string) (models.Category, bool) {
	ctx, cancel := r.opContext()
	defer cancel()

	category, err := scanCategory(r.pool.QueryRow(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = $1", id))
	if err != nil {
		return models.Category{}, false
	}
	return category, true
}

func (r *postgresRepository) ListCategories() []models.Category {
	ctx, cancel := r.opContext()
	defer cancel()

	rows, err := r.pool.Query(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY position, name")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil
		}
		categories = append(categories, category)
	}
	return categories
}

func (r *postgresRepository) UpdateCategory(id string, update CategoryUpdate) (models.Category, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Category{}, fmt.Errorf("begin update category: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	category, err := scanCategory(tx.QueryRow(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Category{}, ErrNotFound
		}
		return models.Category{}, fmt.Errorf("load category: %w", err)
	}

	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		if trimmed == "" {
			return models.Category{}, errors.New("name is required")
		}
		category.Name = trimmed
	}
	if update.Description != nil {
		category.Description = strings.TrimSpace(*update.Description)
	}
	if update.Position != nil && *update.Position > 0 {
		category.Position = *update.Position
	}
	category.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		`UPDATE categories SET name = $2, description = $3, position = $4, updated_at = $5 WHERE id = $1`,
		category.ID, category.Name, category.Description, category.Position, category.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Category{}, fmt.Errorf("category %q already exists", category.Name)
		}
		return models.Category{}, fmt.Errorf("update category: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Category{}, fmt.Errorf("commit update category: %w", err)
	}
	return category, nil
}

func (r *postgresRepository) DeleteCategory(id string) error {
	ctx, cancel := r.opContext()
	defer cancel()

	var references int
	err := r.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM channels WHERE category_id = $1)
		      + (SELECT COUNT(*) FROM playlists WHERE category_id = $1)
		      + (SELECT COUNT(*) FROM videos WHERE category_id = $1)`, id).Scan(&references)
	if err != nil {
		return fmt.Errorf("count category references: %w", err)
	}
	if references > 0 {
		return fmt.Errorf("category %s is still referenced by the catalog", id)
	}

	tag, err := r.pool.Exec(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const channelColumns = "id, youtube_id, title, description, thumbnail_url, category_id, created_by, created_at, updated_at"

func scanChannel(row pgx.Row) (models.Channel, error) {
	var channel models.Channel
	err := row.Scan(&channel.ID, &channel.YoutubeID, &channel.Title, &channel.Description, &channel.ThumbnailURL, &channel.CategoryID, &channel.CreatedBy, &channel.CreatedAt, &channel.UpdatedAt)
	return channel, err
}

func (r *postgresRepository) CreateChannel(params ChannelParams) (models.Channel, error) {
	youtubeID := strings.TrimSpace(params.YoutubeID)
	if youtubeID == "" {
		return models.Channel{}, errors.New("youtubeId is required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Channel{}, errors.New("title is required")
	}
	id, err := generateID()
	if err != nil {
		return models.Channel{}, err
	}

	ctx, cancel := r.opContext()
	defer cancel()

	now := time.Now().UTC()
	channel := models.Channel{
		ID:           id,
		YoutubeID:    youtubeID,
		Title:        title,
		Description:  strings.TrimSpace(params.Description),
		ThumbnailURL: strings.TrimSpace(params.ThumbnailURL),
		CategoryID:   params.CategoryID,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO channels (id, youtube_id, title, description, thumbnail_url, category_id, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		channel.ID, channel.YoutubeID, channel.Title, channel.Description, channel.ThumbnailURL, channel.CategoryID, channel.CreatedBy, channel.CreatedAt, channel.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Channel{}, fmt.Errorf("channel %s is already curated", youtubeID)
		}
		return models.Channel{}, fmt.Errorf("insert channel: %w", err)
	}
	return channel, nil
}

func (r *postgresRepository) GetChannel(id string) (models.Channel, bool) {
	ctx, cancel := r.opContext()
	defer cancel()

	channel, err := scanChannel(r.pool.QueryRow(ctx, "SELECT "+channelColumns+" FROM channels WHERE id = $1", id))
	if err != nil {
		return models.Channel{}, false
	}
	return channel, true
}

func (r *postgresRepository) ListChannels(categoryID, query string) []models.Channel {
	ctx, cancel := r.opContext()
	defer cancel()

	sql := "SELECT " + channelColumns + " FROM channels WHERE ($1 = '' OR category_id = $1) AND ($2 = '' OR title ILIKE '%' || $2 || '%') ORDER BY title"
	rows, err := r.pool.Query(ctx, sql, categoryID, strings.TrimSpace(query))
	if err != nil {
		return nil
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil
		}
		channels = append(channels, channel)
	}
	return channels
}

func (r *postgresRepository) UpdateChannel(id string, update ChannelUpdate) (models.Channel, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Channel{}, fmt.Errorf("begin update channel: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	channel, err := scanChannel(tx.QueryRow(ctx, "SELECT "+channelColumns+" FROM channels WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Channel{}, ErrNotFound
		}
		return models.Channel{}, fmt.Errorf("load channel: %w", err)
	}

	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		if trimmed == "" {
			return models.Channel{}, errors.New("title is required")
		}
		channel.Title = trimmed
	}
	if update.Description != nil {
		channel.Description = strings.TrimSpace(*update.Description)
	}
	if update.ThumbnailURL != nil {
		channel.ThumbnailURL = strings.TrimSpace(*update.ThumbnailURL)
	}
	if update.CategoryID != nil {
		channel.CategoryID = *update.CategoryID
	}
	channel.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		`UPDATE channels SET title = $2, description = $3, thumbnail_url = $4, category_id = $5, updated_at = $6 WHERE id = $1`,
		channel.ID, channel.Title, channel.Description, channel.ThumbnailURL, channel.CategoryID, channel.UpdatedAt)
	if err != nil {
		return models.Channel{}, fmt.Errorf("update channel: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Channel{}, fmt.Errorf("commit update channel: %w", err)
	}
	return channel, nil
}

func (r *postgresRepository) DeleteChannel(id string) error {
	ctx, cancel := r.opContext()
	defer cancel()

	var references int
	err := r.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM playlists WHERE channel_id = $1)
		      + (SELECT COUNT(*) FROM videos WHERE channel_id = $1)`, id).Scan(&references)
	if err != nil {
		return fmt.Errorf("count channel references: %w", err)
	}
	if references > 0 {
		return fmt.Errorf("channel %s is still referenced by the catalog", id)
	}

	tag, err := r.pool.Exec(ctx, "DELETE FROM channels WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const playlistColumns = "id, youtube_id, title, description, thumbnail_url, COALESCE(channel_id, ''), category_id, item_count, created_by, created_at, updated_at"

func scanPlaylist(row pgx.Row) (models.Playlist, error) {
	var playlist models.Playlist
	err := row.Scan(&playlist.ID, &playlist.YoutubeID, &playlist.Title, &playlist.Description, &playlist.ThumbnailURL, &playlist.ChannelID, &playlist.CategoryID, &playlist.ItemCount, &playlist.CreatedBy, &playlist.CreatedAt, &playlist.UpdatedAt)
	return playlist, err
}

func (r *postgresRepository) CreatePlaylist(params PlaylistParams) (models.Playlist, error) {
	youtubeID := strings.TrimSpace(params.YoutubeID)
	if youtubeID == "" {
		return models.Playlist{}, errors.New("youtubeId is required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Playlist{}, errors.New("title is required")
	}
	id, err := generateID()
	if err != nil {
		return models.Playlist{}, err
	}

	ctx, cancel := r.opContext()
	defer cancel()

	now := time.Now().UTC()
	playlist := models.Playlist{
		ID:           id,
		YoutubeID:    youtubeID,
		Title:        title,
		Description:  strings.TrimSpace(params.Description),
		ThumbnailURL: strings.TrimSpace(params.ThumbnailURL),
		ChannelID:    params.ChannelID,
		CategoryID:   params.CategoryID,
		ItemCount:    params.ItemCount,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var channelID any
	if playlist.ChannelID != "" {
		channelID = playlist.ChannelID
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO playlists (id, youtube_id, title, description, thumbnail_url, channel_id, category_id, item_count, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		playlist.ID, playlist.YoutubeID, playlist.Title, playlist.Description, playlist.ThumbnailURL, channelID, playlist.CategoryID, playlist.ItemCount, playlist.CreatedBy, playlist.CreatedAt, playlist.UpdatedAt)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("insert playlist: %w", err)
	}
	return playlist, nil
}

func (r *postgresRepository) GetPlaylist(id string) (models.Playlist, bool) {
	ctx, cancel := r.opContext()
	defer cancel()

	playlist, err := scanPlaylist(r.pool.QueryRow(ctx, "SELECT "+playlistColumns+" FROM playlists WHERE id = $1", id))
	if err != nil {
		return models.Playlist{}, false
	}
	return playlist, true
}

func (r *postgresRepository) ListPlaylists(categoryID string) []models.Playlist {
	ctx, cancel := r.opContext()
	defer cancel()

	rows, err := r.pool.Query(ctx,
		"SELECT "+playlistColumns+" FROM playlists WHERE ($1 = '' OR category_id = $1) ORDER BY title", categoryID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil
		}
		playlists = append(playlists, playlist)
	}
	return playlists
}

func (r *postgresRepository) UpdatePlaylist(id string, update PlaylistUpdate) (models.Playlist, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("begin update playlist: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	playlist, err := scanPlaylist(tx.QueryRow(ctx, "SELECT "+playlistColumns+" FROM playlists WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("load playlist: %w", err)
	}

	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		if trimmed == "" {
			return models.Playlist{}, errors.New("title is required")
		}
		playlist.Title = trimmed
	}
	if update.Description != nil {
		playlist.Description = strings.TrimSpace(*update.Description)
	}
	if update.ThumbnailURL != nil {
		playlist.ThumbnailURL = strings.TrimSpace(*update.ThumbnailURL)
	}
	if update.CategoryID != nil {
		playlist.CategoryID = *update.CategoryID
	}
	if update.ItemCount != nil && *update.ItemCount >= 0 {
		playlist.ItemCount = *update.ItemCount
	}
	playlist.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		`UPDATE playlists SET title = $2, description = $3, thumbnail_url = $4, category_id = $5, item_count = $6, updated_at = $7 WHERE id = $1`,
		playlist.ID, playlist.Title, playlist.Description, playlist.ThumbnailURL, playlist.CategoryID, playlist.ItemCount, playlist.UpdatedAt)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("update playlist: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Playlist{}, fmt.Errorf("commit update playlist: %w", err)
	}
	return playlist, nil
}

func (r *postgresRepository) DeletePlaylist(id string) error {
	ctx, cancel := r.opContext()
	defer cancel()

	tag, err := r.pool.Exec(ctx, "DELETE FROM playlists WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const videoColumns = "id, youtube_id, title, description, thumbnail_url, COALESCE(channel_id, ''), category_id, duration, status, last_checked_at, created_by, created_at, updated_at"

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(&video.ID, &video.YoutubeID, &video.Title, &video.Description, &video.ThumbnailURL, &video.ChannelID, &video.CategoryID, &video.Duration, &video.Status, &video.LastCheckedAt, &video.CreatedBy, &video.CreatedAt, &video.UpdatedAt)
	return video, err
}

func (r *postgresRepository) CreateVideo(params VideoParams) (models.Video, error) {
	youtubeID := strings.TrimSpace(params.YoutubeID)
	if youtubeID == "" {
		return models.Video{}, errors.New("youtubeId is required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Video{}, errors.New("title is required")
	}
	id, err := generateID()
	if err != nil {
		return models.Video{}, err
	}

	ctx, cancel := r.opContext()
	defer cancel()

	now := time.Now().UTC()
	video := models.Video{
		ID:           id,
		YoutubeID:    youtubeID,
		Title:        title,
		Description:  strings.TrimSpace(params.Description),
		ThumbnailURL: strings.TrimSpace(params.ThumbnailURL),
		ChannelID:    params.ChannelID,
		CategoryID:   params.CategoryID,
		Duration:     strings.TrimSpace(params.Duration),
		Status:       models.VideoStatusPending,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var channelID any
	if video.ChannelID != "" {
		channelID = video.ChannelID
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO videos (id, youtube_id, title, description, thumbnail_url, channel_id, category_id, duration, status, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		video.ID, video.YoutubeID, video.Title, video.Description, video.ThumbnailURL, channelID, video.CategoryID, video.Duration, video.Status, video.CreatedBy, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Video{}, fmt.Errorf("video %s is already curated", youtubeID)
		}
		return models.Video{}, fmt.Errorf("insert video: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) GetVideo(id string) (models.Video, bool) {
	ctx, cancel := r.opContext()
	defer cancel()

	video, err := scanVideo(r.pool.QueryRow(ctx, "SELECT "+videoColumns+" FROM videos WHERE id = $1", id))
	if err != nil {
		return models.Video{}, false
	}
	return video, true
}

func (r *postgresRepository) ListVideos(categoryID, channelID, status string) []models.Video {
	ctx, cancel := r.opContext()
	defer cancel()

	rows, err := r.pool.Query(ctx,
		"SELECT "+videoColumns+` FROM videos
		 WHERE ($1 = '' OR category_id = $1)
		   AND ($2 = '' OR channel_id = $2)
		   AND ($3 = '' OR status = $3)
		 ORDER BY title`,
		categoryID, channelID, status)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil
		}
		videos = append(videos, video)
	}
	return videos
}

func (r *postgresRepository) UpdateVideo(id string, update VideoUpdate) (models.Video, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("begin update video: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	video, err := scanVideo(tx.QueryRow(ctx, "SELECT "+videoColumns+" FROM videos WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("load video: %w", err)
	}

	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		if trimmed == "" {
			return models.Video{}, errors.New("title is required")
		}
		video.Title = trimmed
	}
	if update.Description != nil {
		video.Description = strings.TrimSpace(*update.Description)
	}
	if update.ThumbnailURL != nil {
		video.ThumbnailURL = strings.TrimSpace(*update.ThumbnailURL)
	}
	if update.CategoryID != nil {
		video.CategoryID = *update.CategoryID
	}
	if update.Duration != nil {
		video.Duration = strings.TrimSpace(*update.Duration)
	}
	video.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		`UPDATE videos SET title = $2, description = $3, thumbnail_url = $4, category_id = $5, duration = $6, updated_at = $7 WHERE id = $1`,
		video.ID, video.Title, video.Description, video.ThumbnailURL, video.CategoryID, video.Duration, video.UpdatedAt)
	if err != nil {
		return models.Video{}, fmt.Errorf("update video: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Video{}, fmt.Errorf("commit update video: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) DeleteVideo(id string) error {
	ctx, cancel := r.opContext()
	defer cancel()

	tag, err := r.pool.Exec(ctx, "DELETE FROM videos WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) ListVideosForValidation(checkedBefore time.Time, limit int) []models.Video {
	ctx, cancel := r.opContext()
	defer cancel()

	sql := "SELECT " + videoColumns + ` FROM videos
		 WHERE last_checked_at IS NULL OR last_checked_at < $1
		 ORDER BY last_checked_at NULLS FIRST, created_at`
	args := []any{checkedBefore.UTC()}
	if limit > 0 {
		sql += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil
		}
		videos = append(videos, video)
	}
	return videos
}

func (r *postgresRepository) MarkVideoStatus(id, status string, checkedAt time.Time) (models.Video, error) {
	switch status {
	case models.VideoStatusActive, models.VideoStatusPending, models.VideoStatusUnavailable:
	default:
		return models.Video{}, fmt.Errorf("unknown video status %q", status)
	}

	ctx, cancel := r.opContext()
	defer cancel()

	video, err := scanVideo(r.pool.QueryRow(ctx,
		`UPDATE videos SET status = $2, last_checked_at = $3, updated_at = $4 WHERE id = $1 RETURNING `+videoColumns,
		id, status, checkedAt.UTC(), time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("mark video status: %w", err)
	}
	return video, nil
}

const proposalColumns = "id, kind, action, target_id, payload, note, status, proposed_by, resolved_by, resolution_note, created_at, resolved_at"

func scanProposal(row pgx.Row) (models.ModerationProposal, error) {
	var proposal models.ModerationProposal
	err := row.Scan(&proposal.ID, &proposal.Kind, &proposal.Action, &proposal.TargetID, &proposal.Payload, &proposal.Note, &proposal.Status, &proposal.ProposedBy, &proposal.ResolvedBy, &proposal.ResolutionNote, &proposal.CreatedAt, &proposal.ResolvedAt)
	return proposal, err
}

func (r *postgresRepository) CreateProposal(params ProposalParams) (models.ModerationProposal, error) {
	if !models.ValidProposalKind(params.Kind) {
		return models.ModerationProposal{}, fmt.Errorf("unknown proposal kind %q", params.Kind)
	}
	if !models.ValidProposalAction(params.Action) {
		return models.ModerationProposal{}, fmt.Errorf("unknown proposal action %q", params.Action)
	}
	if params.Action != models.ProposalActionAdd && strings.TrimSpace(params.TargetID) == "" {
		return models.ModerationProposal{}, errors.New("targetId is required for update and remove proposals")
	}
	if params.Action != models.ProposalActionRemove && len(params.Payload) == 0 {
		return models.ModerationProposal{}, errors.New("payload is required for add and update proposals")
	}
	if len(params.Payload) > 0 && !json.Valid(params.Payload) {
		return models.ModerationProposal{}, errors.New("payload must be valid JSON")
	}
	if strings.TrimSpace(params.ProposedBy) == "" {
		return models.ModerationProposal{}, errors.New("proposedBy is required")
	}

	id, err := generateID()
	if err != nil {
		return models.ModerationProposal{}, err
	}

	ctx, cancel := r.opContext()
	defer cancel()

	proposal := models.ModerationProposal{
		ID:         id,
		Kind:       params.Kind,
		Action:     params.Action,
		TargetID:   strings.TrimSpace(params.TargetID),
		Payload:    append([]byte(nil), params.Payload...),
		Note:       strings.TrimSpace(params.Note),
		Status:     models.ProposalStatusPending,
		ProposedBy: params.ProposedBy,
		CreatedAt:  time.Now().UTC(),
	}
	var payload any
	if len(proposal.Payload) > 0 {
		payload = proposal.Payload
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO proposals (id, kind, action, target_id, payload, note, status, proposed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		proposal.ID, proposal.Kind, proposal.Action, proposal.TargetID, payload, proposal.Note, proposal.Status, proposal.ProposedBy, proposal.CreatedAt)
	if err != nil {
		return models.ModerationProposal{}, fmt.Errorf("insert proposal: %w", err)
	}
	return proposal, nil
}

func (r *postgresRepository) GetProposal(id string) (models.ModerationProposal, bool) {
	ctx, cancel := r.opContext()
	defer cancel()

	proposal, err := scanProposal(r.pool.QueryRow(ctx, "SELECT "+proposalColumns+" FROM proposals WHERE id = $1", id))
	if err != nil {
		return models.ModerationProposal{}, false
	}
	return proposal, true
}

func (r *postgresRepository) ListProposals(status string) []models.ModerationProposal {
	ctx, cancel := r.opContext()
	defer cancel()

	rows, err := r.pool.Query(ctx,
		"SELECT "+proposalColumns+" FROM proposals WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC", status)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var proposals []models.ModerationProposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil
		}
		proposals = append(proposals, proposal)
	}
	return proposals
}

func (r *postgresRepository) ApproveProposal(id, resolvedBy, note string) (models.ModerationProposal, error) {
	proposal, ok := r.GetProposal(id)
	if !ok {
		return models.ModerationProposal{}, ErrNotFound
	}
	if proposal.Status != models.ProposalStatusPending {
		return models.ModerationProposal{}, ErrProposalResolved
	}
	if err := r.applyProposal(proposal); err != nil {
		return models.ModerationProposal{}, fmt.Errorf("apply proposal %s: %w", id, err)
	}
	return r.resolveProposal(id, models.ProposalStatusApproved, resolvedBy, note)
}

func (r *postgresRepository) RejectProposal(id, resolvedBy, note string) (models.ModerationProposal, error) {
	proposal, ok := r.GetProposal(id)
	if !ok {
		return models.ModerationProposal{}, ErrNotFound
	}
	if proposal.Status != models.ProposalStatusPending {
		return models.ModerationProposal{}, ErrProposalResolved
	}
	return r.resolveProposal(id, models.ProposalStatusRejected, resolvedBy, note)
}

func (r *postgresRepository) resolveProposal(id, status, resolvedBy, note string) (models.ModerationProposal, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	proposal, err := scanProposal(r.pool.QueryRow(ctx,
		`UPDATE proposals SET status = $2, resolved_by = $3, resolution_note = $4, resolved_at = $5
		 WHERE id = $1 AND status = 'pending' RETURNING `+proposalColumns,
		id, status, resolvedBy, strings.TrimSpace(note), time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ModerationProposal{}, ErrProposalResolved
		}
		return models.ModerationProposal{}, fmt.Errorf("resolve proposal: %w", err)
	}
	return proposal, nil
}

// applyProposal mirrors the in-memory implementation: the payload decodes
// into the shared wire shape and replays through the repository's own CRUD
// methods.
func (r *postgresRepository) applyProposal(proposal models.ModerationProposal) error {
	var payload proposalPayload
	if len(proposal.Payload) > 0 {
		if err := json.Unmarshal(proposal.Payload, &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}

	switch proposal.Kind {
	case models.ProposalKindChannel:
		switch proposal.Action {
		case models.ProposalActionAdd:
			_, err := r.CreateChannel(ChannelParams{
				YoutubeID:    payload.YoutubeID,
				Title:        stringValue(payload.Title),
				Description:  stringValue(payload.Description),
				ThumbnailURL: stringValue(payload.ThumbnailURL),
				CategoryID:   stringValue(payload.CategoryID),
				CreatedBy:    proposal.ProposedBy,
			})
			return err
		case models.ProposalActionUpdate:
			_, err := r.UpdateChannel(proposal.TargetID, ChannelUpdate{
				Title:        payload.Title,
				Description:  payload.Description,
				ThumbnailURL: payload.ThumbnailURL,
				CategoryID:   payload.CategoryID,
			})
			return err
		default:
			return r.DeleteChannel(proposal.TargetID)
		}
	case models.ProposalKindPlaylist:
		switch proposal.Action {
		case models.ProposalActionAdd:
			_, err := r.CreatePlaylist(PlaylistParams{
				YoutubeID:    payload.YoutubeID,
				Title:        stringValue(payload.Title),
				Description:  stringValue(payload.Description),
				ThumbnailURL: stringValue(payload.ThumbnailURL),
				ChannelID:    payload.ChannelID,
				CategoryID:   stringValue(payload.CategoryID),
				ItemCount:    intValue(payload.ItemCount),
				CreatedBy:    proposal.ProposedBy,
			})
			return err
		case models.ProposalActionUpdate:
			_, err := r.UpdatePlaylist(proposal.TargetID, PlaylistUpdate{
				Title:        payload.Title,
				Description:  payload.Description,
				ThumbnailURL: payload.ThumbnailURL,
				CategoryID:   payload.CategoryID,
				ItemCount:    payload.ItemCount,
			})
			return err
		default:
			return r.DeletePlaylist(proposal.TargetID)
		}
	case models.ProposalKindVideo:
		switch proposal.Action {
		case models.ProposalActionAdd:
			_, err := r.CreateVideo(VideoParams{
				YoutubeID:    payload.YoutubeID,
				Title:        stringValue(payload.Title),
				Description:  stringValue(payload.Description),
				ThumbnailURL: stringValue(payload.ThumbnailURL),
				ChannelID:    payload.ChannelID,
				CategoryID:   stringValue(payload.CategoryID),
				Duration:     stringValue(payload.Duration),
				CreatedBy:    proposal.ProposedBy,
			})
			return err
		case models.ProposalActionUpdate:
			_, err := r.UpdateVideo(proposal.TargetID, VideoUpdate{
				Title:        payload.Title,
				Description:  payload.Description,
				ThumbnailURL: payload.ThumbnailURL,
				CategoryID:   payload.CategoryID,
				Duration:     payload.Duration,
			})
			return err
		default:
			return r.DeleteVideo(proposal.TargetID)
		}
	default:
		return fmt.Errorf("unknown proposal kind %q", proposal.Kind)
	}
}

var _ Repository = (*postgresRepository)(nil)
