package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"tube-curator/internal/models"
)

const (
	passwordHashSaltLength = 16
	passwordHashKeyLength  = 32
	passwordHashIterations = 120000
)

type dataset struct {
	Users      map[string]models.User               `json:"users"`
	Categories map[string]models.Category           `json:"categories"`
	Channels   map[string]models.Channel            `json:"channels"`
	Playlists  map[string]models.Playlist           `json:"playlists"`
	Videos     map[string]models.Video              `json:"videos"`
	Proposals  map[string]models.ModerationProposal `json:"proposals"`
}

// Storage is the in-memory repository with optional JSON file persistence.
// It backs local development and tests; production deployments use the
// Postgres repository.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
	idFactory       func() (string, error)
	clock           func() time.Time
}

func newDataset() dataset {
	return dataset{
		Users:      make(map[string]models.User),
		Categories: make(map[string]models.Category),
		Channels:   make(map[string]models.Channel),
		Playlists:  make(map[string]models.Playlist),
		Videos:     make(map[string]models.Video),
		Proposals:  make(map[string]models.ModerationProposal),
	}
}

// NewStorage constructs a purely in-memory repository.
func NewStorage(opts ...Option) *Storage {
	store := &Storage{
		data:      newDataset(),
		idFactory: generateID,
		clock:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyJSON(store)
		}
	}
	return store
}

// NewJSONRepository constructs a repository persisted to the provided JSON
// file, loading existing state when the file is present.
func NewJSONRepository(filePath string, opts ...Option) (*Storage, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, errors.New("data file path is required")
	}
	store := NewStorage(opts...)
	store.filePath = filePath
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// Ping reports datastore health; the in-memory store is always reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close releases resources held by the repository. The JSON store keeps no
// open handles between operations.
func (s *Storage) Close(ctx context.Context) error {
	return nil
}

func (s *Storage) load() error {
	file, err := os.Open(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}

	s.ensureDatasetInitializedLocked()
	return nil
}

func (s *Storage) ensureDatasetInitializedLocked() {
	if s.data.Users == nil {
		s.data.Users = make(map[string]models.User)
	}
	if s.data.Categories == nil {
		s.data.Categories = make(map[string]models.Category)
	}
	if s.data.Channels == nil {
		s.data.Channels = make(map[string]models.Channel)
	}
	if s.data.Playlists == nil {
		s.data.Playlists = make(map[string]models.Playlist)
	}
	if s.data.Videos == nil {
		s.data.Videos = make(map[string]models.Video)
	}
	if s.data.Proposals == nil {
		s.data.Proposals = make(map[string]models.ModerationProposal)
	}
}

func (s *Storage) persist() error {
	if s.persistOverride != nil {
		return s.persistOverride(s.data)
	}
	if s.filePath == "" {
		return nil
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

// CreateUser registers a new account with a pbkdf2-hashed password.
func (s *Storage) CreateUser(params CreateUserParams) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalizedEmail := strings.TrimSpace(strings.ToLower(params.Email))
	if normalizedEmail == "" {
		return models.User{}, errors.New("email is required")
	}
	for _, user := range s.data.Users {
		if user.Email == normalizedEmail {
			return models.User{}, ErrEmailInUse
		}
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		return models.User{}, errors.New("displayName is required")
	}
	if params.Password == "" {
		return models.User{}, errors.New("password is required")
	}

	id, err := s.idFactory()
	if err != nil {
		return models.User{}, err
	}
	hashed, err := hashPassword(params.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock()
	user := models.User{
		ID:           id,
		Email:        normalizedEmail,
		DisplayName:  displayName,
		Roles:        normalizeRoles(params.Roles),
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.data.Users[id] = user
	if err := s.persist(); err != nil {
		delete(s.data.Users, id)
		return models.User{}, err
	}
	return user, nil
}

// AuthenticateUser verifies credentials and returns the matching user.
func (s *Storage) AuthenticateUser(email, password string) (models.User, error) {
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}
	user, ok := s.FindUserByEmail(email)
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Storage) ListUsers() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.data.Users))
	for _, user := range s.data.Users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

func (s *Storage) GetUser(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.data.Users[id]
	return user, ok
}

// FindUserByEmail looks up a user by their normalized email address.
func (s *Storage) FindUserByEmail(email string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	for _, user := range s.data.Users {
		if user.Email == normalizedEmail {
			return user, true
		}
	}
	return models.User{}, false
}

func (s *Storage) UpdateUser(id string, update UserUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	previous := user

	if update.Email != nil {
		normalized := strings.TrimSpace(strings.ToLower(*update.Email))
		if normalized == "" {
			return models.User{}, errors.New("email is required")
		}
		for otherID, other := range s.data.Users {
			if otherID != id && other.Email == normalized {
				return models.User{}, ErrEmailInUse
			}
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
	user.UpdatedAt = s.clock()

	s.data.Users[id] = user
	if err := s.persist(); err != nil {
		s.data.Users[id] = previous
		return models.User{}, err
	}
	return user, nil
}

func (s *Storage) SetUserPassword(id, password string) (models.User, error) {
	if password == "" {
		return models.User{}, errors.New("password is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	previous := user

	hashed, err := hashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hashed
	user.UpdatedAt = s.clock()

	s.data.Users[id] = user
	if err := s.persist(); err != nil {
		s.data.Users[id] = previous
		return models.User{}, err
	}
	return user, nil
}

// RecordUserLogin stamps the account's last successful login time.
func (s *Storage) RecordUserLogin(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return ErrNotFound
	}
	stamp := at.UTC()
	user.LastLoginAt = &stamp
	s.data.Users[id] = user
	return s.persist()
}

func (s *Storage) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.data.Users, id)
	if err := s.persist(); err != nil {
		s.data.Users[id] = user
		return err
	}
	return nil
}

// CreateCategory registers a catalog category. Position zero appends the
// category after the current highest position.
func (s *Storage) CreateCategory(name, description string, position int) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return models.Category{}, errors.New("name is required")
	}
	for _, category := range s.data.Categories {
		if strings.EqualFold(category.Name, trimmed) {
			return models.Category{}, fmt.Errorf("category %q already exists", trimmed)
		}
	}

	if position <= 0 {
		for _, category := range s.data.Categories {
			if category.Position >= position {
				position = category.Position + 1
			}
		}
		if position <= 0 {
			position = 1
		}
	}

	id, err := s.idFactory()
	if err != nil {
		return models.Category{}, err
	}
	now := s.clock()
	category := models.Category{
		ID:          id,
		Name:        trimmed,
		Description: strings.TrimSpace(description),
		Position:    position,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.data.Categories[id] = category
	if err := s.persist(); err != nil {
		delete(s.data.Categories, id)
		return models.Category{}, err
	}
	return category, nil
}

func (s *Storage) GetCategory(id string) (models.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.data.Categories[id]
	return category, ok
}

func (s *Storage) ListCategories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]models.Category, 0, len(s.data.Categories))
	for _, category := range s.data.Categories {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Position != categories[j].Position {
			return categories[i].Position < categories[j].Position
		}
		return categories[i].Name < categories[j].Name
	})
	return categories
}

func (s *Storage) UpdateCategory(id string, update CategoryUpdate) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	category, ok := s.data.Categories[id]
	if !ok {
		return models.Category{}, ErrNotFound
	}
	previous := category

	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		if trimmed == "" {
			return models.Category{}, errors.New("name is required")
		}
		for otherID, other := range s.data.Categories {
			if otherID != id && strings.EqualFold(other.Name, trimmed) {
				return models.Category{}, fmt.Errorf("category %q already exists", trimmed)
			}
		}
		category.Name = trimmed
	}
	if update.Description != nil {
		category.Description = strings.TrimSpace(*update.Description)
	}
	if update.Position != nil && *update.Position > 0 {
		category.Position = *update.Position
	}
	category.UpdatedAt = s.clock()

	s.data.Categories[id] = category
	if err := s.persist(); err != nil {
		s.data.Categories[id] = previous
		return models.Category{}, err
	}
	return category, nil
}

// DeleteCategory removes a category once nothing in the catalog references it.
func (s *Storage) DeleteCategory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	category, ok := s.data.Categories[id]
	if !ok {
		return ErrNotFound
	}
	for _, channel := range s.data.Channels {
		if channel.CategoryID == id {
			return fmt.Errorf("category %s still has channels", id)
		}
	}
	for _, playlist := range s.data.Playlists {
		if playlist.CategoryID == id {
			return fmt.Errorf("category %s still has playlists", id)
		}
	}
	for _, video := range s.data.Videos {
		if video.CategoryID == id {
			return fmt.Errorf("category %s still has videos", id)
		}
	}

	delete(s.data.Categories, id)
	if err := s.persist(); err != nil {
		s.data.Categories[id] = category
		return err
	}
	return nil
}

func normalizeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	normalized := make([]string, 0, len(roles))
	for _, role := range roles {
		mapped := models.NormalizeRole(role)
		if _, ok := seen[mapped]; ok {
			continue
		}
		seen[mapped] = struct{}{}
		normalized = append(normalized, mapped)
	}
	if len(normalized) == 0 {
		normalized = append(normalized, models.RoleUser)
	}
	sort.Strings(normalized)
	return normalized
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, passwordHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, passwordHashIterations, passwordHashKeyLength, sha256.New)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(derived)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s", passwordHashIterations, encodedSalt, encodedKey), nil
}

func verifyPassword(encodedHash, candidate string) error {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 {
		return fmt.Errorf("verify password: invalid hash format")
	}
	if parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return fmt.Errorf("verify password: unsupported hash identifier")
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return fmt.Errorf("verify password: invalid iteration count")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return fmt.Errorf("verify password: decode salt: %w", err)
	}
	storedKey, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("verify password: decode hash: %w", err)
	}
	derived := pbkdf2.Key([]byte(candidate), salt, iterations, len(storedKey), sha256.New)
	if len(derived) != len(storedKey) || subtle.ConstantTimeCompare(derived, storedKey) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
