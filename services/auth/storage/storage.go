package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cuecard/backend/services/auth/entity"
)

const (
	keyFirebaseTokens   = "firebase_tokens"
	keySlidesTokens     = "slides_tokens"
	keyOAuthCredentials = "oauth_credentials"
)

// Record is one persisted key/value entry. The table mirrors the key set of
// the desktop shell's store file, one row per record kind.
type Record struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

type storage struct {
	db *gorm.DB
}

type Storage interface {
	SaveFirebaseTokens(ctx context.Context, tokens *entity.FirebaseTokens) error
	LoadFirebaseTokens(ctx context.Context) (*entity.FirebaseTokens, error)

	SaveSlidesTokens(ctx context.Context, tokens *entity.SlidesTokens) error
	LoadSlidesTokens(ctx context.Context) (*entity.SlidesTokens, error)

	SaveOAuthCredentials(ctx context.Context, creds *entity.OAuthCredentials) error
	LoadOAuthCredentials(ctx context.Context) (*entity.OAuthCredentials, error)

	Clear(ctx context.Context) error
}

// Open opens (and creates if needed) the sqlite store at path.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	return db, nil
}

func New(db *gorm.DB) (Storage, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate records table: %w", err)
	}
	return &storage{db: db}, nil
}

func (s *storage) SaveFirebaseTokens(ctx context.Context, tokens *entity.FirebaseTokens) error {
	return s.save(ctx, keyFirebaseTokens, tokens)
}

func (s *storage) LoadFirebaseTokens(ctx context.Context) (*entity.FirebaseTokens, error) {
	tokens := &entity.FirebaseTokens{}
	found, err := s.load(ctx, keyFirebaseTokens, tokens)
	if err != nil || !found {
		return nil, err
	}
	return tokens, nil
}

func (s *storage) SaveSlidesTokens(ctx context.Context, tokens *entity.SlidesTokens) error {
	return s.save(ctx, keySlidesTokens, tokens)
}

func (s *storage) LoadSlidesTokens(ctx context.Context) (*entity.SlidesTokens, error) {
	tokens := &entity.SlidesTokens{}
	found, err := s.load(ctx, keySlidesTokens, tokens)
	if err != nil || !found {
		return nil, err
	}
	return tokens, nil
}

func (s *storage) SaveOAuthCredentials(ctx context.Context, creds *entity.OAuthCredentials) error {
	return s.save(ctx, keyOAuthCredentials, creds)
}

func (s *storage) LoadOAuthCredentials(ctx context.Context) (*entity.OAuthCredentials, error) {
	creds := &entity.OAuthCredentials{}
	found, err := s.load(ctx, keyOAuthCredentials, creds)
	if err != nil || !found {
		return nil, err
	}
	return creds, nil
}

func (s *storage) Clear(ctx context.Context) error {
	keys := []string{keyFirebaseTokens, keySlidesTokens, keyOAuthCredentials}
	if err := s.db.WithContext(ctx).Delete(&Record{}, "key IN ?", keys).Error; err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

func (s *storage) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	record := &Record{Key: key, Value: string(data)}
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *storage) load(ctx context.Context, key string, out any) (bool, error) {
	record := &Record{}
	err := s.db.WithContext(ctx).First(record, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(record.Value), out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}
