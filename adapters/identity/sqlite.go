package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// identityRecord is the gorm model backing SQLiteStore.
type identityRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	Address     string `gorm:"uniqueIndex;size:42;not null"`
	Nonce       string `gorm:"size:128;not null"`
	Role        string `gorm:"size:16;not null;default:user"`
	Active      bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

func (identityRecord) TableName() string {
	return "identities"
}

func (r *identityRecord) toCore() *core.Identity {
	return &core.Identity{
		ID:          r.ID,
		Address:     r.Address,
		Nonce:       r.Nonce,
		Role:        core.Role(r.Role),
		Active:      r.Active,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		LastLoginAt: r.LastLoginAt,
	}
}

type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens dsn and migrates the identities table.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return NewSQLiteStore(db)
}

// NewSQLiteStore builds a store on an existing gorm handle.
func NewSQLiteStore(db *gorm.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	if err := db.AutoMigrate(&identityRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate identities: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

var _ ports.IdentityStore = (*SQLiteStore)(nil)

func (s *SQLiteStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	return s.fetch(ctx, "address = ?", address)
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*core.Identity, error) {
	return s.fetch(ctx, "id = ?", id)
}

func (s *SQLiteStore) Create(ctx context.Context, address, nonce string) (*core.Identity, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity ID: %w", err)
	}

	record := &identityRecord{
		ID:      id.String(),
		Address: address,
		Nonce:   nonce,
		Role:    string(core.RoleUser),
		Active:  true,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ports.ErrIdentityExists
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	return record.toCore(), nil
}

func (s *SQLiteStore) RotateNonce(ctx context.Context, id, nonce string) (*core.Identity, error) {
	if err := s.update(ctx, id, map[string]any{"nonce": nonce}); err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

// ConsumeNonce swaps the nonce with a conditional UPDATE.
func (s *SQLiteStore) ConsumeNonce(ctx context.Context, id, expected, next string) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&identityRecord{}).
		Where("id = ? AND nonce = ?", id, expected).
		Updates(map[string]any{
			"nonce":         next,
			"last_login_at": now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to consume nonce: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ports.ErrNonceMismatch
	}
	return nil
}

func (s *SQLiteStore) SetActive(ctx context.Context, id string, active bool) (*core.Identity, error) {
	if err := s.update(ctx, id, map[string]any{"active": active}); err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) update(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&identityRecord{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update identity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ports.ErrIdentityNotFound
	}
	return nil
}

func (s *SQLiteStore) fetch(ctx context.Context, cond string, arg any) (*core.Identity, error) {
	var record identityRecord
	err := s.db.WithContext(ctx).Where(cond, arg).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ports.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.toCore(), nil
}
