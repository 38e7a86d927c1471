package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AngelCh415/dmlab/internal/config"
	"github.com/AngelCh415/dmlab/internal/models"
)

// StateSnapshot is one saved envelope.
type StateSnapshot struct {
	ID            uint      `gorm:"primaryKey"`
	SchemaVersion int       `gorm:"not null"`
	SavedAt       time.Time `gorm:"not null;index"`
	Data          string    `gorm:"type:jsonb;not null"`
}

type PostgresStore struct {
	db   *gorm.DB
	keep int
}

func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, keep int) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.ConnectionString()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresStore(ctx, db, keep)
}

// NewPostgresStore wraps an open connection and migrates the snapshot table.
func NewPostgresStore(ctx context.Context, db *gorm.DB, keep int) (*PostgresStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&StateSnapshot{}); err != nil {
		return nil, fmt.Errorf("migrate snapshots: %w", err)
	}
	return &PostgresStore{db: db, keep: keep}, nil
}

func (p *PostgresStore) Name() string { return "postgres" }

func (p *PostgresStore) Load(ctx context.Context) ([]byte, error) {
	var snap StateSnapshot
	err := p.db.WithContext(ctx).Order("id desc").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, err
	}
	return []byte(snap.Data), nil
}

func (p *PostgresStore) Save(ctx context.Context, env models.PersistedState) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	savedAt, err := time.Parse(time.RFC3339, env.SavedAt)
	if err != nil {
		savedAt = time.Now().UTC()
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snap := StateSnapshot{SchemaVersion: env.SchemaVersion, SavedAt: savedAt, Data: string(b)}
		if err := tx.Create(&snap).Error; err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		if p.keep > 0 {
			keep := tx.Model(&StateSnapshot{}).Select("id").Order("id desc").Limit(p.keep)
			if err := tx.Where("id NOT IN (?)", keep).Delete(&StateSnapshot{}).Error; err != nil {
				return fmt.Errorf("prune snapshots: %w", err)
			}
		}
		return nil
	})
}

func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
