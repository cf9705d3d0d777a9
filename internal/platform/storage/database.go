package storage

import (
	"os"
	"path/filepath"
	"time"

	"caption-server-go/internal/platform/errors"
	"caption-server-go/internal/platform/storage/migrations"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN 进程内 SQLite，测试与临时部署使用
const MemoryDSN = ":memory:"

// JournalRecord 描述请求审计记录
type JournalRecord struct {
	ID         uint              `gorm:"primaryKey"`
	RequestID  string            `gorm:"type:varchar(64);index"`
	ImageURL   string            `gorm:"type:text;not null"`
	Host       string            `gorm:"type:varchar(255)"`
	Outcome    string            `gorm:"type:varchar(32);index;not null"`
	Caption    string            `gorm:"type:text"`
	Detail     string            `gorm:"type:text"`
	Bytes      int               `gorm:"default:0"`
	DurationMS int64             `gorm:"default:0"`
	Meta       datatypes.JSONMap `gorm:"type:json"`
	CreatedAt  time.Time         `gorm:"index"`
}

// TableName pins the table created by migration 001.
func (JournalRecord) TableName() string {
	return "describe_journal"
}

// JournalOutcomeCount 按结果累计的请求数
type JournalOutcomeCount struct {
	Outcome string `gorm:"type:varchar(32);primaryKey"`
	Total   int64  `gorm:"not null;default:0"`
}

func (JournalOutcomeCount) TableName() string {
	return "describe_journal_stats"
}

// Open 打开 SQLite 数据库并执行迁移
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New(errors.KindStorage, "storage.open", "sqlite dsn is empty")
	}
	if dsn != MemoryDSN {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(errors.KindStorage, "storage.mkdir", "failed to create data directory", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.open", "failed to open database", err)
	}

	if dsn == MemoryDSN {
		// 每个连接各自持有一份内存库，只保留一个连接
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(errors.KindStorage, "storage.pool", "failed to access connection pool", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	manager := NewMigrationManager(db)
	manager.AddMigration(&migrations.Migration001Journal{})
	manager.AddMigration(&migrations.Migration002JournalStats{})
	if err := manager.RunMigrations(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(errors.KindStorage, "storage.close", "failed to access connection pool", err)
	}
	return sqlDB.Close()
}
