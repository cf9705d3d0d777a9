package migrations

import (
	"gorm.io/gorm"
)

// Migration001Journal 创建描述请求审计表
type Migration001Journal struct{}

func (m *Migration001Journal) Version() string {
	return "001_journal"
}

func (m *Migration001Journal) Description() string {
	return "Create describe_journal table"
}

func (m *Migration001Journal) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS describe_journal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id VARCHAR(64),
			image_url TEXT NOT NULL,
			host VARCHAR(255),
			outcome VARCHAR(32) NOT NULL,
			caption TEXT,
			detail TEXT,
			bytes INTEGER DEFAULT 0,
			duration_ms INTEGER DEFAULT 0,
			meta JSON,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_describe_journal_request_id ON describe_journal(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_describe_journal_outcome ON describe_journal(outcome)`,
		`CREATE INDEX IF NOT EXISTS idx_describe_journal_created_at ON describe_journal(created_at)`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration001Journal) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS describe_journal`).Error
}
