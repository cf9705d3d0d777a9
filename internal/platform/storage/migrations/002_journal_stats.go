package migrations

import (
	"gorm.io/gorm"
)

// Migration002JournalStats 按结果累计请求数，不受容量裁剪影响
type Migration002JournalStats struct{}

func (m *Migration002JournalStats) Version() string {
	return "002_journal_stats"
}

func (m *Migration002JournalStats) Description() string {
	return "Create describe_journal_stats counter table"
}

func (m *Migration002JournalStats) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS describe_journal_stats (
			outcome VARCHAR(32) PRIMARY KEY,
			total INTEGER NOT NULL DEFAULT 0
		)
	`).Error; err != nil {
		return err
	}

	// 已有记录回填
	return db.Exec(`
		INSERT INTO describe_journal_stats (outcome, total)
		SELECT outcome, COUNT(*) FROM describe_journal GROUP BY outcome
	`).Error
}

func (m *Migration002JournalStats) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS describe_journal_stats`).Error
}
