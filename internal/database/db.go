package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open は成績レコードを保存するPostgreSQLへのハンドルを返す。
// 接続はまだ張られないので、起動時の疎通確認は呼び出し側がPingで行う。
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("grade store: open postgres: %w", err)
	}
	return db, nil
}
