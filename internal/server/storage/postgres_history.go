package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	pg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationsTable = "schema_migrations_take_six"

// ConnectPostgres 连接 PostgreSQL
func ConnectPostgres(databaseURL string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// RunMigrations 应用内嵌的历史记录表结构
func RunMigrations(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("database URL is empty")
	}

	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open DB: %w", err)
	}
	defer sqlDB.Close()

	driver, err := pg.WithInstance(sqlDB, &pg.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Printf("🗄️ 历史记录表结构已就绪 (version=%d, dirty=%v)", version, dirty)
	return nil
}

// PostgresHistory 将对局结果写入 PostgreSQL
type PostgresHistory struct {
	db *sqlx.DB
}

// NewPostgresHistory 创建 PostgreSQL 历史记录
func NewPostgresHistory(db *sqlx.DB) *PostgresHistory {
	return &PostgresHistory{db: db}
}

// RecordGame 在一个事务中写入对局与所有玩家结果
func (ph *PostgresHistory) RecordGame(ctx context.Context, rec *GameRecord) (err error) {
	if rec == nil {
		return nil
	}

	tx, err := ph.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var gameID int64
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO games (room_code, rounds, reason, ended_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		rec.RoomCode, rec.Rounds, rec.Reason, rec.EndedAt,
	).Scan(&gameID)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	for _, r := range rec.Results {
		row := resultRow{GameID: gameID, PlayerResult: r}
		if _, err = tx.NamedExecContext(ctx,
			`INSERT INTO game_results (game_id, account_id, player_name, rank, score, is_robot, is_winner)
			 VALUES (:game_id, :account_id, :player_name, :rank, :score, :is_robot, :is_winner)`,
			row,
		); err != nil {
			return fmt.Errorf("insert result %s: %w", r.AccountID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type resultRow struct {
	GameID int64 `db:"game_id"`
	PlayerResult
}

// RecentResults 查询某账号最近的对局结果
func (ph *PostgresHistory) RecentResults(ctx context.Context, accountID string, limit int) ([]PlayerResult, error) {
	if limit <= 0 {
		limit = 20
	}
	var results []PlayerResult
	err := ph.db.SelectContext(ctx, &results,
		`SELECT r.account_id, r.player_name, r.rank, r.score, r.is_robot, r.is_winner
		 FROM game_results r JOIN games g ON g.id = r.game_id
		 WHERE r.account_id = $1
		 ORDER BY g.ended_at DESC
		 LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	return results, nil
}
