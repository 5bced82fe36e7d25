package actionlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	xerrors "github.com/Jaden-Nix/gravity-nexus/internal/errors"
)

// MySQLStore 使用 MySQL 持久化动作日志，供运维端长期审计。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 创建一个新的 MySQLStore。
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	store := &MySQLStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS action_records (
        id VARCHAR(64) PRIMARY KEY,
        action_type VARCHAR(64) NOT NULL,
        trigger_source VARCHAR(32) NOT NULL,
        event_id VARCHAR(64) DEFAULT '',
        ledger VARCHAR(64) DEFAULT '',
        from_index INT NOT NULL DEFAULT 0,
        to_index INT NOT NULL DEFAULT 0,
        amount VARCHAR(80) DEFAULT '',
        rate_gap BIGINT UNSIGNED NOT NULL DEFAULT 0,
        ok TINYINT(1) NOT NULL DEFAULT 0,
        outcome VARCHAR(255) NOT NULL,
        reason TEXT,
        created_at BIGINT NOT NULL,
        INDEX idx_action_created (created_at),
        INDEX idx_action_ok (ok)
)`

	if _, err := s.db.Exec(schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 action_records 表失败")
	}
	return nil
}

// Append 插入一条动作记录。记录只增不改。
func (s *MySQLStore) Append(ctx context.Context, record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "record 不能为空")
	}
	if strings.TrimSpace(record.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "记录 ID 不能为空")
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}

	const stmt = `INSERT INTO action_records
        (id, action_type, trigger_source, event_id, ledger, from_index, to_index, amount, rate_gap, ok, outcome, reason, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		record.ActionType,
		string(record.Trigger),
		record.EventID,
		record.Ledger,
		record.FromIndex,
		record.ToIndex,
		record.Amount,
		record.RateGap,
		record.OK,
		record.Outcome,
		record.Reason,
		record.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			return ErrRecordConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入动作记录失败")
	}
	return nil
}

// Get 返回指定记录。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Record, error) {
	const stmt = `SELECT id, action_type, trigger_source, event_id, ledger, from_index, to_index, amount, rate_gap, ok, outcome, reason, created_at
        FROM action_records WHERE id = ?`

	row := s.db.QueryRowContext(ctx, stmt, id)
	record, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询动作记录失败")
	}
	return record, nil
}

// filterClause 把过滤条件拼成 WHERE 子句，List 与 Stats 共用。
func filterClause(opts ListOptions) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if len(opts.Triggers) > 0 {
		placeholders := make([]string, len(opts.Triggers))
		for i, trigger := range opts.Triggers {
			placeholders[i] = "?"
			args = append(args, string(trigger))
		}
		conditions = append(conditions, fmt.Sprintf("trigger_source IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(opts.Actions) > 0 {
		placeholders := make([]string, len(opts.Actions))
		for i, action := range opts.Actions {
			placeholders[i] = "?"
			args = append(args, action)
		}
		conditions = append(conditions, fmt.Sprintf("action_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if opts.OK != nil {
		conditions = append(conditions, "ok = ?")
		args = append(args, *opts.OK)
	}
	if opts.CreatedGTE > 0 {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.CreatedGTE)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List 返回符合过滤条件的记录。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	opts.applyDefaults()

	where, args := filterClause(opts)
	query := `SELECT id, action_type, trigger_source, event_id, ledger, from_index, to_index, amount, rate_gap, ok, outcome, reason, created_at FROM action_records` + where
	if opts.Order == SortByCreatedAsc {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}
	query += " LIMIT ?"
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询动作记录失败")
	}
	defer rows.Close()

	var results []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析动作记录失败")
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历动作记录失败")
	}
	return results, nil
}

// Stats 在 SQL 侧对符合过滤条件的全部记录做聚合，
// 不受 List 的分页窗口影响。
func (s *MySQLStore) Stats(ctx context.Context, opts ListOptions) (Stats, error) {
	query, args := statsQuery(opts)

	var stats Stats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Succeeded,
		&stats.NoAction,
		&stats.Failed,
		&stats.OldestAt,
		&stats.NewestAt,
		&stats.LastFailed,
	); err != nil {
		return Stats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "统计动作记录失败")
	}
	return stats, nil
}

func statsQuery(opts ListOptions) (string, []any) {
	where, filterArgs := filterClause(opts)
	query := `SELECT COUNT(*),
        COALESCE(SUM(CASE WHEN ok = 1 AND outcome <> ? THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN ok = 1 AND outcome = ? THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN ok = 0 THEN 1 ELSE 0 END), 0),
        COALESCE(MIN(created_at), 0),
        COALESCE(MAX(created_at), 0),
        COALESCE(MAX(CASE WHEN ok = 0 THEN created_at END), 0)
        FROM action_records` + where
	args := append([]any{OutcomeNoAction, OutcomeNoAction}, filterArgs...)
	return query, args
}

// Close 关闭数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record  Record
		trigger string
		reason  sql.NullString
	)
	if err := row.Scan(
		&record.ID,
		&record.ActionType,
		&trigger,
		&record.EventID,
		&record.Ledger,
		&record.FromIndex,
		&record.ToIndex,
		&record.Amount,
		&record.RateGap,
		&record.OK,
		&record.Outcome,
		&reason,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	record.Trigger = Trigger(trigger)
	if reason.Valid {
		record.Reason = reason.String
	}
	return &record, nil
}

var _ Store = (*MySQLStore)(nil)
