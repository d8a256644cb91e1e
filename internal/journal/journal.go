package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/pipbot/gopip/internal/domain"
)

var log = logrus.WithField("component", "journal")

// Journal 交易流水（sqlite）
// 记录档位事件和订单结果，供控制面板查询；写入是 best-effort，失败只记日志，
// 绝不阻断 tick 流水线
type Journal struct {
	db *sql.DB
}

// Open 打开（必要时创建）流水数据库
func Open(dbPath string) (*Journal, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("journal: db 路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("journal: 创建目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("journal: 打开 sqlite 失败: %w", err)
	}
	// SQLite：单连接更稳定
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stage_events (
			id          TEXT PRIMARY KEY,
			symbol      TEXT NOT NULL,
			stage       INTEGER NOT NULL,
			ratio       REAL NOT NULL,
			trading_day TEXT NOT NULL,
			created_at  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id         TEXT PRIMARY KEY,
			symbol     TEXT NOT NULL,
			signal     TEXT NOT NULL,
			side       TEXT,
			ratio      REAL NOT NULL,
			price      REAL,
			status     TEXT NOT NULL,
			error      TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_stage_events_day ON stage_events(trading_day, symbol)`,
	}
	for _, s := range stmts {
		if _, err := j.db.Exec(s); err != nil {
			return fmt.Errorf("journal: migrate 失败: %w", err)
		}
	}
	return nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// StageEventRow 档位事件流水行
type StageEventRow struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Stage      int       `json:"stage"`
	Ratio      float64   `json:"ratio"`
	TradingDay string    `json:"trading_day"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrderRow 订单流水行
type OrderRow struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Signal    string    `json:"signal"`
	Side      string    `json:"side"`
	Ratio     float64   `json:"ratio"`
	Price     float64   `json:"price"`
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordStageEvent 写入档位事件（best-effort）
func (j *Journal) RecordStageEvent(ctx context.Context, evt domain.StageEvent, tradingDay time.Time) {
	if j == nil {
		return
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO stage_events (id, symbol, stage, ratio, trading_day, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), evt.Symbol, evt.Stage, evt.Snapshot.ThresholdRatio,
		tradingDay.Format("2006-01-02"), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		log.Warnf("档位事件写入失败: %v", err)
	}
}

// RecordOrder 写入订单结果（best-effort）
// placed 为 nil 表示提交失败，orderErr 携带失败原因
func (j *Journal) RecordOrder(ctx context.Context, decision domain.TradeDecision, price float64, orderErr error) {
	if j == nil {
		return
	}
	status := "ok"
	errText := ""
	if orderErr != nil {
		status = "error"
		errText = orderErr.Error()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO orders (id, symbol, signal, side, ratio, price, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), decision.Symbol, string(decision.Signal), string(decision.Side),
		decision.Ratio, price, status, errText, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		log.Warnf("订单流水写入失败: %v", err)
	}
}

// ListOrders 最近 limit 条订单流水（时间倒序）
func (j *Journal) ListOrders(ctx context.Context, limit int) ([]OrderRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, symbol, signal, COALESCE(side, ''), ratio, COALESCE(price, 0),
		        status, COALESCE(error, ''), created_at
		 FROM orders ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRow
	for rows.Next() {
		var r OrderRow
		var created string
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Signal, &r.Side, &r.Ratio, &r.Price,
			&r.Status, &r.Error, &created); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListStageEvents 最近 limit 条档位事件（时间倒序）
func (j *Journal) ListStageEvents(ctx context.Context, limit int) ([]StageEventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, symbol, stage, ratio, trading_day, created_at
		 FROM stage_events ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StageEventRow
	for rows.Next() {
		var r StageEventRow
		var created string
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Stage, &r.Ratio, &r.TradingDay, &created); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, r)
	}
	return out, rows.Err()
}
