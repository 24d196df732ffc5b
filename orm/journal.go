package orm

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/biz"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/utils"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const ddlJournal = `
CREATE TABLE IF NOT EXISTS order_ack (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	local_id TEXT NOT NULL,
	code TEXT NOT NULL,
	intent INTEGER NOT NULL,
	intent_qty REAL NOT NULL,
	intent_price REAL NOT NULL,
	status INTEGER NOT NULL,
	qty REAL NOT NULL,
	time INTEGER NOT NULL,
	exg_ids TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_ack_local ON order_ack (local_id);
`

/*
Journal sqlite log of every accepted order ack, replayed into the order pools on start
*/
type Journal struct {
	db   *sql.DB
	lock deadlock.Mutex
	Path string
}

func OpenJournal(path string, timeoutMs int64) (*Journal, *errs.Error) {
	if err_ := utils.EnsureDir(filepath.Dir(path), 0755); err_ != nil {
		return nil, errs.New(core.ErrIOWriteFail, err_)
	}
	openFlag := "cache=shared&mode=rwc"
	if timeoutMs > 0 {
		openFlag += fmt.Sprintf("&_busy_timeout=%d", timeoutMs)
	}
	db, err_ := sql.Open("sqlite", fmt.Sprintf("file:%s?%s", path, openFlag))
	if err_ != nil {
		return nil, errs.New(core.ErrDbConnFail, err_)
	}
	checkSql := "SELECT COUNT(*) FROM sqlite_schema WHERE type='table' AND name=?;"
	var count int
	if err_ = db.QueryRow(checkSql, "order_ack").Scan(&count); err_ != nil {
		_ = db.Close()
		return nil, errs.New(core.ErrDbReadFail, err_)
	}
	if count == 0 {
		log.Info("init sqlite structure", zap.String("path", path))
		if _, err_ = db.Exec(ddlJournal); err_ != nil {
			_ = db.Close()
			return nil, errs.New(core.ErrDbExecFail, err_)
		}
	}
	return &Journal{db: db, Path: path}, nil
}

func (j *Journal) Append(recv *biz.OrderRecv) *errs.Error {
	j.lock.Lock()
	defer j.lock.Unlock()
	_, err_ := j.db.Exec(`INSERT INTO order_ack (local_id, code, intent, intent_qty, intent_price, status, qty, time, exg_ids)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, recv.LocalID, string(recv.Code), int(recv.Intent.Kind), recv.Intent.Qty,
		recv.Intent.Price, int(recv.Status.Kind), recv.Status.Qty, recv.Time, strings.Join(recv.ExchangeIDs, ","))
	if err_ != nil {
		return errs.New(core.ErrDbExecFail, err_)
	}
	return nil
}

/*
LoadHistory acks of orders whose id starts with prefix, optionally limited to one
ticker, in journal order
*/
func (j *Journal) LoadHistory(prefix string, code core.Ticker) ([]*biz.OrderRecv, *errs.Error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	sqlText := `SELECT local_id, code, intent, intent_qty, intent_price, status, qty, time, exg_ids
FROM order_ack WHERE local_id LIKE ?`
	args := []any{prefix + "%"}
	if code != "" {
		sqlText += " AND code = ?"
		args = append(args, string(code))
	}
	rows, err_ := j.db.Query(sqlText+" ORDER BY id", args...)
	if err_ != nil {
		return nil, errs.New(core.ErrDbReadFail, err_)
	}
	defer rows.Close()
	var res []*biz.OrderRecv
	for rows.Next() {
		var r biz.OrderRecv
		var codeStr, exgIds string
		var kind, status int
		err_ = rows.Scan(&r.LocalID, &codeStr, &kind, &r.Intent.Qty, &r.Intent.Price, &status, &r.Status.Qty,
			&r.Time, &exgIds)
		if err_ != nil {
			return nil, errs.New(core.ErrDbReadFail, err_)
		}
		r.Code = core.Ticker(codeStr)
		r.Intent.Kind = biz.IntentKind(kind)
		r.Status.Kind = biz.StatusKind(status)
		if exgIds != "" {
			r.ExchangeIDs = strings.Split(exgIds, ",")
		}
		res = append(res, &r)
	}
	if err_ = rows.Err(); err_ != nil {
		return nil, errs.New(core.ErrDbReadFail, err_)
	}
	return res, nil
}

func (j *Journal) Close() *errs.Error {
	if err_ := j.db.Close(); err_ != nil {
		return errs.New(core.ErrDbExecFail, err_)
	}
	return nil
}
