package orm

import (
	"context"
	"strings"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/biz"
	"github.com/banbox/banfut/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const ddlPgJournal = `
CREATE TABLE IF NOT EXISTS order_ack (
	id BIGSERIAL PRIMARY KEY,
	local_id VARCHAR(64) NOT NULL,
	code VARCHAR(32) NOT NULL,
	intent SMALLINT NOT NULL,
	intent_qty DOUBLE PRECISION NOT NULL,
	intent_price DOUBLE PRECISION NOT NULL,
	status SMALLINT NOT NULL,
	qty DOUBLE PRECISION NOT NULL,
	time BIGINT NOT NULL,
	exg_ids TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_ack_local ON order_ack (local_id);
`

// PgJournal the same ack log as Journal, kept in postgres for multi-host setups
type PgJournal struct {
	pool *pgxpool.Pool
	URL  string
}

// IsPgURL reports whether a journal setting names a postgres database instead of a file
func IsPgURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

func OpenPgJournal(ctx context.Context, url string, maxConns int) (*PgJournal, *errs.Error) {
	poolCfg, err_ := pgxpool.ParseConfig(url)
	if err_ != nil {
		return nil, errs.New(core.ErrBadConfig, err_)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	pool, err_ := pgxpool.NewWithConfig(ctx, poolCfg)
	if err_ != nil {
		return nil, errs.New(core.ErrDbConnFail, err_)
	}
	if _, err_ = pool.Exec(ctx, ddlPgJournal); err_ != nil {
		pool.Close()
		return nil, errs.New(core.ErrDbExecFail, err_)
	}
	log.Info("pg journal ready", zap.String("db", poolCfg.ConnConfig.Database))
	return &PgJournal{pool: pool, URL: url}, nil
}

func (j *PgJournal) Append(recv *biz.OrderRecv) *errs.Error {
	_, err_ := j.pool.Exec(context.Background(), `INSERT INTO order_ack (local_id, code, intent, intent_qty,
intent_price, status, qty, time, exg_ids) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		recv.LocalID, string(recv.Code), int16(recv.Intent.Kind), recv.Intent.Qty, recv.Intent.Price,
		int16(recv.Status.Kind), recv.Status.Qty, recv.Time, strings.Join(recv.ExchangeIDs, ","))
	if err_ != nil {
		return errs.New(core.ErrDbExecFail, err_)
	}
	return nil
}

func (j *PgJournal) LoadHistory(prefix string, code core.Ticker) ([]*biz.OrderRecv, *errs.Error) {
	sqlText := `SELECT local_id, code, intent, intent_qty, intent_price, status, qty, time, exg_ids
FROM order_ack WHERE local_id LIKE $1`
	args := []any{prefix + "%"}
	if code != "" {
		sqlText += " AND code = $2"
		args = append(args, string(code))
	}
	rows, err_ := j.pool.Query(context.Background(), sqlText+" ORDER BY id", args...)
	if err_ != nil {
		return nil, errs.New(core.ErrDbReadFail, err_)
	}
	res, err_ := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*biz.OrderRecv, error) {
		var r biz.OrderRecv
		var codeStr, exgIds string
		var kind, status int16
		err := row.Scan(&r.LocalID, &codeStr, &kind, &r.Intent.Qty, &r.Intent.Price, &status,
			&r.Status.Qty, &r.Time, &exgIds)
		if err != nil {
			return nil, err
		}
		r.Code = core.Ticker(codeStr)
		r.Intent.Kind = biz.IntentKind(kind)
		r.Status.Kind = biz.StatusKind(status)
		if exgIds != "" {
			r.ExchangeIDs = strings.Split(exgIds, ",")
		}
		return &r, nil
	})
	if err_ != nil {
		return nil, errs.New(core.ErrDbReadFail, err_)
	}
	return res, nil
}

func (j *PgJournal) Close() *errs.Error {
	j.pool.Close()
	return nil
}

// AckStore the journal backends share this surface
type AckStore interface {
	Append(recv *biz.OrderRecv) *errs.Error
	LoadHistory(prefix string, code core.Ticker) ([]*biz.OrderRecv, *errs.Error)
	Close() *errs.Error
}

// Open picks postgres for a postgres url and sqlite for anything else
func Open(ctx context.Context, target string) (AckStore, *errs.Error) {
	if IsPgURL(target) {
		j, err := OpenPgJournal(ctx, target, 0)
		if err != nil {
			return nil, err
		}
		return j, nil
	}
	j, err := OpenJournal(target, 5000)
	if err != nil {
		return nil, err
	}
	return j, nil
}
