package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradecore/internal/domain"
)

// execer is the subset of *sql.DB / *sql.Tx this package needs, letting
// SQLiteRepository and its transaction view share one implementation.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository implements Repository against a *DB.
type SQLiteRepository struct {
	db *DB
	x  execer // db.conn, or the active *sql.Tx inside WithinTx
}

// NewSQLiteRepository builds a Repository backed by an already-open DB.
func NewSQLiteRepository(db *DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, x: db.conn}
}

// WithinTx implements Repository.
func (r *SQLiteRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin tx: %w", err)
	}

	txRepo := &SQLiteRepository{db: r.db, x: tx}
	if err := fn(ctx, txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("repository: tx failed (%v) and rollback failed: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: commit tx: %w", err)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func scanTime(v sql.NullTime) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return v.Time
}

func decStr(d decimal.Decimal) string { return d.String() }

func nullDecStr(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

// AddTrade implements Repository.
func (r *SQLiteRepository) AddTrade(ctx context.Context, t *domain.Trade) error {
	res, err := r.x.ExecContext(ctx, `
		INSERT INTO trades (strategy_exec_id, base_asset, quote_asset, trade_type, trade_state, init_tmstmp, open_tmstmp, close_tmstmp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.StrategyExecID, t.BaseAsset, t.QuoteAsset, t.Type.Code(), t.State.Code(),
		nullTime(t.InitTmstmp), nullTime(t.OpenTmstmp), nullTime(t.CloseTmstmp))
	if err != nil {
		return fmt.Errorf("repository: insert trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("repository: trade last insert id: %w", err)
	}
	t.TradeID = id
	return nil
}

// SaveTrade implements Repository.
func (r *SQLiteRepository) SaveTrade(ctx context.Context, t domain.Trade) error {
	_, err := r.x.ExecContext(ctx, `
		UPDATE trades SET strategy_exec_id=?, base_asset=?, quote_asset=?, trade_type=?, trade_state=?,
			init_tmstmp=?, open_tmstmp=?, close_tmstmp=?
		WHERE trade_id=?
	`, t.StrategyExecID, t.BaseAsset, t.QuoteAsset, t.Type.Code(), t.State.Code(),
		nullTime(t.InitTmstmp), nullTime(t.OpenTmstmp), nullTime(t.CloseTmstmp), t.TradeID)
	if err != nil {
		return fmt.Errorf("repository: update trade %d: %w", t.TradeID, err)
	}
	return nil
}

// GetTrade implements Repository.
func (r *SQLiteRepository) GetTrade(ctx context.Context, tradeID int64) (domain.Trade, error) {
	row := r.x.QueryRowContext(ctx, `
		SELECT trade_id, strategy_exec_id, base_asset, quote_asset, trade_type, trade_state, init_tmstmp, open_tmstmp, close_tmstmp
		FROM trades WHERE trade_id = ?
	`, tradeID)
	return scanTrade(row)
}

func scanTrade(row *sql.Row) (domain.Trade, error) {
	var (
		t                                  domain.Trade
		tradeType, tradeState              int
		initT, openT, closeT               sql.NullTime
	)
	if err := row.Scan(&t.TradeID, &t.StrategyExecID, &t.BaseAsset, &t.QuoteAsset, &tradeType, &tradeState, &initT, &openT, &closeT); err != nil {
		if err == sql.ErrNoRows {
			return domain.Trade{}, domain.ErrNotFound
		}
		return domain.Trade{}, fmt.Errorf("repository: scan trade: %w", err)
	}
	t.Type = domain.TradeType(tradeType)
	if st, ok := domain.TradeStateFromCode(tradeState); ok {
		t.State = st
	}
	t.InitTmstmp, t.OpenTmstmp, t.CloseTmstmp = scanTime(initT), scanTime(openT), scanTime(closeT)
	return t, nil
}

// AddOrder implements Repository. IntOrderRef may be empty at insert time —
// the engine derives it from the assigned OrderID and writes it back via a
// follow-up SaveOrder within the same commit unit.
func (r *SQLiteRepository) AddOrder(ctx context.Context, o *domain.Order) error {
	res, err := r.x.ExecContext(ctx, `
		INSERT INTO orders (trade_id, order_side, order_type, qty, price, stop_price, order_state,
			int_order_ref, ext_order_ref, init_tmstmp, open_tmstmp, filled_tmstmp, lst_upd_tmstmp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.TradeID, int(o.Side), int(o.Type), decStr(o.Qty), nullDecStr(o.Price), nullDecStr(o.StopPrice),
		o.State.Code(), o.IntOrderRef, o.ExtOrderRef,
		nullTime(o.InitTmstmp), nullTime(o.OpenTmstmp), nullTime(o.FilledTmstmp), nullTime(o.LstUpdTmstmp))
	if err != nil {
		return fmt.Errorf("repository: insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("repository: order last insert id: %w", err)
	}
	o.OrderID = id
	return nil
}

// SaveOrder implements Repository.
func (r *SQLiteRepository) SaveOrder(ctx context.Context, o domain.Order) error {
	_, err := r.x.ExecContext(ctx, `
		UPDATE orders SET trade_id=?, order_side=?, order_type=?, qty=?, price=?, stop_price=?, order_state=?,
			int_order_ref=?, ext_order_ref=?, init_tmstmp=?, open_tmstmp=?, filled_tmstmp=?, lst_upd_tmstmp=?
		WHERE order_id=?
	`, o.TradeID, int(o.Side), int(o.Type), decStr(o.Qty), nullDecStr(o.Price), nullDecStr(o.StopPrice),
		o.State.Code(), o.IntOrderRef, o.ExtOrderRef,
		nullTime(o.InitTmstmp), nullTime(o.OpenTmstmp), nullTime(o.FilledTmstmp), nullTime(o.LstUpdTmstmp), o.OrderID)
	if err != nil {
		return fmt.Errorf("repository: update order %d: %w", o.OrderID, err)
	}
	return nil
}

// GetOrder implements Repository.
func (r *SQLiteRepository) GetOrder(ctx context.Context, intOrderRef string) (domain.Order, error) {
	row := r.x.QueryRowContext(ctx, orderSelectColumns+` FROM orders WHERE int_order_ref = ?`, intOrderRef)
	return scanOrder(row)
}

const orderSelectColumns = `
	SELECT order_id, trade_id, order_side, order_type, qty, price, stop_price, order_state,
		int_order_ref, ext_order_ref, init_tmstmp, open_tmstmp, filled_tmstmp, lst_upd_tmstmp
`

func scanOrder(row *sql.Row) (domain.Order, error) {
	var (
		o                                       domain.Order
		side, typ, state                        int
		price, stopPrice                        sql.NullString
		qty                                     string
		initT, openT, filledT, lstUpdT          sql.NullTime
	)
	if err := row.Scan(&o.OrderID, &o.TradeID, &side, &typ, &qty, &price, &stopPrice, &state,
		&o.IntOrderRef, &o.ExtOrderRef, &initT, &openT, &filledT, &lstUpdT); err != nil {
		if err == sql.ErrNoRows {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("repository: scan order: %w", err)
	}
	return hydrateOrder(o, side, typ, state, qty, price, stopPrice, initT, openT, filledT, lstUpdT)
}

func hydrateOrder(o domain.Order, side, typ, state int, qty string, price, stopPrice sql.NullString, initT, openT, filledT, lstUpdT sql.NullTime) (domain.Order, error) {
	o.Side = domain.OrderSide(side)
	o.Type = domain.OrderType(typ)
	if st, ok := domain.OrderStateFromCode(state); ok {
		o.State = st
	}
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return domain.Order{}, fmt.Errorf("repository: parse qty %q: %w", qty, err)
	}
	o.Qty = q
	if price.Valid {
		p, err := decimal.NewFromString(price.String)
		if err != nil {
			return domain.Order{}, fmt.Errorf("repository: parse price %q: %w", price.String, err)
		}
		o.Price = decimal.NullDecimal{Decimal: p, Valid: true}
	}
	if stopPrice.Valid {
		p, err := decimal.NewFromString(stopPrice.String)
		if err != nil {
			return domain.Order{}, fmt.Errorf("repository: parse stop_price %q: %w", stopPrice.String, err)
		}
		o.StopPrice = decimal.NullDecimal{Decimal: p, Valid: true}
	}
	o.InitTmstmp, o.OpenTmstmp, o.FilledTmstmp, o.LstUpdTmstmp = scanTime(initT), scanTime(openT), scanTime(filledT), scanTime(lstUpdT)
	return o, nil
}

// GetAllOrders implements Repository.
func (r *SQLiteRepository) GetAllOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	query := orderSelectColumns + ` FROM orders WHERE 1=1`
	var args []any

	if f.HasTradeID {
		query += ` AND trade_id = ?`
		args = append(args, f.TradeID)
	}
	if f.StrategyExecID != "" {
		query += ` AND trade_id IN (SELECT trade_id FROM trades WHERE strategy_exec_id = ?)`
		args = append(args, f.StrategyExecID)
	}
	if len(f.States) > 0 {
		query += ` AND order_state IN (`
		for i, s := range f.States {
			if i > 0 {
				query += `,`
			}
			query += `?`
			args = append(args, s.Code())
		}
		query += `)`
	}
	query += ` ORDER BY order_id ASC`

	rows, err := r.x.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: query orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var (
			o                               domain.Order
			side, typ, state                int
			price, stopPrice                sql.NullString
			qty                             string
			initT, openT, filledT, lstUpdT  sql.NullTime
		)
		if err := rows.Scan(&o.OrderID, &o.TradeID, &side, &typ, &qty, &price, &stopPrice, &state,
			&o.IntOrderRef, &o.ExtOrderRef, &initT, &openT, &filledT, &lstUpdT); err != nil {
			return nil, fmt.Errorf("repository: scan order row: %w", err)
		}
		hydrated, err := hydrateOrder(o, side, typ, state, qty, price, stopPrice, initT, openT, filledT, lstUpdT)
		if err != nil {
			return nil, err
		}
		out = append(out, hydrated)
	}
	return out, rows.Err()
}

// GetPendingOrders implements Repository: orders whose state is in the
// pending set defined in spec.md §4.3.
func (r *SQLiteRepository) GetPendingOrders(ctx context.Context, tradeID int64) ([]domain.Order, error) {
	return r.GetAllOrders(ctx, OrderFilter{
		TradeID:    tradeID,
		HasTradeID: true,
		States:     domain.PendingOrderStates,
	})
}
