package repository

// schema is applied with CREATE TABLE IF NOT EXISTS, the teacher's
// (pkg/db/schema.go) convention. Decimal columns are TEXT, never REAL —
// spec.md §9 mandates string-based decimal arithmetic end to end, which
// includes never passing a quantity or price through SQLite's REAL type.
const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS trades (
    trade_id         INTEGER PRIMARY KEY AUTOINCREMENT,
    strategy_exec_id TEXT NOT NULL,
    base_asset       TEXT NOT NULL,
    quote_asset      TEXT NOT NULL,
    trade_type       INTEGER NOT NULL,
    trade_state      INTEGER NOT NULL,
    init_tmstmp      DATETIME,
    open_tmstmp      DATETIME,
    close_tmstmp     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_trades_state ON trades(trade_state);
CREATE INDEX IF NOT EXISTS idx_trades_exec ON trades(strategy_exec_id);

CREATE TABLE IF NOT EXISTS orders (
    order_id       INTEGER PRIMARY KEY AUTOINCREMENT,
    trade_id       INTEGER NOT NULL REFERENCES trades(trade_id),
    order_side     INTEGER NOT NULL,
    order_type     INTEGER NOT NULL,
    qty            TEXT NOT NULL,
    price          TEXT,
    stop_price     TEXT,
    order_state    INTEGER NOT NULL,
    int_order_ref  TEXT NOT NULL UNIQUE,
    ext_order_ref  TEXT NOT NULL DEFAULT '',
    init_tmstmp    DATETIME,
    open_tmstmp    DATETIME,
    filled_tmstmp  DATETIME,
    lst_upd_tmstmp DATETIME
);

CREATE INDEX IF NOT EXISTS idx_orders_trade ON orders(trade_id);
CREATE INDEX IF NOT EXISTS idx_orders_state ON orders(order_state);
CREATE INDEX IF NOT EXISTS idx_orders_int_ref ON orders(int_order_ref);

CREATE TABLE IF NOT EXISTS symbol_rules (
    base_asset            TEXT NOT NULL,
    quote_asset           TEXT NOT NULL,
    min_qty               TEXT NOT NULL,
    max_qty                TEXT NOT NULL,
    min_qty_denom         TEXT NOT NULL,
    min_price             TEXT NOT NULL,
    max_price             TEXT NOT NULL,
    min_price_denom       TEXT NOT NULL,
    min_notional          TEXT NOT NULL,
    base_asset_precision  INTEGER NOT NULL,
    quote_asset_precision INTEGER NOT NULL,
    PRIMARY KEY (base_asset, quote_asset)
);
`
