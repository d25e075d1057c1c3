package journal

import (
	"context"
	"database/sql"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresSink persists join/leave/summary events to a Postgres table,
// migrated with goose on construction.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to dsn and applies pending migrations.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "connect journal database")
	}

	migrationDB, err := sql.Open("pgx", dsn)
	if err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "open migration connection")
	}
	defer migrationDB.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "set goose dialect")
	}
	if err := goose.UpContext(ctx, migrationDB, "migrations"); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "apply journal migrations")
	}

	return &PostgresSink{pool: pool}, nil
}

func (p *PostgresSink) RecordJoin(ctx context.Context, slot uint32, frame uint32) error {
	if _, err := p.pool.Exec(ctx, `INSERT INTO session_events (kind, slot, frame) VALUES ('join', $1, $2)`, slot, frame); err != nil {
		return eris.Wrap(err, "record join")
	}
	return nil
}

func (p *PostgresSink) RecordLeave(ctx context.Context, slot uint32, frame uint32) error {
	if _, err := p.pool.Exec(ctx, `INSERT INTO session_events (kind, slot, frame) VALUES ('leave', $1, $2)`, slot, frame); err != nil {
		return eris.Wrap(err, "record leave")
	}
	return nil
}

func (p *PostgresSink) RecordGameSummary(ctx context.Context, summary Summary) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO session_summaries (start_frame, end_frame, peak_clients) VALUES ($1, $2, $3)`,
		summary.StartFrame, summary.EndFrame, summary.PeakClients)
	if err != nil {
		return eris.Wrap(err, "record game summary")
	}
	return nil
}

func (p *PostgresSink) Close(ctx context.Context) error {
	p.pool.Close()
	return nil
}

var _ Sink = (*PostgresSink)(nil)
