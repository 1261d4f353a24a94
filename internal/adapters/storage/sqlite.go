package storage

// sqlite.go: diario de auditoría del merger.
//
// Estrategia:
//   - `cycles`: una fila por ciclo con el recuento por estado y el error del ciclo.
//   - `submissions`: una fila por envío (relayer u on-chain), con la respuesta opaca.
//   - Solo escritura desde el detector: el cooldown de dedup nunca se reconstruye
//     desde aquí, un reinicio empieza con la memoria vacía.
//   - Prune automático al arrancar: todo lo anterior a 30 días.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
    id          TEXT PRIMARY KEY,
    started_at  DATETIME NOT NULL,
    duration_ms INTEGER  NOT NULL DEFAULT 0,
    positions   INTEGER  NOT NULL DEFAULT 0,
    candidates  INTEGER  NOT NULL DEFAULT 0,
    submitted   INTEGER  NOT NULL DEFAULT 0,
    cooldown    INTEGER  NOT NULL DEFAULT 0,
    skipped     INTEGER  NOT NULL DEFAULT 0,
    failed      INTEGER  NOT NULL DEFAULT 0,
    deferred    INTEGER  NOT NULL DEFAULT 0,
    error_class TEXT,
    error       TEXT
);

CREATE TABLE IF NOT EXISTS submissions (
    id           TEXT PRIMARY KEY,
    kind         TEXT     NOT NULL,
    scheme       TEXT     NOT NULL,
    event_slug   TEXT,
    target       TEXT     NOT NULL,
    index_set    TEXT,
    amount       TEXT     NOT NULL,
    base_units   TEXT     NOT NULL,
    nonce        TEXT,
    tx_hash      TEXT,
    response     TEXT,
    dry_run      INTEGER  NOT NULL DEFAULT 0,
    error        TEXT,
    submitted_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cycles_at      ON cycles(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_submissions_at ON submissions(submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_submissions_tg ON submissions(target);
`

const retention = 30 * 24 * time.Hour

// SQLiteJournal implementa ports.Journal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia datos antiguos.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db}
	j.pruneOld(context.Background(), time.Now().UTC().Add(-retention))
	return j, nil
}

// SaveSubmission inserta un envío. Reintentar con el mismo ID no duplica.
func (j *SQLiteJournal) SaveSubmission(ctx context.Context, sub domain.Submission) error {
	dryRun := 0
	if sub.DryRun {
		dryRun = 1
	}
	if _, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO submissions
			(id, kind, scheme, event_slug, target, index_set, amount, base_units,
			 nonce, tx_hash, response, dry_run, error, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, string(sub.Kind), sub.Scheme, sub.EventSlug, sub.Target, sub.IndexSet,
		sub.Amount.String(), sub.BaseUnits, sub.Nonce, sub.TxHash, sub.Response,
		dryRun, sub.Error, sub.SubmittedAt.UTC(),
	); err != nil {
		return fmt.Errorf("storage.SaveSubmission: %w", err)
	}
	return nil
}

// SaveCycle persiste el resumen del ciclo.
func (j *SQLiteJournal) SaveCycle(ctx context.Context, r domain.CycleResult) error {
	var errText, errClass sql.NullString
	if r.Err != nil {
		errText = sql.NullString{String: r.Err.Error(), Valid: true}
		errClass = sql.NullString{String: domain.ErrorClass(r.Err), Valid: true}
	}
	if _, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cycles
			(id, started_at, duration_ms, positions, candidates,
			 submitted, cooldown, skipped, failed, deferred, error_class, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC(), r.Duration.Milliseconds(), r.Positions, r.Candidates,
		r.Count(domain.StatusSubmitted)+r.Count(domain.StatusDryRun),
		r.Count(domain.StatusCooldown),
		r.Count(domain.StatusSkipped),
		r.Count(domain.StatusFailed),
		r.Count(domain.StatusDeferred),
		errClass, errText,
	); err != nil {
		return fmt.Errorf("storage.SaveCycle: %w", err)
	}
	return nil
}

// RecentSubmissions devuelve los últimos n envíos, más reciente primero.
func (j *SQLiteJournal) RecentSubmissions(ctx context.Context, n int) ([]domain.Submission, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, scheme, event_slug, target, index_set, amount, base_units,
		       nonce, tx_hash, response, dry_run, error, submitted_at
		FROM submissions
		ORDER BY submitted_at DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentSubmissions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		var (
			s                                                    domain.Submission
			kind, amount                                         string
			eventSlug, indexSet, nonce, txHash, response, errMsg sql.NullString
			dryRun                                               int
		)
		if err := rows.Scan(&s.ID, &kind, &s.Scheme, &eventSlug, &s.Target, &indexSet, &amount,
			&s.BaseUnits, &nonce, &txHash, &response, &dryRun, &errMsg, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("storage.RecentSubmissions: scan: %w", err)
		}
		s.Kind = domain.SubmissionKind(kind)
		s.Amount, _ = decimal.NewFromString(amount)
		s.EventSlug = eventSlug.String
		s.IndexSet = indexSet.String
		s.Nonce = nonce.String
		s.TxHash = txHash.String
		s.Response = response.String
		s.Error = errMsg.String
		s.DryRun = dryRun == 1
		out = append(out, s)
	}
	return out, rows.Err()
}

// CycleCount devuelve el número de ciclos registrados.
func (j *SQLiteJournal) CycleCount(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.CycleCount: %w", err)
	}
	return n, nil
}

// Close cierra la conexión a la base de datos.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (j *SQLiteJournal) pruneOld(ctx context.Context, cutoff time.Time) {
	j.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, cutoff)
	j.db.ExecContext(ctx, `DELETE FROM submissions WHERE submitted_at < ?`, cutoff)
}
