package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/fact"
)

// ScanFrom returns up to limit facts matching specs with a serial greater
// than after, ascending. Namespace and type are pushed into the query;
// meta and filter constraints are checked in process, re-querying until
// the page is full or the table is exhausted.
func (s *Store) ScanFrom(ctx context.Context, after uint64, specs []fact.Spec, limit int) ([]fact.Fact, error) {
	where, args := specClause(specs)
	var out []fact.Fact
	cursor := after
	for {
		want := limit - len(out)
		page, n, last, err := s.scanPage(ctx, cursor, where, args, specs, want, limit > 0)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		cursor = last
		if limit <= 0 || len(out) >= limit || n < want {
			return out, nil
		}
	}
}

// scanPage reads at most want rows after cursor. It returns the matching
// facts, the number of rows read and the serial of the last row read.
func (s *Store) scanPage(ctx context.Context, cursor uint64, where string, args []any, specs []fact.Spec, want int, bounded bool) ([]fact.Fact, int, uint64, error) {
	q := `SELECT serial, header, payload FROM fact WHERE serial > ?`
	qargs := append([]any{int64(cursor)}, args...)
	if where != "" {
		q += " AND (" + where + ")"
	}
	q += " ORDER BY serial ASC"
	if bounded {
		q += " LIMIT ?"
		qargs = append(qargs, want)
	}
	rows, err := s.db.QueryContext(ctx, q, qargs...)
	if err != nil {
		return nil, 0, cursor, errors.Wrap(err, "sqlite: scan")
	}
	defer rows.Close()

	var out []fact.Fact
	n := 0
	last := cursor
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, 0, cursor, err
		}
		n++
		last = f.Serial
		if len(specs) == 0 || fact.Matches(&f, specs) {
			out = append(out, f)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, cursor, errors.Wrap(err, "sqlite: iterate")
	}
	return out, n, last, nil
}

// specClause renders the namespace and type constraints of specs as an OR
// of conjunctions. An empty spec list yields no clause.
func specClause(specs []fact.Spec) (string, []any) {
	if len(specs) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(specs))
	args := make([]any, 0, 2*len(specs))
	for _, sp := range specs {
		if sp.Type != "" {
			parts = append(parts, "(ns = ? AND type = ?)")
			args = append(args, sp.Namespace, sp.Type)
			continue
		}
		parts = append(parts, "ns = ?")
		args = append(args, sp.Namespace)
	}
	return strings.Join(parts, " OR "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFact(r rowScanner) (fact.Fact, error) {
	var (
		serial  int64
		header  string
		payload []byte
	)
	if err := r.Scan(&serial, &header, &payload); err != nil {
		return fact.Fact{}, errors.Wrap(err, "sqlite: scan row")
	}
	var f fact.Fact
	if err := json.Unmarshal([]byte(header), &f.Header); err != nil {
		return fact.Fact{}, errors.Wrapf(err, "sqlite: decode header %d", serial)
	}
	f.Serial = uint64(serial)
	if len(payload) > 0 {
		f.Payload = payload
	}
	return f, nil
}

// LatestSerial returns the highest committed serial.
func (s *Store) LatestSerial(ctx context.Context) (uint64, error) {
	var serial int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(serial), 0) FROM fact`).Scan(&serial)
	if err != nil {
		return 0, errors.Wrap(err, "sqlite: latest serial")
	}
	return uint64(serial), nil
}

// SerialOf maps a fact id to its serial.
func (s *Store) SerialOf(ctx context.Context, id uuid.UUID) (uint64, bool, error) {
	var serial int64
	err := s.db.QueryRowContext(ctx, `SELECT serial FROM fact WHERE id = ?`, id.String()).Scan(&serial)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "sqlite: serial of")
	}
	return uint64(serial), true, nil
}

// FetchByID loads the fact with the given id.
func (s *Store) FetchByID(ctx context.Context, id uuid.UUID) (fact.Fact, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT serial, header, payload FROM fact WHERE id = ?`, id.String())
	f, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fact.Fact{}, false, nil
	}
	if err != nil {
		return fact.Fact{}, false, err
	}
	return f, true, nil
}

// EnumerateNamespaces lists every namespace with at least one fact.
func (s *Store) EnumerateNamespaces(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT ns FROM fact ORDER BY ns`)
}

// EnumerateTypes lists the non-empty fact types seen in ns.
func (s *Store) EnumerateTypes(ctx context.Context, ns string) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT type FROM fact WHERE ns = ? AND type <> '' ORDER BY type`, ns)
}

func (s *Store) strings(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: enumerate")
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "sqlite: enumerate")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
