package postgres

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/fact"
)

// ScanFrom returns up to limit facts matching specs with a serial greater
// than after, ascending. Namespace and type are pushed into the query;
// meta and filter constraints are checked in process.
func (s *Store) ScanFrom(ctx context.Context, after uint64, specs []fact.Spec, limit int) ([]fact.Fact, error) {
	var out []fact.Fact
	cursor := after
	for {
		want := limit - len(out)
		q, args := scanQuery(cursor, specs, want, limit > 0)
		page, n, last, err := s.scanPage(ctx, q, args, specs, cursor)
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

func (s *Store) scanPage(ctx context.Context, q string, args []any, specs []fact.Spec, cursor uint64) ([]fact.Fact, int, uint64, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, cursor, errors.Wrap(err, "postgres: scan")
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
		return nil, 0, cursor, errors.Wrap(err, "postgres: iterate")
	}
	return out, n, last, nil
}

// scanQuery builds the page query with numbered placeholders.
func scanQuery(after uint64, specs []fact.Spec, limit int, bounded bool) (string, []any) {
	var b strings.Builder
	args := []any{int64(after)}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	b.WriteString(`SELECT serial, header, payload FROM fact WHERE serial > $1`)
	if len(specs) > 0 {
		b.WriteString(" AND (")
		for i, sp := range specs {
			if i > 0 {
				b.WriteString(" OR ")
			}
			if sp.Type != "" {
				b.WriteString("(ns = " + next(sp.Namespace) + " AND type = " + next(sp.Type) + ")")
				continue
			}
			b.WriteString("ns = " + next(sp.Namespace))
		}
		b.WriteString(")")
	}
	b.WriteString(" ORDER BY serial ASC")
	if bounded {
		b.WriteString(" LIMIT " + next(limit))
	}
	return b.String(), args
}

func scanFact(r pgx.Row) (fact.Fact, error) {
	var (
		serial  int64
		header  []byte
		payload []byte
	)
	if err := r.Scan(&serial, &header, &payload); err != nil {
		return fact.Fact{}, err
	}
	var f fact.Fact
	if err := json.Unmarshal(header, &f.Header); err != nil {
		return fact.Fact{}, errors.Wrapf(err, "postgres: decode header %d", serial)
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
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(serial), 0) FROM fact`).Scan(&serial); err != nil {
		return 0, errors.Wrap(err, "postgres: latest serial")
	}
	return uint64(serial), nil
}

// SerialOf maps a fact id to its serial.
func (s *Store) SerialOf(ctx context.Context, id uuid.UUID) (uint64, bool, error) {
	var serial int64
	err := s.pool.QueryRow(ctx, `SELECT serial FROM fact WHERE id = $1`, id).Scan(&serial)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "postgres: serial of")
	}
	return uint64(serial), true, nil
}

// FetchByID loads the fact with the given id.
func (s *Store) FetchByID(ctx context.Context, id uuid.UUID) (fact.Fact, bool, error) {
	f, err := scanFact(s.pool.QueryRow(ctx, `SELECT serial, header, payload FROM fact WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return fact.Fact{}, false, nil
	}
	if err != nil {
		return fact.Fact{}, false, errors.Wrap(err, "postgres: fetch")
	}
	return f, true, nil
}

// EnumerateNamespaces lists every namespace with at least one fact.
func (s *Store) EnumerateNamespaces(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT ns FROM fact ORDER BY ns`)
}

// EnumerateTypes lists the non-empty fact types seen in ns.
func (s *Store) EnumerateTypes(ctx context.Context, ns string) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT type FROM fact WHERE ns = $1 AND type <> '' ORDER BY type`, ns)
}

func (s *Store) strings(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: enumerate")
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "postgres: enumerate")
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
