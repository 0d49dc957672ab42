// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package copier

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/gtfsrt/row"
	"github.com/stockparfait/logging"
)

// copyFromer is the part of *pgconn.PgConn used by PostgresSink.
type copyFromer interface {
	CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error)
}

// PostgresSink loads rows with COPY ... FROM STDIN in text format. Empty
// tokens are loaded as NULL.
type PostgresSink struct {
	conn      copyFromer
	closer    func(ctx context.Context) error
	Separator string // must be a single byte
}

var _ Sink = &PostgresSink{}

// ConnectPostgres opens a connection using a libpq-style DSN or URL.
func ConnectPostgres(ctx context.Context, dsn, sep string) (*PostgresSink, error) {
	if err := checkSeparator(sep); err != nil {
		return nil, err
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, errors.Annotate(err, "failed to connect to database")
	}
	logging.Debugf(ctx, "connected to database %s", conn.Config().Database)
	return &PostgresSink{conn: conn.PgConn(), closer: conn.Close, Separator: sep}, nil
}

// Close the database connection.
func (s *PostgresSink) Close(ctx context.Context) error {
	if s.closer == nil {
		return nil
	}
	return errors.Annotate(s.closer(ctx), "failed to close database connection")
}

func checkSeparator(sep string) error {
	if len(sep) != 1 {
		return errors.Reason("COPY separator must be a single byte, got %q", sep)
	}
	if sep == "'" || sep == "\\" || sep == "\n" || sep == "\r" {
		return errors.Reason("COPY separator cannot be %q", sep)
	}
	return nil
}

// CopySQL is the COPY statement for the table.
func CopySQL(t Table, sep string) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	delim := fmt.Sprintf("'%s'", sep)
	if sep == "\t" {
		delim = `E'\t'`
	}
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT text, DELIMITER %s, NULL '')",
		pgx.Identifier{t.Name}.Sanitize(), strings.Join(cols, ", "), delim)
}

// Copy implements Sink.
func (s *PostgresSink) Copy(ctx context.Context, t Table, rows []*row.Row) (int64, error) {
	if err := checkSeparator(s.Separator); err != nil {
		return 0, err
	}
	sql := CopySQL(t, s.Separator)
	logging.Debugf(ctx, "%s", sql)
	tag, err := s.conn.CopyFrom(ctx, NewRowsReader(rows, s.Separator), sql)
	if err != nil {
		return 0, errors.Annotate(err, "failed to copy %d rows into %s", len(rows), t.Name)
	}
	return tag.RowsAffected(), nil
}
