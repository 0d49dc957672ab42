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

// Package copier delivers serialized rows to their destination: text files
// ready for a bulk import, or directly into PostgreSQL with COPY FROM STDIN.
package copier

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/gtfsrt/row"
)

// Table is the destination of a batch of rows.
type Table struct {
	Name    string
	Columns []string // in the order of row tokens
}

// Sink is the destination of serialized rows.
type Sink interface {
	// Copy writes all the rows into the table and returns the number of rows
	// written.
	Copy(ctx context.Context, t Table, rows []*row.Row) (int64, error)
}

// FileSink writes each table into its own file <Dir>/<table name><Ext>,
// replacing the previous content.
type FileSink struct {
	Dir       string
	Ext       string // default: ".txt"
	Separator string
}

var _ Sink = &FileSink{}

// NewFileSink creates a FileSink with the default file extension.
func NewFileSink(dir, sep string) *FileSink {
	return &FileSink{Dir: dir, Ext: ".txt", Separator: sep}
}

// FileName is the path of the file for the table.
func (s *FileSink) FileName(t Table) string {
	ext := s.Ext
	if ext == "" {
		ext = ".txt"
	}
	return filepath.Join(s.Dir, t.Name+ext)
}

// Copy implements Sink.
func (s *FileSink) Copy(ctx context.Context, t Table, rows []*row.Row) (int64, error) {
	if err := os.MkdirAll(s.Dir, 0777); err != nil {
		return 0, errors.Annotate(err, "failed to create directory '%s'", s.Dir)
	}
	fileName := s.FileName(t)
	f, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, errors.Annotate(err, "failed to open file for writing: '%s'", fileName)
	}
	defer f.Close()

	if err := row.WriteAll(f, s.Separator, rows); err != nil {
		return 0, errors.Annotate(err, "failed to write to '%s'", fileName)
	}
	return int64(len(rows)), nil
}

// rowsReader streams rows as one continuous text, materializing one line at a
// time.
type rowsReader struct {
	rows []*row.Row
	sep  string
	buf  []byte
}

var _ io.Reader = &rowsReader{}

func (r *rowsReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.buf) == 0 {
			if len(r.rows) == 0 {
				break
			}
			r.buf = r.rows[0].Bytes(r.sep)
			r.rows = r.rows[1:]
		}
		c := copy(p[n:], r.buf)
		r.buf = r.buf[c:]
		n += c
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// NewRowsReader returns a reader over the serialized rows.
func NewRowsReader(rows []*row.Row, sep string) io.Reader {
	return &rowsReader{rows: rows, sep: sep}
}
