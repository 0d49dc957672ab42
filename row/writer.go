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

package row

import (
	"bufio"
	"io"

	"github.com/stockparfait/errors"
)

// Writer streams rows to an io.Writer using a fixed separator. Call Flush when
// done.
type Writer struct {
	w     *bufio.Writer
	sep   string
	count int
}

// NewWriter creates a Writer.
func NewWriter(w io.Writer, sep string) *Writer {
	return &Writer{w: bufio.NewWriter(w), sep: sep}
}

// Write one or more rows.
func (w *Writer) Write(rows ...*Row) error {
	for _, r := range rows {
		if _, err := w.w.WriteString(r.String(w.sep)); err != nil {
			return errors.Annotate(err, "failed to write row %d", w.count+1)
		}
		w.count++
	}
	return nil
}

// Flush buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	return errors.Annotate(w.w.Flush(), "failed to flush written rows")
}

// Count is the number of rows written so far.
func (w *Writer) Count() int {
	return w.count
}

// WriteAll writes the rows to w and flushes them.
func WriteAll(w io.Writer, sep string, rows []*Row) error {
	rw := NewWriter(w, sep)
	if err := rw.Write(rows...); err != nil {
		return err
	}
	return rw.Flush()
}
