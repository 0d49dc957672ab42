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

// Package row serializes typed values into delimiter-separated text lines for
// database bulk loading.
//
// A typical use:
//
//	r := row.New()
//	r.Add("stop_1")
//	r.AddInt(42)
//	r.AddNull()
//	r.AddFloat64(3.5)
//	r.String(",") // "stop_1,42,,3.5\n"
//
// A null is an empty token, which is also what Add("") produces. This is the
// null convention of PostgreSQL COPY with NULL ''. Values are neither quoted
// nor escaped: a value containing the separator or a newline must be
// sanitized by the caller.
package row

import (
	"strconv"
	"strings"
)

// Row accumulates the tokens of one output record in column order.
type Row struct {
	values []string
}

// New creates an empty Row.
func New() *Row {
	return &Row{}
}

// Add appends a text value verbatim.
func (r *Row) Add(value string) {
	r.values = append(r.values, value)
}

// AddInt appends a decimal integer.
func (r *Row) AddInt(value int) {
	r.Add(strconv.Itoa(value))
}

// AddInt64 appends a decimal 64-bit integer.
func (r *Row) AddInt64(value int64) {
	r.Add(strconv.FormatInt(value, 10))
}

// AddUint32 appends a decimal unsigned integer.
func (r *Row) AddUint32(value uint32) {
	r.Add(strconv.FormatUint(uint64(value), 10))
}

// AddUint64 appends a decimal unsigned 64-bit integer.
func (r *Row) AddUint64(value uint64) {
	r.Add(strconv.FormatUint(value, 10))
}

// AddFloat32 appends the shortest text which parses back into the same
// float32.
func (r *Row) AddFloat32(value float32) {
	r.Add(strconv.FormatFloat(float64(value), 'g', -1, 32))
}

// AddFloat64 appends the shortest text which parses back into the same
// float64.
func (r *Row) AddFloat64(value float64) {
	r.Add(strconv.FormatFloat(value, 'g', -1, 64))
}

// AddBool appends "t" or "f".
func (r *Row) AddBool(value bool) {
	if value {
		r.Add("t")
		return
	}
	r.Add("f")
}

// AddNull appends an empty token.
func (r *Row) AddNull() {
	r.Add("")
}

// AddNulls appends count empty tokens. A non-positive count is a no-op.
func (r *Row) AddNulls(count int) {
	for i := 0; i < count; i++ {
		r.AddNull()
	}
}

// Len is the number of tokens added so far.
func (r *Row) Len() int {
	return len(r.values)
}

// Values returns a copy of the tokens.
func (r *Row) Values() []string {
	res := make([]string, len(r.values))
	copy(res, r.values)
	return res
}

// String joins the tokens with the separator and terminates the line with
// "\n". It does not modify the Row.
func (r *Row) String(sep string) string {
	var b strings.Builder
	size := len(r.values)*len(sep) + 1
	for _, v := range r.values {
		size += len(v)
	}
	b.Grow(size)
	for i, v := range r.values {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(v)
	}
	b.WriteByte('\n')
	return b.String()
}

// Bytes is String encoded as UTF-8.
func (r *Row) Bytes(sep string) []byte {
	return []byte(r.String(sep))
}
