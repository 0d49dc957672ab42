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
	"bytes"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stockparfait/errors"

	. "github.com/smartystreets/goconvey/convey"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.Reason("disk full")
}

func TestRow(t *testing.T) {
	t.Parallel()

	Convey("Row serializes", t, func() {
		Convey("mixed values", func() {
			r := New()
			r.Add("stop_1")
			r.AddInt(42)
			r.AddNull()
			r.AddFloat64(3.5)
			So(r.String(","), ShouldEqual, "stop_1,42,,3.5\n")
			So(r.Bytes(","), ShouldResemble, []byte("stop_1,42,,3.5\n"))
			So(r.Len(), ShouldEqual, 4)
		})

		Convey("empty row is a bare newline", func() {
			So(New().String(","), ShouldEqual, "\n")
		})

		Convey("single token has no separator", func() {
			r := New()
			r.Add("x")
			So(r.String("\t"), ShouldEqual, "x\n")
		})

		Convey("multi-character separator", func() {
			r := New()
			r.Add("a")
			r.AddNull()
			r.Add("b")
			So(r.String("||"), ShouldEqual, "a||||b\n")
		})

		Convey("is idempotent", func() {
			r := New()
			r.Add("a")
			r.AddInt64(-7)
			s1 := r.String("\t")
			So(r.String("\t"), ShouldEqual, s1)
			So(r.Values(), ShouldResemble, []string{"a", "-7"})
		})

		Convey("Values is a copy", func() {
			r := New()
			r.Add("a")
			v := r.Values()
			v[0] = "b"
			So(r.String(","), ShouldEqual, "a\n")
		})

		Convey("booleans and unsigned", func() {
			r := New()
			r.AddBool(true)
			r.AddBool(false)
			r.AddUint32(math.MaxUint32)
			r.AddUint64(math.MaxUint64)
			So(r.String(","), ShouldEqual, "t,f,4294967295,18446744073709551615\n")
		})
	})

	Convey("Nulls", t, func() {
		Convey("AddNull is an empty token", func() {
			r := New()
			r.AddNull()
			r.AddNull()
			So(r.Values(), ShouldResemble, []string{"", ""})
			So(r.String(","), ShouldEqual, ",\n")
		})

		Convey("AddNulls adds count tokens", func() {
			r := New()
			r.Add("a")
			r.AddNulls(3)
			So(r.Len(), ShouldEqual, 4)
			So(r.String(","), ShouldEqual, "a,,,\n")
		})

		Convey("AddNulls(0) and negative counts are no-ops", func() {
			r := New()
			r.Add("a")
			r.AddNulls(0)
			r.AddNulls(-5)
			So(r.Len(), ShouldEqual, 1)
			So(r.String(","), ShouldEqual, "a\n")
		})

		Convey("null and empty text are the same token", func() {
			r1 := New()
			r1.AddNull()
			r2 := New()
			r2.Add("")
			So(r1.String(","), ShouldEqual, r2.String(","))
		})
	})

	Convey("Splitting reproduces the tokens", t, func() {
		tokens := []string{"a", "", "b c", "", "", "42", "-1.5e-07"}
		r := New()
		for _, tk := range tokens {
			r.Add(tk)
		}
		for _, sep := range []string{",", "\t", "|", "::"} {
			line := r.String(sep)
			So(strings.HasSuffix(line, "\n"), ShouldBeTrue)
			So(strings.Split(strings.TrimSuffix(line, "\n"), sep), ShouldResemble, tokens)
		}
	})

	Convey("Numbers round-trip", t, func() {
		Convey("integers", func() {
			ints := []int{0, 1, -1, math.MaxInt32, math.MinInt32}
			for _, v := range ints {
				r := New()
				r.AddInt(v)
				p, err := strconv.Atoi(r.Values()[0])
				So(err, ShouldBeNil)
				So(p, ShouldEqual, v)
			}
			ints64 := []int64{0, math.MaxInt64, math.MinInt64, 1700000000}
			for _, v := range ints64 {
				r := New()
				r.AddInt64(v)
				p, err := strconv.ParseInt(r.Values()[0], 10, 64)
				So(err, ShouldBeNil)
				So(p, ShouldEqual, v)
			}
		})

		Convey("float32", func() {
			floats := []float32{0, 3.5, -33.8688, 151.2093, 0.1, 1e-10,
				math.MaxFloat32, math.SmallestNonzeroFloat32}
			for _, v := range floats {
				r := New()
				r.AddFloat32(v)
				p, err := strconv.ParseFloat(r.Values()[0], 32)
				So(err, ShouldBeNil)
				So(float32(p), ShouldEqual, v)
			}
			r := New()
			r.AddFloat32(0.1)
			So(r.Values()[0], ShouldEqual, "0.1")
		})

		Convey("float64", func() {
			floats := []float64{0, 3.5, -0.1, 1.0 / 3, 1e300, -1e-300,
				math.MaxFloat64, math.SmallestNonzeroFloat64}
			for _, v := range floats {
				r := New()
				r.AddFloat64(v)
				p, err := strconv.ParseFloat(r.Values()[0], 64)
				So(err, ShouldBeNil)
				So(p, ShouldEqual, v)
			}
		})
	})

	Convey("Writer", t, func() {
		Convey("writes rows in order", func() {
			r1 := New()
			r1.Add("a")
			r1.AddInt(1)
			r2 := New()
			r2.AddNull()
			r2.AddInt(2)

			var buf bytes.Buffer
			w := NewWriter(&buf, "\t")
			So(w.Write(r1, r2), ShouldBeNil)
			So(w.Count(), ShouldEqual, 2)
			So(w.Flush(), ShouldBeNil)
			So(buf.String(), ShouldEqual, "a\t1\n\t2\n")
		})

		Convey("WriteAll", func() {
			r := New()
			r.Add("x")
			var buf bytes.Buffer
			So(WriteAll(&buf, ",", []*Row{r, r}), ShouldBeNil)
			So(buf.String(), ShouldEqual, "x\nx\n")
		})

		Convey("reports write errors", func() {
			r := New()
			r.Add("x")
			w := NewWriter(failingWriter{}, ",")
			So(w.Write(r), ShouldBeNil) // buffered
			So(w.Flush(), ShouldNotBeNil)
		})
	})
}
