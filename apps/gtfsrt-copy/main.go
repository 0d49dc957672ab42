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

// Command gtfsrt-copy downloads GTFS-realtime feeds and bulk-loads their
// vehicle positions, trip updates, stop time updates and alerts into text
// files or PostgreSQL tables.
package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"sort"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/gtfsrt/copier"
	"github.com/stockparfait/gtfsrt/feed"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
)

type Flags struct {
	Config   string // required
	Out      string // output directory for the file sink
	Postgres bool   // copy into PostgreSQL instead of files
	Headers  bool   // log request and response headers
	LogLevel logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("gtfsrt-copy", flag.ExitOnError)
	fs.StringVar(&flags.Config, "config", "", "TOML config file (required)")
	fs.StringVar(&flags.Out, "out", ".", "output directory for table files")
	fs.BoolVar(&flags.Postgres, "postgres", false,
		"copy into PostgreSQL using postgres_dsn from the config")
	fs.BoolVar(&flags.Headers, "headers", false, "log HTTP request and response headers")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Config == "" {
		return nil, errors.Reason("missing required -config argument")
	}
	return &flags, nil
}

// fetchJob is a feed with its position in the config.
type fetchJob struct {
	index  int
	config FeedConfig
}

type fetchResult struct {
	index   int
	name    string
	message *gtfs.FeedMessage
	err     error
}

// fetchAll downloads all the feeds in parallel, each with its own Fetcher.
// Results are in the config order.
func fetchAll(ctx context.Context, c *Config, diagnostics bool) []fetchResult {
	jobs := make([]fetchJob, len(c.Feeds))
	for i, fc := range c.Feeds {
		jobs[i] = fetchJob{index: i, config: fc}
	}
	f := func(j fetchJob) fetchResult {
		res := fetchResult{index: j.index, name: j.config.Name}
		fetcher, err := j.config.NewFetcher(diagnostics)
		if err != nil {
			res.err = err
			return res
		}
		res.message, res.err = fetcher.Fetch(ctx)
		return res
	}
	pm := iterator.ParallelMap(ctx, 2*runtime.NumCPU(), iterator.FromSlice(jobs), f)
	results := iterator.Reduce[fetchResult, []fetchResult](pm, []fetchResult{},
		func(r fetchResult, acc []fetchResult) []fetchResult {
			return append(acc, r)
		})
	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })
	return results
}

// copyAll maps the fetched messages into rows and sends them to the sink.
// It returns the number of failed feeds.
func copyAll(ctx context.Context, c *Config, results []fetchResult, sink copier.Sink) (int, error) {
	rows := make(Rows)
	failed := 0
	for _, r := range results {
		if r.err != nil {
			logging.Errorf(ctx, "feed %s: %s error: %s", r.name, feed.Kind(r.err), r.err.Error())
			failed++
			continue
		}
		m := newMapper(r.name, c.Separator)
		m.AddMessage(rows, r.message)
		logging.Infof(ctx, "feed %s: %d entities", r.name, len(r.message.GetEntity()))
	}
	for _, t := range allTables {
		dest := t
		dest.Name = c.TablePrefix + t.Name
		n, err := sink.Copy(ctx, dest, rows[t.Name])
		if err != nil {
			return failed, errors.Annotate(err, "failed to copy %s", dest.Name)
		}
		logging.Infof(ctx, "copied %d rows into %s", n, dest.Name)
	}
	return failed, nil
}

func run(ctx context.Context, flags *Flags) error {
	config, err := parseConfig(flags.Config)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	if flags.Postgres && config.PostgresDSN == "" {
		return errors.Reason("-postgres requires postgres_dsn in the config")
	}
	results := fetchAll(ctx, config, flags.Headers)

	var sink copier.Sink
	if flags.Postgres {
		pg, err := copier.ConnectPostgres(ctx, config.PostgresDSN, config.Separator)
		if err != nil {
			return errors.Annotate(err, "failed to set up PostgreSQL")
		}
		defer pg.Close(ctx)
		sink = pg
	} else {
		sink = copier.NewFileSink(flags.Out, config.Separator)
	}

	failed, err := copyAll(ctx, config, results, sink)
	if err != nil {
		return err
	}
	if failed > 0 {
		return errors.Reason("%d of %d feeds failed", failed, len(results))
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := run(ctx, flags); err != nil {
		logging.Errorf(ctx, "%s", err.Error())
		os.Exit(1)
	}
}
