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

// Package feed downloads a single GTFS-realtime feed over HTTP(S).
//
// Reference for the feed format: https://gtfs.org/realtime/reference/ .
//
// A Fetcher makes exactly one GET request per Fetch call and returns either a
// fully decoded FeedMessage or one of the typed errors: TransportError,
// StatusError, DecodeError or TLSConfigError. There are no retries; wrap Fetch
// in a retry loop if needed.
//
// The request always advertises gzip support. The response body is gunzipped
// only when the server sets "Content-Encoding: gzip"; transparent
// decompression of the HTTP transport is turned off, so the body is never
// decompressed twice.
//
// Relaxed TLS trust is an explicit opt-in via SetInsecureTLS(true). In that
// mode any server certificate chain and host name is accepted, which is only
// appropriate for known operational endpoints. By default certificates are
// verified against the system pool, or against a pinned bundle set with
// SetRootCAs.
//
// Log messages, including the optional header dumps, go to the logger in the
// context (see github.com/stockparfait/logging). Without a logger nothing is
// printed.
//
// A Fetcher is not safe for concurrent use. Use one Fetcher per goroutine.
package feed
