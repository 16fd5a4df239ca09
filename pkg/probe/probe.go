// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package probe checks app URLs in parallel and reports each answer as data.
package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lain-cli/lain/pkg/defaults"
)

// Error classes reported in Result.Status when no HTTP answer came back.
const (
	StatusTimeout         = "Timeout"
	StatusConnectionError = "ConnectionError"
	StatusRequestError    = "RequestError"
)

// Result is the outcome of probing one URL.
type Result struct {
	URL    string `json:"url" yaml:"url"`
	Status string `json:"status" yaml:"status"`
	Text   string `json:"text" yaml:"text"`
}

// OK reports whether the URL answered with a 2xx or 3xx status.
func (r Result) OK() bool {
	code, err := strconv.Atoi(r.Status)
	return err == nil && code < http.StatusBadRequest
}

// Probe GETs every URL concurrently. Failures end up in the matching
// Result. The slice is sorted by URL.
func Probe(ctx context.Context, client *http.Client, urls []string) []Result {
	if len(urls) == 0 {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: defaults.ProbeTimeout}
	}

	results := make([]Result, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(len(urls))
	for i, u := range urls {
		g.Go(func() error {
			results[i] = probeOne(ctx, client, u)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].URL < results[j].URL })
	return results
}

func probeOne(ctx context.Context, client *http.Client, u string) Result {
	ctx, cancel := context.WithTimeout(ctx, defaults.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{URL: u, Status: StatusRequestError, Text: Brief(err.Error())}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{URL: u, Status: classify(err), Text: Brief(err.Error())}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaults.ProbeBodyLimit))
	if err != nil {
		return Result{URL: u, Status: classify(err), Text: Brief(err.Error())}
	}
	return Result{URL: u, Status: strconv.Itoa(resp.StatusCode), Text: Brief(string(body))}
}

func classify(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return StatusTimeout
	}
	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &opErr) || (errors.As(err, &urlErr) && strings.Contains(urlErr.Err.Error(), "connection")) {
		return StatusConnectionError
	}
	return StatusRequestError
}

// Brief folds s into one line with escaped newlines, cut to the probe
// body limit counted in characters.
func Brief(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("\r", `\r`, "\n", `\n`, "\t", `\t`).Replace(s)
	n := 0
	for i := range s {
		if n == defaults.ProbeBodyLimit {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
