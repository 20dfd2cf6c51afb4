// Package prewarm provides proactive cache population for an httpqueue.Queue,
// so known-critical URLs can be loaded before real traffic arrives instead
// of paying the first-request latency cold.
package prewarm

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sandrolain/httpqueue"
)

// Prewarmer proactively loads URLs into a Queue's cache by submitting GET
// requests at Low priority and waiting for each to settle.
type Prewarmer struct {
	queue   *httpqueue.Queue
	timeout time.Duration
}

// Config holds the configuration for a Prewarmer.
type Config struct {
	// Queue is the queue to submit prewarm requests to (required).
	Queue *httpqueue.Queue

	// Timeout bounds how long a single prewarm request may take before it is
	// canceled. Optional, defaults to 30s.
	Timeout time.Duration
}

// Result is the outcome of prewarming a single URL.
type Result struct {
	URL        string
	Success    bool
	StatusCode int
	Duration   time.Duration
	Size       int64
	Error      error
}

// Stats aggregates the outcome of a prewarm run.
type Stats struct {
	// BatchID is a fresh UUID minted for this run and set as every prewarm
	// request's Tag, so a caller holding the Queue can cancel an entire
	// in-flight batch with Queue.CancelAll(stats.BatchID, nil) without
	// disturbing unrelated requests sharing the same queue.
	BatchID       uuid.UUID
	Total         int
	Successful    int
	Failed        int
	TotalDuration time.Duration
	TotalBytes    int64
	Errors        []error
}

// ProgressCallback is invoked after each URL is processed.
type ProgressCallback func(result *Result, completed, total int)

// New creates a new Prewarmer.
func New(config Config) (*Prewarmer, error) {
	if config.Queue == nil {
		return nil, errors.New("prewarm: queue is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Prewarmer{queue: config.Queue, timeout: timeout}, nil
}

// CancelBatch cancels every still-pending request belonging to the batch
// identified by id (Stats.BatchID from a Prewarm* call), leaving any other
// batch or unrelated request on the same Queue untouched.
func (p *Prewarmer) CancelBatch(id uuid.UUID) {
	p.queue.CancelAll(id, nil)
}

// rawBytesParser treats the response body as the opaque result, same
// convention a nil Parser would follow for cache-hit replay. It returns no
// CacheEntry, so responses parsed by it are not written to the cache.
type rawBytesParser struct{}

func (rawBytesParser) ParseNetworkResponse(resp *httpqueue.NetworkResponse) (any, *httpqueue.CacheEntry, error) {
	return resp.Body, nil, nil
}

func (rawBytesParser) ParseNetworkError(err httpqueue.RequestError) httpqueue.RequestError {
	return err
}

// settler is a one-shot Deliverer+ErrorListener pair that resolves a
// channel when the pipeline finishes a prewarm request.
type settler struct {
	done chan *Result
	url  string
	start time.Time
}

func (s *settler) DeliverResponse(result any, intermediate bool) {
	if intermediate {
		return
	}
	body, _ := result.([]byte)
	s.done <- &Result{
		URL:        s.url,
		Success:    true,
		StatusCode: http.StatusOK,
		Duration:   time.Since(s.start),
		Size:       int64(len(body)),
	}
}

func (s *settler) OnErrorResponse(err error) {
	s.done <- &Result{
		URL:      s.url,
		Success:  false,
		Duration: time.Since(s.start),
		Error:    err,
	}
}

func (p *Prewarmer) fetchURL(ctx context.Context, url string, forceRefresh bool, batchID uuid.UUID) *Result {
	s := &settler{done: make(chan *Result, 1), url: url, start: time.Now()}

	req := httpqueue.NewRequest(httpqueue.Get, url, nil)
	req.Priority = httpqueue.Low
	req.Tag = batchID
	req.Delivery = s
	req.ErrorListener = s
	if forceRefresh {
		req.CachePolicy.ShouldCache = false
	}

	p.queue.Add(req)

	select {
	case result := <-s.done:
		return result
	case <-ctx.Done():
		req.Cancel()
		return &Result{URL: url, Error: ctx.Err(), Duration: time.Since(s.start)}
	}
}

// Prewarm loads the given URLs sequentially.
func (p *Prewarmer) Prewarm(ctx context.Context, urls []string) (*Stats, error) {
	return p.PrewarmWithCallback(ctx, urls, nil)
}

// PrewarmWithCallback loads URLs sequentially and calls the callback after
// each one settles.
func (p *Prewarmer) PrewarmWithCallback(ctx context.Context, urls []string, callback ProgressCallback) (*Stats, error) {
	stats := &Stats{Total: len(urls), BatchID: uuid.New()}
	startTime := time.Now()

	for i, url := range urls {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		result := p.fetchURL(reqCtx, url, false, stats.BatchID)
		cancel()

		recordResult(stats, result)
		if callback != nil {
			callback(result, i+1, len(urls))
		}
	}

	stats.TotalDuration = time.Since(startTime)
	return stats, nil
}

// PrewarmConcurrent loads URLs with bounded concurrency.
func (p *Prewarmer) PrewarmConcurrent(ctx context.Context, urls []string, workers int) (*Stats, error) {
	return p.PrewarmConcurrentWithCallback(ctx, urls, workers, nil)
}

// PrewarmConcurrentWithCallback loads URLs with bounded concurrency,
// invoking the callback (from multiple goroutines; it must be thread-safe)
// after each URL settles.
func (p *Prewarmer) PrewarmConcurrentWithCallback(ctx context.Context, urls []string, workers int, callback ProgressCallback) (*Stats, error) {
	if workers <= 0 {
		workers = 1
	}
	stats := &Stats{Total: len(urls), BatchID: uuid.New()}
	startTime := time.Now()

	urlChan := make(chan string, len(urls))
	for _, url := range urls {
		urlChan <- url
	}
	close(urlChan)

	resultChan := make(chan *Result, len(urls))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range urlChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
				result := p.fetchURL(reqCtx, url, false, stats.BatchID)
				cancel()
				resultChan <- result
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var mu sync.Mutex
	var completed int32
	for result := range resultChan {
		mu.Lock()
		recordResult(stats, result)
		mu.Unlock()
		n := atomic.AddInt32(&completed, 1)
		if callback != nil {
			callback(result, int(n), len(urls))
		}
	}

	stats.TotalDuration = time.Since(startTime)
	return stats, nil
}

// PrewarmFromSitemap parses an XML sitemap (or sitemap index) and prewarms
// every URL found, sequentially.
func (p *Prewarmer) PrewarmFromSitemap(ctx context.Context, sitemapURL string) (*Stats, error) {
	return p.PrewarmFromSitemapConcurrent(ctx, sitemapURL, 1)
}

// PrewarmFromSitemapConcurrent parses a sitemap and prewarms with bounded
// concurrency.
func (p *Prewarmer) PrewarmFromSitemapConcurrent(ctx context.Context, sitemapURL string, workers int) (*Stats, error) {
	urls, err := p.parseSitemap(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("prewarm: parse sitemap: %w", err)
	}
	if workers <= 1 {
		return p.PrewarmWithCallback(ctx, urls, nil)
	}
	return p.PrewarmConcurrentWithCallback(ctx, urls, workers, nil)
}

func recordResult(stats *Stats, result *Result) {
	if result.Success {
		stats.Successful++
		stats.TotalBytes += result.Size
	} else {
		stats.Failed++
		if result.Error != nil {
			stats.Errors = append(stats.Errors, result.Error)
		}
	}
}

// Sitemap is an XML sitemap's <urlset>.
type Sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []SitemapURL `xml:"url"`
}

// SitemapURL is a single <url> entry in a sitemap.
type SitemapURL struct {
	Loc string `xml:"loc"`
}

// SitemapIndex is an XML sitemap index's <sitemapindex>.
type SitemapIndex struct {
	XMLName  xml.Name          `xml:"sitemapindex"`
	Sitemaps []SitemapLocation `xml:"sitemap"`
}

// SitemapLocation is a single <sitemap> reference in a sitemap index.
type SitemapLocation struct {
	Loc string `xml:"loc"`
}

// parseSitemap fetches sitemapURL directly with net/http (sitemaps are plain
// XML documents, not cache-pipeline traffic) and extracts every URL,
// recursing through sitemap indexes.
func (p *Prewarmer) parseSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var index SitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		var all []string
		for _, sm := range index.Sitemaps {
			urls, err := p.parseSitemap(ctx, sm.Loc)
			if err != nil {
				continue
			}
			all = append(all, urls...)
		}
		return all, nil
	}

	var sitemap Sitemap
	if err := xml.Unmarshal(body, &sitemap); err != nil {
		return nil, fmt.Errorf("parse sitemap XML: %w", err)
	}

	urls := make([]string, 0, len(sitemap.URLs))
	for _, u := range sitemap.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}
