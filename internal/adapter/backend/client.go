// Package backend fetches per-barangay temperatures and facility counts from
// the upstream API and converts them into pipeline observations.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/heatwatch/heat-risk-pipeline/internal/domain"
	"github.com/heatwatch/heat-risk-pipeline/internal/observability"
)

// Client talks to the heat and facilities endpoints of the backend service.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	facilityTimeout time.Duration
	workers         int
	cache           *countCache
	logger          *slog.Logger
	metrics         *observability.Metrics
}

// NewClient creates a backend client. fetchTimeout bounds the temperatures
// request, which can take minutes when the backend polls its weather provider
// per barangay; facilityTimeout bounds each facility request. cacheSize caps
// the facility-count LRU cache; a non-positive size disables caching.
func NewClient(baseURL string, fetchTimeout, facilityTimeout time.Duration, workers, cacheSize int, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if workers < 1 {
		workers = 1
	}
	var cache *countCache
	if cacheSize > 0 {
		cache = newCountCache(cacheSize)
	}
	return &Client{
		baseURL:         baseURL,
		httpClient:      &http.Client{Timeout: fetchTimeout},
		facilityTimeout: facilityTimeout,
		workers:         workers,
		cache:           cache,
		logger:          logger,
		metrics:         metrics,
	}
}

// Snapshot fetches one Observation per barangay for the given date. The
// temperature fetch is fatal on failure; facility counts degrade per item.
func (c *Client) Snapshot(ctx context.Context, date string) ([]domain.Observation, error) {
	temps, err := c.BarangayTemperatures(ctx)
	if err != nil {
		return nil, err
	}
	if len(temps) == 0 {
		return nil, fmt.Errorf("backend returned no barangay temperatures: %w", domain.ErrInputNotFound)
	}

	ids := make([]string, 0, len(temps))
	for id := range temps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	counts := c.FacilityCounts(ctx, ids)

	obs := make([]domain.Observation, 0, len(ids))
	for _, id := range ids {
		obs = append(obs, domain.Observation{
			BarangayID:       id,
			Date:             date,
			Temperature:      temps[id],
			FacilityDistance: domain.FacilityDistance(counts[id]),
		})
	}
	return obs, nil
}

// BarangayTemperatures fetches the per-barangay temperature map. Entries with
// null values are dropped by decoding into pointers.
func (c *Client) BarangayTemperatures(ctx context.Context) (map[string]float64, error) {
	var payload struct {
		Temperatures map[string]*float64 `json:"temperatures"`
	}
	err := c.getJSON(ctx, c.baseURL+"/api/heat/davao/barangay-temperatures", "temperatures", &payload)
	if err != nil {
		return nil, err
	}

	temps := make(map[string]float64, len(payload.Temperatures))
	for id, v := range payload.Temperatures {
		if v == nil {
			continue
		}
		temps[id] = *v
	}
	return temps, nil
}

// FacilityCounts resolves facility counts for the given barangays. It prefers
// the batch endpoint; when that fails it falls back to bounded-concurrency
// per-barangay requests where an individual failure yields count zero, never
// failing the whole fetch for one bad barangay. Resolved counts feed an LRU
// cache so fallbacks serve known counts without re-fetching every barangay.
func (c *Client) FacilityCounts(ctx context.Context, ids []string) map[string]int {
	counts, err := c.facilityCountsBatch(ctx, ids)
	if err == nil {
		// IDs the batch endpoint omitted default to zero.
		for _, id := range ids {
			if _, ok := counts[id]; !ok {
				counts[id] = 0
			}
		}
		for id, count := range counts {
			c.cacheCount(id, count)
		}
		return counts
	}

	c.logger.Warn("batch facility endpoint unavailable, falling back to per-barangay requests",
		"error", err, "barangays", len(ids), "workers", c.workers)
	c.metrics.FacilityFallbacks.Inc()
	return c.facilityCountsParallel(ctx, ids)
}

func (c *Client) facilityCountsBatch(ctx context.Context, ids []string) (map[string]int, error) {
	start := time.Now()

	body, err := json.Marshal(map[string][]string{"barangayIds": ids})
	if err != nil {
		return nil, fmt.Errorf("encode batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/facilities/counts-by-barangays", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observeFetch("facilities_batch", start, err)
		return nil, fmt.Errorf("batch facility request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("batch facility endpoint: status %d: %s", resp.StatusCode, msg)
		c.observeFetch("facilities_batch", start, err)
		return nil, err
	}

	var payload struct {
		Counts map[string]int `json:"counts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.observeFetch("facilities_batch", start, err)
		return nil, fmt.Errorf("decode batch response: %w", err)
	}

	c.observeFetch("facilities_batch", start, nil)
	if payload.Counts == nil {
		return map[string]int{}, nil
	}
	return payload.Counts, nil
}

// facilityCountsParallel fans out FacilityCount calls over a bounded worker
// pool, consulting the count cache first. Failures become count zero with a
// warning and are never cached, so the next fallback retries them.
func (c *Client) facilityCountsParallel(ctx context.Context, ids []string) map[string]int {
	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	counts := make(map[string]int, len(ids))

	workers := c.workers
	if workers > len(ids) {
		workers = len(ids)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				count, ok := c.cachedCount(id)
				if !ok {
					var err error
					count, err = c.FacilityCount(ctx, id)
					if err != nil {
						c.logger.Warn("facility count failed, defaulting to zero", "barangay_id", id, "error", err)
						count = 0
					} else {
						c.cacheCount(id, count)
					}
				}
				mu.Lock()
				counts[id] = count
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	return counts
}

// FacilityCount fetches the facility count for one barangay. A 404 means no
// facilities are recorded and counts as zero.
func (c *Client) FacilityCount(ctx context.Context, barangayID string) (int, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.facilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/facilities/by-barangay/"+barangayID, nil)
	if err != nil {
		return 0, fmt.Errorf("create facility request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observeFetch("facilities_single", start, err)
		return 0, fmt.Errorf("facility request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.observeFetch("facilities_single", start, nil)
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("facility endpoint: status %d: %s", resp.StatusCode, msg)
		c.observeFetch("facilities_single", start, err)
		return 0, err
	}

	var payload struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.observeFetch("facilities_single", start, err)
		return 0, fmt.Errorf("decode facility response: %w", err)
	}

	c.observeFetch("facilities_single", start, nil)
	return payload.Total, nil
}

func (c *Client) getJSON(ctx context.Context, url, endpoint string, out any) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", endpoint, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observeFetch(endpoint, start, err)
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("%s endpoint: status %d: %s", endpoint, resp.StatusCode, msg)
		c.observeFetch(endpoint, start, err)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.observeFetch(endpoint, start, err)
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	c.observeFetch(endpoint, start, nil)
	return nil
}

func (c *Client) cachedCount(id string) (int, bool) {
	if c.cache == nil {
		return 0, false
	}
	return c.cache.get(id)
}

func (c *Client) cacheCount(id string, count int) {
	if c.cache != nil {
		c.cache.put(id, count)
	}
}

func (c *Client) observeFetch(endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.FetchRequests.WithLabelValues(endpoint, outcome).Inc()
	c.metrics.FetchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
