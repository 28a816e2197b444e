// Package feed sources the job lists consumed by the swipe session. Open jobs
// come from the search index with a short-lived cache in front; the rejected
// pool is reconstructed from the worker's withdrawn applications.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gigbroker/internal/common/logger"
	"gigbroker/internal/models"
	"gigbroker/internal/store"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"
)

var ErrJobNotFound = errors.New("JOB_NOT_FOUND")

type Feed struct {
	es         *elasticsearch.Client
	rdb        *redis.Client
	apps       store.ApplicationStore
	index      string
	cacheTTL   time.Duration
	maxResults int
	log        logger.Logger
}

func New(es *elasticsearch.Client, rdb *redis.Client, apps store.ApplicationStore, index string, cacheTTL time.Duration, maxResults int, log logger.Logger) *Feed {
	if index == "" {
		index = "jobs"
	}
	if maxResults <= 0 {
		maxResults = 50
	}
	return &Feed{
		es:         es,
		rdb:        rdb,
		apps:       apps,
		index:      index,
		cacheTTL:   cacheTTL,
		maxResults: maxResults,
		log:        log,
	}
}

func feedCacheKey(workerID string) string {
	return "feed:open:" + workerID
}

// OpenJobs returns the open jobs visible to a worker, newest first. Results
// are cached briefly; the session layer filters out jobs the worker already
// holds an application for, so a slightly stale list is safe.
func (f *Feed) OpenJobs(ctx context.Context, workerID string) ([]models.Job, error) {
	if f.rdb != nil {
		if cached, err := f.rdb.Get(ctx, feedCacheKey(workerID)).Bytes(); err == nil {
			var jobs []models.Job
			if err := json.Unmarshal(cached, &jobs); err == nil {
				return jobs, nil
			}
		}
	}

	jobs, err := f.searchOpenJobs(ctx, workerID)
	if err != nil {
		return nil, err
	}

	if f.rdb != nil {
		if payload, err := json.Marshal(jobs); err == nil {
			if err := f.rdb.Set(ctx, feedCacheKey(workerID), payload, f.cacheTTL).Err(); err != nil {
				f.log.Warn("feed cache write failed", map[string]interface{}{
					"workerId": workerID,
					"error":    err.Error(),
				})
			}
		}
	}

	return jobs, nil
}

func (f *Feed) searchOpenJobs(ctx context.Context, workerID string) ([]models.Job, error) {
	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"status": models.JobStatusOpen},
					},
				},
				"must_not": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"employerId": workerID},
					},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"postedAt": map[string]interface{}{"order": "desc"}},
		},
	}

	body, _ := json.Marshal(queryBody)
	size := f.maxResults

	req := esapi.SearchRequest{
		Index: []string{f.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, f.es)
	if err != nil {
		return nil, fmt.Errorf("job search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("job search error: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode job search response: %w", err)
	}

	jobs := make([]models.Job, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		job := hit.Source
		if job.ID == "" {
			job.ID = hit.ID
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// GetJob resolves a single job document by ID.
func (f *Feed) GetJob(ctx context.Context, jobID string) (models.Job, error) {
	req := esapi.GetRequest{
		Index:      f.index,
		DocumentID: jobID,
	}

	res, err := req.Do(ctx, f.es)
	if err != nil {
		return models.Job{}, fmt.Errorf("job lookup failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return models.Job{}, ErrJobNotFound
	}
	if res.IsError() {
		return models.Job{}, fmt.Errorf("job lookup error: %s", res.Status())
	}

	var doc struct {
		ID     string     `json:"_id"`
		Source models.Job `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return models.Job{}, fmt.Errorf("decode job document: %w", err)
	}

	job := doc.Source
	if job.ID == "" {
		job.ID = doc.ID
	}
	return job, nil
}

// RejectedJobs rebuilds the RECONSIDERING_REJECTED pool from the worker's
// NOT_INTERESTED applications. Jobs that no longer resolve are skipped.
func (f *Feed) RejectedJobs(ctx context.Context, workerID string) ([]models.Job, error) {
	recs, err := f.apps.ListByWorkerAndStatus(ctx, workerID, models.StatusNotInterested)
	if err != nil {
		return nil, err
	}

	jobs := make([]models.Job, 0, len(recs))
	for _, rec := range recs {
		job, err := f.GetJob(ctx, rec.JobID)
		if err != nil {
			f.log.Warn("rejected job no longer resolvable", map[string]interface{}{
				"jobId": rec.JobID,
				"error": err.Error(),
			})
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string     `json:"_id"`
			Source models.Job `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
