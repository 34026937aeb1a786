package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/skalra/auros/internal/ats"
	"github.com/skalra/auros/internal/model"
)

const workdayPageSize = 50

// workdayLinks paginates the Workday CXS jobs endpoint and returns posting
// links. Descriptions are not in the JSON payload; callers fetch each
// posting page through the renderer.
func (s *Scraper) workdayLinks(ctx context.Context, careersURL string) ([]jobLink, error) {
	wctx, ok := ats.ParseWorkdayContext(careersURL)
	if !ok {
		return nil, model.NewScrapeError("workday", errors.New("unable to determine workday context"))
	}

	baseAPI := fmt.Sprintf("%s/wday/cxs/%s/%s/jobs", wctx.BaseURL, wctx.Tenant, wctx.Site)
	altAPI := ""
	if wctx.Locale != "" {
		altAPI = fmt.Sprintf("%s/wday/cxs/%s/%s/%s/jobs", wctx.BaseURL, wctx.Tenant, wctx.Site, wctx.Locale)
	}

	var links []jobLink
	offset := 0
	for {
		payload := map[string]any{
			"limit":         workdayPageSize,
			"offset":        offset,
			"appliedFacets": map[string]any{},
		}

		data, err := s.workdayRequest(ctx, baseAPI, payload)
		if err != nil {
			if altAPI == "" || !model.IsScrapeFailure(err) {
				return nil, err
			}
			data, err = s.workdayRequest(ctx, altAPI, payload)
			if err != nil {
				return nil, err
			}
		}

		for _, posting := range workdayPostings(data) {
			title := stringField(posting, "title")
			if title == "" {
				title = stringField(posting, "jobTitle")
			}
			if title == "" {
				continue
			}
			jobURL := firstStringField(posting, "jobPostingUrl", "externalUrl", "externalURL")
			if jobURL == "" {
				if path := stringField(posting, "externalPath"); path != "" {
					jobURL = joinURL(wctx.BaseURL, path)
				}
			}
			if jobURL == "" {
				continue
			}
			links = append(links, jobLink{Title: title, URL: jobURL})
		}

		total := workdayTotal(data)
		offset += workdayPageSize
		if total == 0 || offset >= total {
			break
		}
	}

	if len(links) > maxJobsPerCompany {
		links = links[:maxJobsPerCompany]
	}
	return links, nil
}

// workdayRequest POSTs the page payload, falling back to GET with the same
// payload as query parameters when the POST fails.
func (s *Scraper) workdayRequest(ctx context.Context, apiURL string, payload map[string]any) (map[string]any, error) {
	var data map[string]any
	if err := s.fetchJSON(ctx, http.MethodPost, apiURL, payload, &data); err != nil {
		data = nil
		if err := s.fetchJSON(ctx, http.MethodGet, apiURL, payload, &data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// workdayPostings locates the postings array; tenants differ on where it
// lives (jobPostings, jobs, data.jobPostings, data.jobs).
func workdayPostings(data map[string]any) []map[string]any {
	for _, key := range []string{"jobPostings", "jobs"} {
		if items, ok := data[key].([]any); ok {
			return asObjects(items)
		}
	}
	if inner, ok := data["data"].(map[string]any); ok {
		for _, key := range []string{"jobPostings", "jobs"} {
			if items, ok := inner[key].([]any); ok {
				return asObjects(items)
			}
		}
	}
	return nil
}

// workdayTotal finds the result count under total, totalCount, data.*, or
// page.total. Returns 0 when absent, which ends pagination.
func workdayTotal(data map[string]any) int {
	if n, ok := intField(data, "total", "totalCount"); ok {
		return n
	}
	if inner, ok := data["data"].(map[string]any); ok {
		if n, ok := intField(inner, "total", "totalCount"); ok {
			return n
		}
	}
	if page, ok := data["page"].(map[string]any); ok {
		if n, ok := intField(page, "total"); ok {
			return n
		}
	}
	return 0
}

func asObjects(items []any) []map[string]any {
	objs := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			objs = append(objs, obj)
		}
	}
	return objs
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func firstStringField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringField(obj, key); s != "" {
			return s
		}
	}
	return ""
}

func intField(obj map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		if f, ok := obj[key].(float64); ok {
			return int(f), true
		}
	}
	return 0, false
}

func joinURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
