package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/skalra/auros/internal/ats"
	"github.com/skalra/auros/internal/model"
	"github.com/skalra/auros/internal/textutil"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverJob is a single posting in the Lever public API response.
type leverJob struct {
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	ApplyURL         string `json:"applyUrl"`
	Description      string `json:"description"`
	DescriptionPlain string `json:"descriptionPlain"`
}

// leverJobs fetches postings with inline descriptions from the Lever
// postings API. Postings missing a title or URL are skipped.
func (s *Scraper) leverJobs(ctx context.Context, careersURL string) ([]model.Posting, error) {
	slug := ats.LeverSlug(careersURL)
	if slug == "" {
		return nil, model.NewScrapeError("lever", errors.New("unable to determine company slug"))
	}

	apiURL := fmt.Sprintf("%s/%s", leverBaseURL, slug)
	var leverJobs []leverJob
	if err := s.fetchJSON(ctx, "GET", apiURL, map[string]any{"mode": "json"}, &leverJobs); err != nil {
		return nil, err
	}

	postings := make([]model.Posting, 0, len(leverJobs))
	for _, lj := range leverJobs {
		jobURL := lj.HostedURL
		if jobURL == "" {
			jobURL = lj.ApplyURL
		}
		if lj.Text == "" || jobURL == "" {
			continue
		}
		description := lj.DescriptionPlain
		if description == "" {
			description = stripHTML(lj.Description)
		}
		postings = append(postings, model.Posting{
			Title:       lj.Text,
			URL:         jobURL,
			Description: textutil.Normalize(description),
		})
		if len(postings) == maxJobsPerCompany {
			break
		}
	}
	return postings, nil
}
