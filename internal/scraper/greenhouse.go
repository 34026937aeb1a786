package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/skalra/auros/internal/ats"
	"github.com/skalra/auros/internal/model"
	"github.com/skalra/auros/internal/textutil"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob is a single job in the Greenhouse boards API response.
// content is HTML-encoded when requested with content=true.
type greenhouseJob struct {
	Title       string `json:"title"`
	AbsoluteURL string `json:"absolute_url"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	ContentText string `json:"content_text"`
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// greenhouseJobs fetches postings with inline descriptions from the
// Greenhouse boards API. Postings missing a title or URL are skipped.
func (s *Scraper) greenhouseJobs(ctx context.Context, careersURL string) ([]model.Posting, error) {
	board := ats.GreenhouseBoard(careersURL)
	if board == "" {
		return nil, model.NewScrapeError("greenhouse", errors.New("unable to determine board token"))
	}

	apiURL := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, board)
	var resp greenhouseResponse
	if err := s.fetchJSON(ctx, "GET", apiURL, nil, &resp); err != nil {
		return nil, err
	}

	postings := make([]model.Posting, 0, len(resp.Jobs))
	for _, gj := range resp.Jobs {
		jobURL := gj.AbsoluteURL
		if jobURL == "" {
			jobURL = gj.URL
		}
		if gj.Title == "" || jobURL == "" {
			continue
		}
		content := gj.Content
		if content == "" {
			content = gj.ContentText
		}
		postings = append(postings, model.Posting{
			Title:       gj.Title,
			URL:         jobURL,
			Description: textutil.Normalize(stripHTML(content)),
		})
		if len(postings) == maxJobsPerCompany {
			break
		}
	}
	return postings, nil
}
