package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/skalra/auros/internal/browser"
	"github.com/skalra/auros/internal/model"
)

// hrefHints mark links that point at job postings regardless of anchor text.
var hrefHints = []string{"/jobs/", "/job/", "/careers/", "greenhouse.io", "lever.co", "workdayjobs", "job"}

// textHints accept remaining links whose anchor text names a target role.
var textHints = []string{"manager", "program", "product", "technical", "tpm", "principal", "senior"}

// textRejects drop boilerplate links before any hint matching.
var textRejects = []string{"privacy", "cookie", "terms", "policy", "benefits", "equal employment"}

// genericScrape renders the careers page, harvests candidate job links from
// its anchors, and fetches a description per link within the same browser
// session.
func (s *Scraper) genericScrape(ctx context.Context, careersURL string, titleFilter func(string) bool) ([]model.Posting, error) {
	session, err := s.openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	anchors, err := session.Anchors(ctx, careersURL)
	if err != nil {
		return nil, err
	}

	links := s.jobLinksFromAnchors(anchors, careersURL)
	links = filterLinks(links, titleFilter)
	return s.describeLinks(ctx, session, links)
}

// jobLinksFromAnchors filters raw anchors down to deduplicated job links.
// Cross-host links are kept only when the host is a known ATS domain.
func (s *Scraper) jobLinksFromAnchors(anchors []browser.Anchor, baseURL string) []jobLink {
	baseHost := ""
	if u, err := url.Parse(baseURL); err == nil {
		baseHost = u.Host
	}

	var links []jobLink
	seen := make(map[string]struct{})

	for _, a := range anchors {
		text := strings.Join(strings.Fields(a.Text), " ")
		if a.Href == "" || len(text) < 3 {
			continue
		}

		parsed, err := url.Parse(a.Href)
		if err != nil {
			continue
		}
		if parsed.Scheme == "mailto" || parsed.Scheme == "tel" {
			continue
		}
		if parsed.Host != "" && parsed.Host != baseHost && !s.isAllowedHost(parsed.Host) {
			continue
		}

		if !looksLikeJobLink(a.Href, text) {
			continue
		}

		finalURL := a.Href
		if parsed.Scheme == "" {
			finalURL = joinURL(baseURL, a.Href)
		}
		if _, ok := seen[finalURL]; ok {
			continue
		}
		seen[finalURL] = struct{}{}
		links = append(links, jobLink{Title: text, URL: finalURL})
	}

	return links
}

func (s *Scraper) isAllowedHost(host string) bool {
	for _, domain := range s.cfg.AllowedDomains {
		if strings.Contains(host, domain) {
			return true
		}
	}
	return false
}

// looksLikeJobLink applies the link heuristic: reject boilerplate by text,
// accept by href shape, then accept by role keywords in the text.
func looksLikeJobLink(href, text string) bool {
	h := strings.ToLower(href)
	t := strings.ToLower(text)

	for _, bad := range textRejects {
		if strings.Contains(t, bad) {
			return false
		}
	}
	for _, hint := range hrefHints {
		if strings.Contains(h, hint) {
			return true
		}
	}
	for _, hint := range textHints {
		if strings.Contains(t, hint) {
			return true
		}
	}
	return false
}
