// Package ats classifies careers URLs by applicant tracking system and
// derives the identifiers each ATS API needs (board token, company slug,
// Workday tenant/site).
package ats

import (
	"net/url"
	"strings"
)

// Kind tags the ATS hosting a careers page. The zero value means no known
// ATS was detected and the generic rendered-DOM strategy applies.
type Kind string

const (
	Greenhouse Kind = "greenhouse"
	Lever      Kind = "lever"
	Workday    Kind = "workday"
)

// Detect classifies a careers URL by host substring.
func Detect(careersURL string) Kind {
	u, err := url.Parse(careersURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "greenhouse.io"):
		return Greenhouse
	case strings.Contains(host, "lever.co"):
		return Lever
	case strings.Contains(host, "myworkdayjobs.com"), strings.Contains(host, "workdayjobs.com"):
		return Workday
	}
	return ""
}

// GreenhouseBoard derives the board token from a Greenhouse careers URL.
// Precedence: the for= query param, then the first path segment on a
// boards.* host, then the first subdomain of a *.greenhouse.io vanity host.
// Returns "" when no token can be derived.
func GreenhouseBoard(careersURL string) string {
	u, err := url.Parse(careersURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)

	if board := u.Query().Get("for"); board != "" {
		return board
	}

	parts := pathSegments(u.Path)
	if strings.HasPrefix(host, "boards.") && len(parts) > 0 {
		return parts[0]
	}

	if strings.HasSuffix(host, "greenhouse.io") &&
		host != "boards.greenhouse.io" && host != "boards.eu.greenhouse.io" {
		return strings.SplitN(host, ".", 2)[0]
	}

	return ""
}

// LeverSlug derives the company slug from a Lever careers URL: the first
// path segment on any lever.co host. Returns "" otherwise.
func LeverSlug(careersURL string) string {
	u, err := url.Parse(careersURL)
	if err != nil {
		return ""
	}
	if !strings.Contains(strings.ToLower(u.Host), "lever.co") {
		return ""
	}
	parts := pathSegments(u.Path)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// WorkdayContext identifies a Workday CXS endpoint.
type WorkdayContext struct {
	BaseURL string // scheme://host
	Tenant  string
	Site    string
	Locale  string // e.g. "en-US", empty when absent
}

// ParseWorkdayContext derives tenant/site/locale from a Workday careers URL.
// A wday/cxs path is parsed directly; otherwise the tenant is the first host
// label and the path yields an optional locale segment (xx-XX) followed by
// the site. Returns false when no site can be derived.
func ParseWorkdayContext(careersURL string) (WorkdayContext, bool) {
	u, err := url.Parse(careersURL)
	if err != nil || !strings.Contains(u.Host, "workdayjobs") {
		return WorkdayContext{}, false
	}

	ctx := WorkdayContext{
		BaseURL: u.Scheme + "://" + u.Host,
		Tenant:  strings.SplitN(u.Host, ".", 2)[0],
	}

	parts := pathSegments(u.Path)

	if idx := indexOfCXS(parts); idx >= 0 {
		if idx+2 >= len(parts) {
			return WorkdayContext{}, false
		}
		ctx.Tenant = parts[idx+1]
		ctx.Site = parts[idx+2]
		if idx+3 < len(parts) && parts[idx+3] != "jobs" {
			ctx.Locale = parts[idx+3]
		}
		return ctx, true
	}

	if len(parts) > 0 {
		if isLocaleSegment(parts[0]) {
			ctx.Locale = parts[0]
			if len(parts) > 1 {
				ctx.Site = parts[1]
			}
		} else {
			ctx.Site = parts[0]
		}
	}

	if ctx.Site == "" {
		return WorkdayContext{}, false
	}
	return ctx, true
}

func pathSegments(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// indexOfCXS returns the position of "cxs" when the path also contains
// "wday", mirroring Workday's /wday/cxs/{tenant}/{site} shape.
func indexOfCXS(parts []string) int {
	hasWday := false
	for _, p := range parts {
		if p == "wday" {
			hasWday = true
			break
		}
	}
	if !hasWday {
		return -1
	}
	for i, p := range parts {
		if p == "cxs" {
			return i
		}
	}
	return -1
}

// isLocaleSegment matches Workday locale path segments like "en-US".
func isLocaleSegment(s string) bool {
	return len(s) == 5 && strings.Contains(s, "-")
}
