package executor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"autoapply/internal/domain"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
)

// PlatformSource describes where and how to discover postings on one
// platform: the search URL template and the selectors for posting links
// and posting bodies.
type PlatformSource struct {
	Platform     domain.Platform
	SearchURL    string // fmt template taking the escaped query
	LinkFilter   string // substring a posting href must contain
	BodySelector string // CSS selector of the posting text on a detail page
}

// CollyDiscovery scrapes posting listings and detail pages with colly.
type CollyDiscovery struct {
	sources map[domain.Platform]PlatformSource
}

// DefaultSources covers the boards with stable listing markup.
func DefaultSources() []PlatformSource {
	return []PlatformSource{
		{
			Platform:     domain.PlatformLinkedIn,
			SearchURL:    "https://www.linkedin.com/jobs/search/?keywords=%s",
			LinkFilter:   "/jobs/view/",
			BodySelector: ".description__text",
		},
		{
			Platform:     domain.PlatformIndeed,
			SearchURL:    "https://www.indeed.com/jobs?q=%s",
			LinkFilter:   "/viewjob",
			BodySelector: "#jobDescriptionText",
		},
	}
}

func NewCollyDiscovery(sources []PlatformSource) *CollyDiscovery {
	m := make(map[domain.Platform]PlatformSource, len(sources))
	for _, s := range sources {
		m[s.Platform] = s
	}
	return &CollyDiscovery{sources: m}
}

func (d *CollyDiscovery) Discover(ctx context.Context, platform domain.Platform, query string, limit int) ([]domain.Job, *Failure) {
	if d == nil {
		return nil, NewFailure(domain.FailureRejectedInput, fmt.Errorf("nil discovery executor"))
	}
	src, ok := d.sources[platform]
	if !ok {
		return nil, NewFailure(domain.FailureRejectedInput, fmt.Errorf("no source for platform %s", platform))
	}
	if limit <= 0 {
		limit = 20
	}

	listURL := fmt.Sprintf(src.SearchURL, url.QueryEscape(strings.TrimSpace(query)))
	links, err := d.scrapeListing(ctx, src, listURL, limit)
	if err != nil {
		return nil, Classify(err)
	}

	jobs := make([]domain.Job, 0, len(links))
	for _, link := range links {
		if ctx.Err() != nil {
			return jobs, Classify(ctx.Err())
		}
		text, err := d.scrapeDetail(ctx, src, link)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		jobs = append(jobs, domain.Job{
			ID:          uuid.New(),
			URL:         link,
			Platform:    platform,
			PostingText: text,
			CreatedAt:   time.Now().UTC(),
		})
	}
	return jobs, nil
}

func (d *CollyDiscovery) scrapeListing(ctx context.Context, src PlatformSource, listURL string, limit int) ([]string, error) {
	host, err := hostOf(listURL)
	if err != nil {
		return nil, err
	}
	c := colly.NewCollector(colly.AllowedDomains(host))
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 2, RandomDelay: 750 * time.Millisecond, Delay: 400 * time.Millisecond})

	seen := map[string]struct{}{}
	links := make([]string, 0, limit)

	c.OnHTML("a", func(e *colly.HTMLElement) {
		if len(links) >= limit {
			return
		}
		href := strings.TrimSpace(e.Attr("href"))
		if href == "" || !strings.Contains(href, src.LinkFilter) {
			return
		}
		abs := e.Request.AbsoluteURL(href)
		if abs == "" {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	var reqErr error
	c.OnError(func(r *colly.Response, err error) {
		reqErr = err
	})

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := c.Visit(listURL); err != nil {
		return nil, err
	}
	c.Wait()
	if reqErr != nil {
		return nil, reqErr
	}
	return links, nil
}

func (d *CollyDiscovery) scrapeDetail(ctx context.Context, src PlatformSource, jobURL string) (string, error) {
	host, err := hostOf(jobURL)
	if err != nil {
		return "", err
	}
	c := colly.NewCollector(colly.AllowedDomains(host))
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 2, RandomDelay: 850 * time.Millisecond, Delay: 450 * time.Millisecond})

	var body string
	sel := src.BodySelector
	if sel == "" {
		sel = "body"
	}
	c.OnHTML(sel, func(e *colly.HTMLElement) {
		if body == "" {
			body = strings.TrimSpace(e.Text)
		}
	})

	var reqErr error
	c.OnError(func(r *colly.Response, err error) {
		reqErr = err
	})

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err := c.Visit(jobURL); err != nil {
		return "", err
	}
	c.Wait()
	if reqErr != nil {
		return "", reqErr
	}
	return body, nil
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	return u.Hostname(), nil
}
