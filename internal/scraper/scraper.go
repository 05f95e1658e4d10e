// Package scraper crawls lab and department pages, asks the chat model to
// extract a structured posting from each page, and upserts results keyed by
// source URL.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"labmatch/internal/errs"
	"labmatch/internal/llm"
	"labmatch/internal/log"
	"labmatch/internal/models"
	"labmatch/internal/store"
)

// Repository is the slice of the store the scraper writes through.
type Repository interface {
	GetOpportunityBySourceURL(url string) (*models.Opportunity, error)
	CreateOpportunity(*models.Opportunity) (*models.Opportunity, error)
	UpdateOpportunity(id string, p store.OpportunityPatch) (*models.Opportunity, store.OpportunityChange, error)
}

type Scraper struct {
	http     *http.Client
	chat     llm.ChatProvider
	repo     Repository
	model    string
	logger   *log.Logger
	maxPages int
}

func New(chat llm.ChatProvider, repo Repository, model string, logger *log.Logger) *Scraper {
	return &Scraper{
		http:     &http.Client{Timeout: 20 * time.Second},
		chat:     chat,
		repo:     repo,
		model:    model,
		logger:   logger,
		maxPages: 20,
	}
}

// Result summarizes one crawl.
type Result struct {
	PagesVisited int `json:"pagesVisited"`
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// Run crawls from startURL, staying on the start host, and extracts at most
// maxPages postings. Page-level failures are logged and counted, never fatal.
func (s *Scraper) Run(ctx context.Context, startURL string) (Result, error) {
	var res Result
	start, err := url.Parse(startURL)
	if err != nil || !start.IsAbs() {
		return res, errs.InvalidInputf("invalid start url %q", startURL)
	}
	queue := []string{start.String()}
	seen := map[string]bool{queue[0]: true}
	for len(queue) > 0 && res.PagesVisited < s.maxPages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page := queue[0]
		queue = queue[1:]
		res.PagesVisited++

		body, err := s.fetch(ctx, page)
		if err != nil {
			res.Failed++
			s.logger.Warn("page fetch failed", "url", page, "error", err.Error())
			continue
		}
		for _, link := range extractLinks(body, start) {
			if !seen[link] {
				seen[link] = true
				queue = append(queue, link)
			}
		}
		switch err := s.extractAndStore(ctx, page, body, &res); {
		case err == nil:
		case errors.Is(err, errNotAPosting):
			res.Skipped++
		default:
			res.Failed++
			s.logger.Warn("posting extraction failed", "url", page, "error", err.Error())
		}
	}
	return res, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "labmatch-scraper/1.0")
	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var errNotAPosting = errors.New("page is not a research posting")

const extractPrompt = `You extract research opportunity postings from web page text.
Respond with a single JSON object and nothing else. Fields:
  is_opportunity (bool), title, description, lab_name, pi_name, institution,
  research_topics (array of strings), location_city, location_state (two-letter),
  is_remote (bool), degree_levels (array: undergraduate|masters|phd),
  paid_type (stipend|hourly|unpaid|credit or empty), contact_email.
Set is_opportunity to false when the page does not describe a specific
research opening for students.`

type extracted struct {
	IsOpportunity  bool     `json:"is_opportunity"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	LabName        string   `json:"lab_name"`
	PIName         string   `json:"pi_name"`
	Institution    string   `json:"institution"`
	ResearchTopics []string `json:"research_topics"`
	LocationCity   string   `json:"location_city"`
	LocationState  string   `json:"location_state"`
	IsRemote       bool     `json:"is_remote"`
	DegreeLevels   []string `json:"degree_levels"`
	PaidType       string   `json:"paid_type"`
	ContactEmail   string   `json:"contact_email"`
}

func (s *Scraper) extractAndStore(ctx context.Context, pageURL, body string, res *Result) error {
	text := pageText(body)
	if len(text) < 80 {
		return errNotAPosting
	}
	if len(text) > 8000 {
		text = text[:8000]
	}
	out, err := s.chat.Chat(ctx, s.model, []llm.Message{
		{Role: llm.RoleSystem, Content: extractPrompt},
		{Role: llm.RoleUser, Content: text},
	}, 0)
	if err != nil {
		return err
	}
	var ex extracted
	if err := json.Unmarshal([]byte(stripFences(out)), &ex); err != nil {
		return fmt.Errorf("model returned non-JSON: %w", err)
	}
	if !ex.IsOpportunity || ex.Title == "" || ex.Description == "" {
		return errNotAPosting
	}
	return s.upsert(pageURL, &ex, res)
}

func (s *Scraper) upsert(pageURL string, ex *extracted, res *Result) error {
	existing, err := s.repo.GetOpportunityBySourceURL(pageURL)
	if err == nil {
		_, _, err := s.repo.UpdateOpportunity(existing.ID, store.OpportunityPatch{
			Title:          &ex.Title,
			Description:    &ex.Description,
			LabName:        &ex.LabName,
			PIName:         &ex.PIName,
			Institution:    &ex.Institution,
			ResearchTopics: &ex.ResearchTopics,
			LocationCity:   &ex.LocationCity,
			LocationState:  &ex.LocationState,
			IsRemote:       &ex.IsRemote,
			DegreeLevels:   &ex.DegreeLevels,
			PaidType:       &ex.PaidType,
			ContactEmail:   &ex.ContactEmail,
		})
		if err != nil {
			return err
		}
		res.Updated++
		return nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	_, err = s.repo.CreateOpportunity(&models.Opportunity{
		SourceURL:      pageURL,
		Title:          ex.Title,
		Description:    ex.Description,
		LabName:        ex.LabName,
		PIName:         ex.PIName,
		Institution:    ex.Institution,
		ResearchTopics: ex.ResearchTopics,
		LocationCity:   ex.LocationCity,
		LocationState:  strings.ToUpper(ex.LocationState),
		IsRemote:       ex.IsRemote,
		DegreeLevels:   ex.DegreeLevels,
		PaidType:       ex.PaidType,
		ContactEmail:   ex.ContactEmail,
		IsActive:       true,
	})
	if err != nil {
		return err
	}
	res.Created++
	return nil
}

// extractLinks returns absolute same-host links found in the document.
func extractLinks(body string, base *url.URL) []string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key != "href" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(a.Val))
				if err != nil {
					continue
				}
				abs := base.ResolveReference(ref)
				if abs.Host == base.Host && (abs.Scheme == "http" || abs.Scheme == "https") {
					abs.Fragment = ""
					out = append(out, abs.String())
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// pageText flattens the document to whitespace-normalized visible text.
func pageText(body string) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return body
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(b.String()), " ")
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
