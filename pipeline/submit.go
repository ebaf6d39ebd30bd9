package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"thread/models"
)

// Submission is one (title, url) pair offered to the queue.
type Submission struct {
	Title         string
	URL           string
	AutoGenerated bool
}

// BatchResult summarizes one submit call.
type BatchResult struct {
	Queued        int `json:"queued"`
	ExceededQueue int `json:"exceeded_queue_limit"`
	DuplicateURL  int `json:"duplicate_url"`
	MalformedURL  int `json:"malformed_url"`
	LongTitle     int `json:"long_title"`
	LongURL       int `json:"long_url"`
	Total         int `json:"total"`
}

func (b BatchResult) Skipped() int {
	return b.ExceededQueue + b.DuplicateURL + b.MalformedURL + b.LongTitle + b.LongURL
}

// Info renders the user-facing batch summary.
func (b BatchResult) Info() string {
	if b.Skipped() == 0 {
		return fmt.Sprintf("%d report(s) added to the queue", b.Queued)
	}
	parts := []string{
		fmt.Sprintf("%d of %d report(s) not added to the queue", b.Skipped(), b.Total),
	}
	if b.ExceededQueue > 0 {
		parts = append(parts, fmt.Sprintf("%d exceeded queue limit", b.ExceededQueue))
	}
	if b.DuplicateURL > 0 {
		parts = append(parts, fmt.Sprintf("%d duplicate URL(s)", b.DuplicateURL))
	}
	if b.MalformedURL > 0 {
		parts = append(parts, fmt.Sprintf("%d malformed URL(s)", b.MalformedURL))
	}
	if b.LongTitle > 0 {
		parts = append(parts, fmt.Sprintf("%d title(s) over %d characters", b.LongTitle, models.MaxTitleLen))
	}
	if b.LongURL > 0 {
		parts = append(parts, fmt.Sprintf("%d URL(s) over %d characters", b.LongURL, models.MaxURLLen))
	}
	return strings.Join(parts, "; ")
}

// Submit validates each item, persists accepted ones with queue status,
// and enqueues them. Validation failures are counted, never fatal.
func (s *Service) Submit(token *string, items []Submission) (BatchResult, error) {
	result := BatchResult{Total: len(items)}
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		rawURL := strings.TrimSpace(item.URL)

		if len(title) > models.MaxTitleLen {
			result.LongTitle++
			continue
		}
		if len(rawURL) > models.MaxURLLen {
			result.LongURL++
			continue
		}
		normalized, err := NormalizeURL(rawURL)
		if err != nil {
			result.MalformedURL++
			continue
		}
		if err := s.fetcher.Probe(normalized); err != nil {
			result.MalformedURL++
			continue
		}
		if s.queue.OwnerHasURL(token, normalized) {
			result.DuplicateURL++
			continue
		}
		if s.queue.OwnerFull(token) {
			result.ExceededQueue++
			continue
		}

		uniqueTitle, err := s.store.UniqueTitle(title)
		if err != nil {
			return result, fmt.Errorf("resolve title: %w", err)
		}
		expires := time.Now().Add(queuedExpiry)
		report := &models.Report{
			Title:                  uniqueTitle,
			URL:                    normalized,
			CurrentStatus:          models.StatusQueue,
			Token:                  token,
			AutomaticallyGenerated: item.AutoGenerated,
			ExpiresOn:              &expires,
		}
		if err := s.store.InsertReport(report); err != nil {
			return result, err
		}
		s.queue.Enqueue(report)
		result.Queued++
	}
	s.wake()
	return result, nil
}

// NormalizeURL applies submit-time URL hygiene: scheme defaulting,
// fragment stripping, and structural checks. The hostname must be a name,
// not a bare IP.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.New("missing host")
	}
	if net.ParseIP(host) != nil {
		return "", errors.New("ip hostnames not accepted")
	}
	return u.String(), nil
}

// ErrCSVMissingText reports an empty title or url cell.
var ErrCSVMissingText = errors.New("CSV is missing text in at least one row")

// ParseCSV reads a two-column title,url batch. Headers and cells are
// whitespace-trimmed; an empty cell anywhere rejects the whole file.
func ParseCSV(r io.Reader) ([]Submission, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	titleCol, urlCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "title":
			titleCol = i
		case "url":
			urlCol = i
		}
	}
	if titleCol < 0 || urlCol < 0 {
		return nil, errors.New("CSV must have title and url columns")
	}

	var out []Submission
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}
		title := strings.TrimSpace(record[titleCol])
		link := strings.TrimSpace(record[urlCol])
		if title == "" || link == "" {
			return nil, ErrCSVMissingText
		}
		out = append(out, Submission{Title: title, URL: link})
	}
	return out, nil
}
