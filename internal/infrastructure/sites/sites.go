// Package sites holds the retailer adapters. Each adapter owns its selector
// logic and page-walking; everything downstream sees only ProductRecord
// batches or a FetchError.
package sites

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var priceExpr = regexp.MustCompile(`(\d+(?:[.,]\d{1,2})?)`)

// parsePrice extracts a rand value from retailer price text such as
// "R 12,99", "R129.99" or "From R 45.00". Returns 0 when nothing parses.
func parsePrice(text string) float64 {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "R", "")
	text = strings.TrimSpace(text)

	match := priceExpr.FindString(text)
	if match == "" {
		return 0
	}
	match = strings.ReplaceAll(match, ",", ".")

	var price float64
	if _, err := fmt.Sscanf(match, "%f", &price); err != nil {
		return 0
	}
	return price
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func fetchDocument(ctx context.Context, client *http.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-ZA,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// truncate caps a batch at max when max is positive.
func truncate[T any](items []T, max int) []T {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
