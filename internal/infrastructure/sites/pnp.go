package sites

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/scraper"
)

const pnpBaseURL = "https://www.pnp.co.za"

// PnPAdapter scrapes Pick n Pay. The site exposes no stable category
// taxonomy for scraping; "promotions" browses the on-promotion facet and
// anything else falls back to the base catalogue.
type PnPAdapter struct {
	client  *http.Client
	baseURL string
}

var _ scraper.Adapter = (*PnPAdapter)(nil)

// NewPnPAdapter wires an HTTP client; nil gets a 30s-timeout default.
func NewPnPAdapter(client *http.Client) *PnPAdapter {
	if client == nil {
		client = defaultClient()
	}
	return &PnPAdapter{client: client, baseURL: pnpBaseURL}
}

// Store identifies the adapter inside the registry.
func (a *PnPAdapter) Store() domain.Store {
	return domain.StorePnP
}

// FetchProducts walks listing pages and extracts product records.
func (a *PnPAdapter) FetchProducts(ctx context.Context, req scraper.Request) ([]domain.ProductRecord, error) {
	var products []domain.ProductRecord
	seen := map[string]struct{}{}

	for page := 0; page < req.MaxPages; page++ {
		doc, err := fetchDocument(ctx, a.client, a.pageURL(req.Category, page))
		if err != nil {
			if page == 0 {
				return nil, &scraper.FetchError{Store: a.Store(), Category: req.Category, Err: err}
			}
			break
		}

		pageProducts := a.extractProducts(doc, req.Category)
		if len(pageProducts) == 0 {
			break
		}
		for _, p := range pageProducts {
			key := p.ExternalID
			if key == "" {
				key = p.Name
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			products = append(products, p)
		}

		if req.MaxProducts > 0 && len(products) >= req.MaxProducts {
			break
		}
	}

	return truncate(products, req.MaxProducts), nil
}

func (a *PnPAdapter) pageURL(category string, page int) string {
	query := ":relevance:allCategories:pnpbase"
	if category == "promotions" {
		query += ":isOnPromotion:On%20Promotion"
	}
	return fmt.Sprintf("%s/c/pnpbase?query=%s&currentPage=%d", a.baseURL, query, page)
}

func (a *PnPAdapter) extractProducts(doc *goquery.Document, category string) []domain.ProductRecord {
	var products []domain.ProductRecord
	now := time.Now()

	// Product cards carry a data-product-id; older templates only link to
	// /p/ detail pages, so both shapes are walked.
	containers := doc.Find("div[data-product-id]")
	if containers.Length() == 0 {
		containers = doc.Find("a[href*='/p/']")
	}

	containers.Each(func(_ int, container *goquery.Selection) {
		record := domain.ProductRecord{
			Store:      domain.StorePnP,
			Category:   category,
			ObservedAt: now,
		}

		record.ExternalID = container.AttrOr("data-product-id", "")

		name := container.Find(".product-grid-item__info-container .item-name").First().Text()
		if strings.TrimSpace(name) == "" {
			name = container.AttrOr("title", "")
		}
		if strings.TrimSpace(name) == "" {
			name = container.Find("img").First().AttrOr("alt", "")
		}
		record.Name = strings.TrimSpace(name)

		href := container.AttrOr("href", "")
		if href == "" {
			href = container.Find("a[href*='/p/']").First().AttrOr("href", "")
		}
		if href != "" && !strings.HasPrefix(href, "http") {
			href = a.baseURL + href
		}
		record.ProductURL = href

		if src, ok := container.Find("img").First().Attr("src"); ok {
			record.ImageURL = src
		}

		priceText := container.Find(".product-grid-item__price-container").First().Text()
		if strings.TrimSpace(priceText) == "" {
			priceText = container.Find(".price").First().Text()
		}
		record.Price = parsePrice(priceText)
		record.OnSpecial = container.Find(".promotion-text, .on-promotion").Length() > 0 || category == "promotions"

		if record.Name == "" {
			return
		}
		products = append(products, record)
	})

	return products
}
