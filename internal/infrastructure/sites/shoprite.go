package sites

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/scraper"
)

const shopriteBaseURL = "https://www.shoprite.co.za"

var shopriteIDExpr = regexp.MustCompile(`/p/(\d+)`)

// ShopriteAdapter scrapes the Shoprite food listings. Categories map onto
// the site's allCategories facet; the canonical "food" category browses the
// whole department.
type ShopriteAdapter struct {
	client  *http.Client
	baseURL string
}

var _ scraper.Adapter = (*ShopriteAdapter)(nil)

// NewShopriteAdapter wires an HTTP client; nil gets a 30s-timeout default.
func NewShopriteAdapter(client *http.Client) *ShopriteAdapter {
	if client == nil {
		client = defaultClient()
	}
	return &ShopriteAdapter{client: client, baseURL: shopriteBaseURL}
}

// Store identifies the adapter inside the registry.
func (a *ShopriteAdapter) Store() domain.Store {
	return domain.StoreShoprite
}

// FetchProducts walks category pages and extracts product records.
func (a *ShopriteAdapter) FetchProducts(ctx context.Context, req scraper.Request) ([]domain.ProductRecord, error) {
	var products []domain.ProductRecord

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
		products = append(products, pageProducts...)

		if req.MaxProducts > 0 && len(products) >= req.MaxProducts {
			break
		}
	}

	return truncate(products, req.MaxProducts), nil
}

func (a *ShopriteAdapter) pageURL(category string, page int) string {
	base := a.baseURL + "/c-2413/All-Departments/Food"
	facet := "%3Arelevance%3AbrowseAllStoresFacetOff%3AbrowseAllStoresFacetOff"
	if category != "" && category != "food" {
		facet = "%3Arelevance%3AallCategories%3A" + strings.ReplaceAll(category, "-", "_") + facet
	}
	return fmt.Sprintf("%s?q=%s&page=%d", base, facet, page)
}

func (a *ShopriteAdapter) extractProducts(doc *goquery.Document, category string) []domain.ProductRecord {
	var products []domain.ProductRecord
	now := time.Now()

	doc.Find("div.item-product").Each(func(_ int, container *goquery.Selection) {
		record := domain.ProductRecord{
			Store:      domain.StoreShoprite,
			Category:   category,
			ObservedAt: now,
		}

		link := container.Find("a.product-listening-click").First()
		record.Name = strings.TrimSpace(link.Text())
		if record.Name == "" {
			record.Name = strings.TrimSpace(link.AttrOr("title", ""))
		}

		if href, ok := link.Attr("href"); ok {
			if !strings.HasPrefix(href, "http") {
				href = a.baseURL + href
			}
			record.ProductURL = href
			if m := shopriteIDExpr.FindStringSubmatch(href); len(m) > 1 {
				record.ExternalID = m[1]
			}
		}

		if src, ok := container.Find("img").First().Attr("src"); ok {
			record.ImageURL = src
		}

		// js-item-product-price is always present; a special-price block
		// overrides it with the promotional amount.
		record.Price = parsePrice(container.Find("div.js-item-product-price").First().Text())
		special := container.Find("div.special-price")
		if special.Length() > 0 {
			record.OnSpecial = true
			if p := parsePrice(special.Find("div.special-price__price").First().Text()); p > 0 {
				record.Price = p
			}
		}

		if record.Name == "" {
			return
		}
		products = append(products, record)
	})

	return products
}
