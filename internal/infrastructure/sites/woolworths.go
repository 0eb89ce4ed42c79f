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

const woolworthsBaseURL = "https://www.woolworths.co.za"

// Category slugs onto the food department paths Woolworths serves.
var woolworthsCategoryPaths = map[string]string{
	"fruit-vegetables": "/cat/Food/Fruit-Vegetables-Salads/_/N-lllnam",
	"meat-poultry":     "/cat/Food/Meat-Poultry-Fish/_/N-j8pkwq",
	"dairy-eggs":       "/cat/Food/Milk-Dairy-Eggs/_/N-1sqo44f",
}

// WoolworthsAdapter scrapes the Woolworths food listings. Product identity
// and price ride on the data-cnstrc-* attributes the site renders for its
// search provider, with text selectors as fallback.
type WoolworthsAdapter struct {
	client  *http.Client
	baseURL string
}

var _ scraper.Adapter = (*WoolworthsAdapter)(nil)

// NewWoolworthsAdapter wires an HTTP client; nil gets a 30s-timeout default.
func NewWoolworthsAdapter(client *http.Client) *WoolworthsAdapter {
	if client == nil {
		client = defaultClient()
	}
	return &WoolworthsAdapter{client: client, baseURL: woolworthsBaseURL}
}

// Store identifies the adapter inside the registry.
func (a *WoolworthsAdapter) Store() domain.Store {
	return domain.StoreWoolworths
}

// FetchProducts walks category pages and extracts product records.
func (a *WoolworthsAdapter) FetchProducts(ctx context.Context, req scraper.Request) ([]domain.ProductRecord, error) {
	path, ok := woolworthsCategoryPaths[req.Category]
	if !ok {
		path = woolworthsCategoryPaths["fruit-vegetables"]
	}

	var products []domain.ProductRecord
	for page := 0; page < req.MaxPages; page++ {
		pageURL := fmt.Sprintf("%s%s?No=%d", a.baseURL, path, page*24)
		doc, err := fetchDocument(ctx, a.client, pageURL)
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

func (a *WoolworthsAdapter) extractProducts(doc *goquery.Document, category string) []domain.ProductRecord {
	var products []domain.ProductRecord
	now := time.Now()

	containers := doc.Find("[data-cnstrc-item-id]")
	if containers.Length() == 0 {
		containers = doc.Find("article.product-list__item, div.product-card")
	}

	containers.Each(func(_ int, container *goquery.Selection) {
		record := domain.ProductRecord{
			Store:      domain.StoreWoolworths,
			Category:   category,
			ObservedAt: now,
		}

		record.ExternalID = container.AttrOr("data-cnstrc-item-id", "")

		name := container.AttrOr("data-cnstrc-item-name", "")
		if name == "" {
			name = container.Find(".product-card__name, .range--title").First().Text()
		}
		record.Name = strings.TrimSpace(name)

		if priceAttr := container.AttrOr("data-cnstrc-item-price", ""); priceAttr != "" {
			record.Price = parsePrice(priceAttr)
		}
		if record.Price == 0 {
			record.Price = parsePrice(container.Find(".product__price .price, .product-card__actions .price").First().Text())
		}

		if href := container.Find("a[href*='/prod/']").First().AttrOr("href", ""); href != "" {
			if !strings.HasPrefix(href, "http") {
				href = a.baseURL + href
			}
			record.ProductURL = href
		}
		if src, ok := container.Find("img").First().Attr("src"); ok {
			record.ImageURL = src
		}
		record.OnSpecial = container.Find(".product__special, .promotion").Length() > 0

		if record.Name == "" {
			return
		}
		products = append(products, record)
	})

	return products
}
