package sites

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/scraper"
)

func TestParsePrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
	}{
		{"R 12,99", 12.99},
		{"R129.99", 129.99},
		{"From R 45.00", 45},
		{"\n R 9,50 \n", 9.5},
		{"no price here", 0},
		{"", 0},
	}

	for _, tc := range cases {
		if got := parsePrice(tc.in); got != tc.want {
			t.Fatalf("parsePrice(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestShopriteExtractProducts(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<div class="item-product">
		  <a class="product-listening-click" href="/p/10091234" title="White Bread 700g">White Bread 700g</a>
		  <img src="/img/bread.jpg"/>
		  <div class="js-item-product-price">R 18,99</div>
		</div>
		<div class="item-product">
		  <a class="product-listening-click" href="/p/10095678">Full Cream Milk 1L</a>
		  <div class="js-item-product-price">R 24,99</div>
		  <div class="special-price">
		    <div class="special-price__price">R 19,99</div>
		    <div class="special-price__was">R 24,99</div>
		  </div>
		</div>
		<div class="item-product">
		  <a class="product-listening-click" href="/p/10099999"></a>
		  <div class="js-item-product-price">R 5,00</div>
		</div>`))
	}))
	defer server.Close()

	adapter := NewShopriteAdapter(server.Client())
	adapter.baseURL = server.URL

	products, err := adapter.FetchProducts(context.Background(), scraper.Request{Category: "food", MaxPages: 1})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(products) != 2 {
		t.Fatalf("expected 2 products (nameless one dropped), got %d", len(products))
	}

	bread := products[0]
	if bread.Name != "White Bread 700g" || bread.Price != 18.99 {
		t.Fatalf("unexpected first product: %+v", bread)
	}
	if bread.ExternalID != "10091234" {
		t.Fatalf("expected external id from href, got %q", bread.ExternalID)
	}
	if bread.OnSpecial {
		t.Fatalf("bread should not be on special")
	}

	milk := products[1]
	if !milk.OnSpecial {
		t.Fatalf("milk should be on special")
	}
	if milk.Price != 19.99 {
		t.Fatalf("special price must override the base price, got %v", milk.Price)
	}
}

func TestShopriteFetchErrorOnFirstPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := NewShopriteAdapter(server.Client())
	adapter.baseURL = server.URL

	_, err := adapter.FetchProducts(context.Background(), scraper.Request{Category: "food", MaxPages: 1})
	var fetchErr *scraper.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Store != domain.StoreShoprite {
		t.Fatalf("unexpected store on error: %s", fetchErr.Store)
	}
}

func TestPnPExtractProducts(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<div data-product-id="000000000000334401">
		  <div class="product-grid-item__info-container"><span class="item-name">Fresh Avocados 4pk</span></div>
		  <div class="product-grid-item__price-container">R 39,99</div>
		  <a href="/p/000000000000334401"></a>
		  <img src="/img/avo.jpg"/>
		</div>
		<div data-product-id="000000000000334402">
		  <div class="product-grid-item__info-container"><span class="item-name">Sparkling Water 1.5L</span></div>
		  <div class="product-grid-item__price-container">R 14,99</div>
		</div>`))
	}))
	defer server.Close()

	adapter := NewPnPAdapter(server.Client())
	adapter.baseURL = server.URL

	products, err := adapter.FetchProducts(context.Background(), scraper.Request{Category: "promotions", MaxPages: 1, MaxProducts: 1})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("max products cap not honored, got %d", len(products))
	}
	if products[0].ExternalID != "000000000000334401" {
		t.Fatalf("unexpected external id: %s", products[0].ExternalID)
	}
	if products[0].Price != 39.99 {
		t.Fatalf("unexpected price: %v", products[0].Price)
	}
	if !products[0].OnSpecial {
		t.Fatalf("promotions listing should mark records on special")
	}
}

func TestWoolworthsExtractsDataAttributes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<article data-cnstrc-item-id="6009175940224" data-cnstrc-item-name="Baby Spinach 200g" data-cnstrc-item-price="29.99">
		  <a href="/prod/6009175940224">Baby Spinach 200g</a>
		  <img src="/img/spinach.jpg"/>
		</article>`))
	}))
	defer server.Close()

	adapter := NewWoolworthsAdapter(server.Client())
	adapter.baseURL = server.URL

	products, err := adapter.FetchProducts(context.Background(), scraper.Request{Category: "fruit-vegetables", MaxPages: 1})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}

	p := products[0]
	if p.ExternalID != "6009175940224" {
		t.Fatalf("unexpected external id: %s", p.ExternalID)
	}
	if p.Name != "Baby Spinach 200g" {
		t.Fatalf("unexpected name: %s", p.Name)
	}
	if p.Price != 29.99 {
		t.Fatalf("unexpected price: %v", p.Price)
	}
}
