package adapters

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"grocery-helpers/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const walmart = "https://www.walmart.ca"

const walmartSearchPage = `
<div class="product-tile">
  <input type="hidden" class="productSkus" value='{"productid":"6000196245426","skuid":"6000196245427"}'>
  <a class="product-link" data-bind="click: function() { return navigate($data, '/en/ip/great-value-bananas/6000196245426') }">
    <h2 class="title">Bananas</h2>
  </a>
  <p class="description">Sold by the bunch</p>
  <span class="price-current">29<sup>¢</sup></span>
  <span class="price-unit">$0.64/1kg</span>
</div>
<div class="product-tile">
  <input type="hidden" class="productSkus" value='{"productid":6000191271406}'>
  <a class="product-link" data-bind="click: function() { return navigate($data, '/en/ip/lactantia-2-milk/6000191271406') }">
    <h2 class="title">Lactantia 2% Milk</h2>
  </a>
  <p class="description">4 L</p>
  <span class="price-current">$5<sup>.47</sup></span>
</div>`

func TestWalmartAdapter_Search(t *testing.T) {
	session := newFakeSession()
	session.show(walmart+"/search/bananas", page(""), page(walmartSearchPage))
	adapter, _ := newTestWalmart(t, session)

	products, err := adapter.Search(context.Background(), "bananas")

	require.NoError(t, err)
	require.Len(t, products, 2)

	bananas := products[0]
	assert.Equal(t, "6000196245426", bananas.SKU)
	assert.Equal(t, "Bananas", bananas.Name)
	assert.Equal(t, "Sold by the bunch", bananas.Description)
	assert.Equal(t, "0.29", bananas.Price.String())
	assert.Equal(t, walmart+"/en/ip/great-value-bananas/6000196245426", bananas.Link)
	assert.Equal(t, []types.UnitPrice{{Price: "$0.64", Quantity: "1kg"}}, bananas.UnitPrices)

	milk := products[1]
	assert.Equal(t, "6000191271406", milk.SKU)
	assert.Equal(t, "5.47", milk.Price.String())
	assert.Empty(t, milk.UnitPrices)
	assert.Equal(t, 1, session.released)
}

func TestWalmartAdapter_SearchNoResults(t *testing.T) {
	session := newFakeSession()
	session.show(walmart+"/search/unobtainium", page(`<div data-automation="no-results">Nothing</div>`))
	adapter, _ := newTestWalmart(t, session)

	_, err := adapter.Search(context.Background(), "unobtainium")

	assert.ErrorIs(t, err, types.ErrNoSearchResults)
}

const walmartMilkLink = walmart + "/en/ip/lactantia-2-milk/6000191271406"

const walmartProductPage = `
<script type="application/ld+json">{"@context":"https://schema.org","@type":"BreadcrumbList","itemListElement":[
  {"@type":"ListItem","position":1,"item":{"name":"Grocery"}},
  {"@type":"ListItem","position":2,"item":{"name":"Dairy & Eggs"}},
  {"@type":"ListItem","position":3,"item":{"name":"Milk"}}]}</script>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"Product","name":"Lactantia 2% Milk","description":"Partly skimmed milk","sku":"6000191271406","image":["https://i5.walmartimages.ca/milk.jpg"],"brand":{"@type":"Brand","name":"Lactantia"},"offers":{"@type":"Offer","price":5.47,"priceCurrency":"CAD"}}</script>
<div class="buybox"><span data-automation="buybox-price-ppu">$0.14/100ml</span></div>
<section>
  <h3>Product Identifiers</h3>
  <div><span>UPC</span><span>06820000124</span></div>
  <div><span>Model #</span><span>124</span></div>
  <div><span>Item #</span><span>30050917</span></div>
  <div><span>Other</span><span>ignored</span></div>
</section>`

func TestWalmartAdapter_GetProductInfo(t *testing.T) {
	session := newFakeSession()
	session.show(walmartMilkLink, page(walmartProductPage))
	adapter, _ := newTestWalmart(t, session)

	product, err := adapter.GetProductInfo(context.Background(), walmartMilkLink)

	require.NoError(t, err)
	assert.Equal(t, []string{walmartMilkLink}, session.navigations)
	assert.Equal(t, "6000191271406", product.SKU)
	assert.Equal(t, "Lactantia 2% Milk", product.Name)
	assert.Equal(t, "Lactantia", product.Brand)
	assert.Equal(t, "Partly skimmed milk", product.Description)
	assert.Equal(t, "5.47", product.Price.String())
	assert.Equal(t, "https://i5.walmartimages.ca/milk.jpg", product.ImageURL)
	assert.Equal(t, []string{"Dairy & Eggs", "Milk"}, product.Categories)
	assert.Equal(t, []types.UnitPrice{{Price: "$0.14", Quantity: "100ml"}}, product.UnitPrices)
	assert.Equal(t, map[string]string{
		"UPC":     "06820000124",
		"Model #": "124",
		"Item #":  "30050917",
	}, product.Identifiers)
}

func TestWalmartAdapter_AddProductToCurrentOrder(t *testing.T) {
	session := newFakeSession()
	session.show(walmartMilkLink, page(`<span data-automation="quantity"><input value="1"></span><button>Add to cart</button>`))
	adapter, _ := newTestWalmart(t, session)

	err := adapter.AddProductToCurrentOrder(context.Background(), walmartMilkLink, 4)

	require.NoError(t, err)
	assert.Equal(t, []string{walmartQuantity}, session.selectAlls)
	assert.Equal(t, []sentKeys{{selector: walmartQuantity, keys: "4"}}, session.keys)
	assert.Equal(t, []string{walmartAddToCart}, session.evals)
}

func TestWalmartAdapter_OrdersNotSupported(t *testing.T) {
	session := newFakeSession()
	adapter, counter := newTestWalmart(t, session)

	_, err := adapter.GetPastOrdersList(context.Background())
	assert.ErrorIs(t, err, types.ErrNotSupported)

	_, err = adapter.GetItemizedOrderHistory(context.Background())
	assert.ErrorIs(t, err, types.ErrNotSupported)
	assert.Equal(t, 0, counter.calls)
}

const walmartLocatorPage = `
<ul>
  <li data-automation="store-list-item" data-store-id="3011" aria-selected="true">
    <span data-automation="store-name">Calgary Southcentre</span>
    <span data-automation="store-address">100 Anderson Rd SE</span>
    <button data-automation="select-store-button">Select</button>
  </li>
</ul>
<button data-automation="pickup-slot-opener">Reserve a time</button>`

func walmartSlotPage(nextDisabled bool, days ...string) string {
	var b strings.Builder
	for _, day := range days {
		fmt.Fprintf(&b, `<div data-automation="slot-day"><span data-automation="slot-day-label">%s</span>`+
			`<div data-automation="slot"><span data-automation="slot-time">8am-9am</span><span data-automation="slot-status">Available</span></div></div>`, day)
	}
	if nextDisabled {
		b.WriteString(`<button data-automation="slot-next" disabled>Next</button>`)
	} else {
		b.WriteString(`<button data-automation="slot-next">Next</button>`)
	}
	return page(b.String())
}

func TestWalmartAdapter_GetPickupSlots_DisabledNextEndsPaging(t *testing.T) {
	session := newFakeSession()
	session.show(walmart+"/en/stores-near-me?postalCode=T2J+0P8", page(walmartLocatorPage))
	session.show("slots:1", walmartSlotPage(false, "Today", "Tomorrow"))
	session.show("slots:2", walmartSlotPage(true, "Saturday"))
	session.onClick[walmartSlots.openPicker] = func(f *fakeSession) { f.current = "slots:1" }
	session.onClick[walmartSlots.next] = func(f *fakeSession) { f.current = "slots:2" }
	adapter, _ := newTestWalmart(t, session)

	table, err := adapter.GetPickupSlots(context.Background(), "T2J 0P8", "Calgary Southcentre")

	require.NoError(t, err)
	assert.Equal(t, []string{"Today", "Tomorrow", "Saturday"}, table.Days)
	label, ok := table.Get("Saturday", "8am-9am")
	assert.True(t, ok)
	assert.Equal(t, "Available", label)
	// Already the pickup store: no select click, one next click.
	assert.Equal(t, []string{walmartSlots.openPicker, walmartSlots.next}, session.clicks)
}

func TestWalmartAdapter_SearchKeepsTileWithoutPrice(t *testing.T) {
	session := newFakeSession()
	session.show(walmart+"/search/milk", page(strings.Replace(walmartSearchPage,
		`<span class="price-current">$5<sup>.47</sup></span>`,
		`<span class="price-current">Price unavailable</span>`, 1)))
	adapter, _ := newTestWalmart(t, session)

	products, err := adapter.Search(context.Background(), "milk")

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "6000191271406", products[1].SKU)
	assert.True(t, products[1].Price.IsZero())
}
