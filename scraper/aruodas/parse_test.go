package aruodas

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const samplePage = `<html><body>
<div class="list-row">
  <a class="item-url" href="/butai-vilniuje-zirmunuose-1-111/"><img src="https://img.aruodas.lt/1.jpg"></a>
  <div class="list-line-1">  2 kambarių   butas  </div>
  <div class="list-line-2">45,5 m² · 2 kamb. · 3/5 a.</div>
  <div class="list-address">Žirmūnai, Kalvarijų g.</div>
  <div class="list-price-main">90 000 €</div>
</div>
<div class="list-row">
  <div class="list-line-1">Be kainos</div>
  <div class="list-price-main">Kaina sutartinė</div>
</div>
<div class="list-row">
  <div class="list-line-1"></div>
  <div class="list-price-main">1 €</div>
</div>
<div class="list-row">
  <a class="item-url" href="https://www.aruodas.lt/butai-2/"></a>
  <div class="list-line-1">Studija</div>
  <div class="list-line-2">22 m²</div>
  <div class="list-address">Senamiestis</div>
  <div class="list-price-main">65 500 €</div>
</div>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestParseDocument(t *testing.T) {
	base, _ := url.Parse("https://www.aruodas.lt")
	listings, errs := ParseDocument(mustDoc(t, samplePage), "Vilnius", "flat", base)

	if len(errs) != 2 {
		t.Errorf("expected 2 row errors, got %d: %v", len(errs), errs)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}

	first := listings[0]
	if first.Title != "2 kambarių butas" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Price != 90000 {
		t.Errorf("price = %d", first.Price)
	}
	if first.Area != 45.5 {
		t.Errorf("area = %v", first.Area)
	}
	if first.Rooms == nil || *first.Rooms != 2 {
		t.Errorf("rooms = %v", first.Rooms)
	}
	if first.District != "Žirmūnai" || first.Street != "Kalvarijų g." {
		t.Errorf("address = %q / %q", first.District, first.Street)
	}
	if first.URL != "https://www.aruodas.lt/butai-vilniuje-zirmunuose-1-111/" {
		t.Errorf("url = %q", first.URL)
	}
	if len(first.Images) != 1 || first.Images[0] != "https://img.aruodas.lt/1.jpg" {
		t.Errorf("images = %v", first.Images)
	}
	if first.City != "Vilnius" || first.PropertyType != "flat" {
		t.Errorf("city/type = %q/%q", first.City, first.PropertyType)
	}

	second := listings[1]
	if second.District != "Senamiestis" || second.Street != "" {
		t.Errorf("single-part address = %q / %q", second.District, second.Street)
	}
	if second.Rooms != nil {
		t.Errorf("rooms should be absent, got %d", *second.Rooms)
	}
	if len(second.Images) != 0 {
		t.Errorf("images = %v", second.Images)
	}
}

func TestParseRoomsOnlyForFlatsAndHouses(t *testing.T) {
	doc := mustDoc(t, `<div class="list-row"><div class="list-line-1">Sklypas</div>
		<div class="list-line-2">12 a. 3 kamb.</div><div class="list-price-main">15000</div></div>`)
	listings, _ := ParseDocument(doc, "Kaunas", "land", nil)
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}
	if listings[0].Rooms != nil {
		t.Error("land listings must not carry rooms")
	}
	if listings[0].Area != 0 {
		t.Errorf("area without m² should be 0, got %v", listings[0].Area)
	}
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		ptype, city string
		page        int
		want        string
		wantErr     bool
	}{
		{"flat", "Vilnius", 1, "https://www.aruodas.lt/butai/vilnius/", false},
		{"house", "Kaunas", 2, "https://www.aruodas.lt/namai/kaunas/puslapis/2/", false},
		{"land", "Klaipėda", 1, "https://www.aruodas.lt/sklypai/klaip%C4%97da/", false},
		{"cottage", "Šiauliai", 3, "https://www.aruodas.lt/sodybos/%C5%A1iauliai/puslapis/3/", false},
		{"castle", "Vilnius", 1, "", true},
	}

	for _, tt := range tests {
		got, err := PageURL("https://www.aruodas.lt/", tt.ptype, tt.city, tt.page)
		if (err != nil) != tt.wantErr {
			t.Errorf("PageURL(%s, %s) error = %v", tt.ptype, tt.city, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PageURL(%s, %s, %d) = %q; want %q", tt.ptype, tt.city, tt.page, got, tt.want)
		}
	}
}
