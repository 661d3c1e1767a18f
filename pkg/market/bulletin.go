package market

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"acao/entities"
	"acao/pkg/plan/types"
)

// Bulletin is a set of price bands per crop id, as published in a market bulletin.
type Bulletin map[string]types.Band

// FetchBulletin downloads and parses an HTML price bulletin.
func FetchBulletin(ctx context.Context, url string, maxBytes int) (Bulletin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price bulletin %s: status %d", url, resp.StatusCode)
	}
	if resp.ContentLength > int64(maxBytes) {
		return nil, fmt.Errorf("price bulletin %s: page too large", url)
	}
	b, err := io.ReadAll(&io.LimitedReader{R: resp.Body, N: int64(maxBytes)})
	if err != nil {
		return nil, err
	}
	return ParseBulletin(bytes.NewReader(b))
}

// ParseBulletin reads the first table whose header names a crop column and at least
// one price column. Accepted price headers are p10/p50/p90, low/mid/high or price.
func ParseBulletin(r io.Reader) (Bulletin, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	out := Bulletin{}
	var found bool
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		cols := map[string]int{}
		table.Find("tr").First().Find("th,td").Each(func(i int, cell *goquery.Selection) {
			cols[headerKey(cell.Text())] = i
		})
		crop, ok := cols["crop"]
		if !ok {
			return true
		}
		p10, p50, p90 := col(cols, "p10", "low"), col(cols, "p50", "mid", "price"), col(cols, "p90", "high")
		if p50 < 0 && p10 < 0 && p90 < 0 {
			return true
		}
		found = true
		table.Find("tr").Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			cropID := strings.TrimSpace(cells.Eq(crop).Text())
			if cropID == "" {
				return
			}
			band := types.Band{P10: number(cells, p10), P50: number(cells, p50), P90: number(cells, p90)}
			if band.P50 == 0 {
				band.P50 = (band.P10 + band.P90) / 2
			}
			if band.P10 == 0 {
				band.P10 = band.P50
			}
			if band.P90 == 0 {
				band.P90 = band.P50
			}
			if band.P50 > 0 {
				out[cropID] = band
			}
		})
		return false
	})
	if !found {
		return nil, fmt.Errorf("price bulletin: no table with crop and price columns")
	}
	return out, nil
}

func headerKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "crop"):
		return "crop"
	case strings.Contains(s, "p10"):
		return "p10"
	case strings.Contains(s, "p50"):
		return "p50"
	case strings.Contains(s, "p90"):
		return "p90"
	}
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}

func col(cols map[string]int, keys ...string) int {
	for _, k := range keys {
		if i, ok := cols[k]; ok {
			return i
		}
	}
	return -1
}

func number(cells *goquery.Selection, i int) float64 {
	if i < 0 {
		return 0
	}
	s := strings.ReplaceAll(strings.TrimSpace(cells.Eq(i).Text()), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// BulletinEstimator overrides the prices of Base with bulletin prices where the
// bulletin lists the crop.
type BulletinEstimator struct {
	Base   Estimator
	Prices Bulletin
}

func (b BulletinEstimator) Estimate(ctx context.Context, field entities.Field, crop entities.Crop, season types.Season) (types.YieldPriceEstimate, error) {
	e, err := b.Base.Estimate(ctx, field, crop, season)
	if err != nil {
		return e, err
	}
	if band, ok := b.Prices[crop.CropID]; ok {
		e.PriceBand = band
		e.ExpectedPrice = band.P50
	}
	return e, nil
}
