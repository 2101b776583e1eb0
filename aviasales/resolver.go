package aviasales

import (
	"context"
	"log/slog"
	"strings"
)

// Source says where a resolved price came from.
type Source string

const (
	SourceAPI      Source = "api"
	SourceFallback Source = "fallback"
)

// PriceResult is what Resolve hands back. It always carries a price.
type PriceResult struct {
	Price  float64
	Source Source
}

// cityToIATA maps lowercase city names to airport codes.
var cityToIATA = map[string]string{
	"москва":          "MOW",
	"сочи":            "AER",
	"санкт-петербург": "LED",
	"питер":           "LED",
	"казань":          "KZN",
	"екатеринбург":    "SVX",
	"новосибирск":     "OVB",
	"краснодар":       "KRR",
	"пекин":           "PEK",
	"париж":           "CDG",
	"лондон":          "LHR",
	"токио":           "NRT",
	"дубай":           "DXB",
}

// fallbackPrices is the keyword price table used when the API cannot
// produce a fare. Order matters: the first keyword found in the route
// text wins, so "Сочи-Пекин" prices as a Beijing route.
var fallbackPrices = []struct {
	keywords []string
	price    float64
}{
	{[]string{"пекин", "beijing"}, 45000.0},
	{[]string{"сочи"}, 12000.0},
	{[]string{"казань"}, 8000.0},
	{[]string{"париж", "paris"}, 25000.0},
	{[]string{"лондон", "london"}, 30000.0},
	{[]string{"дубай", "dubai"}, 35000.0},
	{[]string{"токио", "tokyo"}, 50000.0},
	{[]string{"санкт-петербург", "питер"}, 7000.0},
	{[]string{"краснодар"}, 9000.0},
	{[]string{"екатеринбург"}, 10000.0},
	{[]string{"новосибирск"}, 15000.0},
}

// DefaultFallbackPrice is used when no keyword matches.
const DefaultFallbackPrice = 15000.0

// FallbackPrice returns the fixed keyword-derived price for a route
// string. Pure function of the input text.
func FallbackPrice(route string) float64 {
	lower := strings.ToLower(route)
	for _, row := range fallbackPrices {
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				return row.price
			}
		}
	}
	return DefaultFallbackPrice
}

// FareAPI is the remote collaborator behind Resolver. *Client
// implements it; tests inject a stub.
type FareAPI interface {
	MinFare(ctx context.Context, originIATA, destIATA string) (float64, error)
}

// Resolver maps a city pair to the cheapest known fare. It never
// fails: any lookup or network problem degrades to the fallback
// price table.
type Resolver struct {
	api FareAPI
}

func NewResolver(api FareAPI) *Resolver {
	return &Resolver{api: api}
}

// IATACode converts a city name to its airport code.
func IATACode(city string) (string, bool) {
	code, ok := cityToIATA[strings.ToLower(strings.TrimSpace(city))]
	return code, ok
}

// Resolve returns a price for the city pair. routeText is the raw
// route string as the user typed it; the fallback path keys off it,
// so keyword precedence sees the whole route, not just the parsed
// cities. Pass "" to rebuild it from the pair.
func (r *Resolver) Resolve(ctx context.Context, routeText, origin, destination string) PriceResult {
	if routeText == "" {
		routeText = origin + "-" + destination
	}

	originIATA, ok := IATACode(origin)
	if !ok {
		slog.Debug("no IATA code for city", "city", origin)
		return PriceResult{Price: FallbackPrice(routeText), Source: SourceFallback}
	}
	destIATA, ok := IATACode(destination)
	if !ok {
		slog.Debug("no IATA code for city", "city", destination)
		return PriceResult{Price: FallbackPrice(routeText), Source: SourceFallback}
	}

	price, err := r.api.MinFare(ctx, originIATA, destIATA)
	if err != nil {
		slog.Warn("fare api lookup failed, using fallback price",
			"origin", originIATA, "destination", destIATA, "err", err)
		return PriceResult{Price: FallbackPrice(routeText), Source: SourceFallback}
	}

	return PriceResult{Price: price, Source: SourceAPI}
}
