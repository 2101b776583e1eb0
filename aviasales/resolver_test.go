package aviasales

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubFareAPI struct {
	price float64
	err   error
	calls int
}

func (s *stubFareAPI) MinFare(ctx context.Context, originIATA, destIATA string) (float64, error) {
	s.calls++
	return s.price, s.err
}

func TestResolveUsesAPIPrice(t *testing.T) {
	api := &stubFareAPI{price: 4990}
	r := NewResolver(api)

	res := r.Resolve(context.Background(), "Москва-Сочи", "Москва", "Сочи")

	assert.Equal(t, 4990.0, res.Price)
	assert.Equal(t, SourceAPI, res.Source)
	assert.Equal(t, 1, api.calls)
}

func TestResolveUnmappedCitySkipsAPI(t *testing.T) {
	api := &stubFareAPI{price: 4990}
	r := NewResolver(api)

	res := r.Resolve(context.Background(), "Мурманск-Сочи", "Мурманск", "Сочи")

	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, 12000.0, res.Price) // сочи keyword
	assert.Zero(t, api.calls, "unmapped city must not reach the API")

	// Deterministic: same unresolvable input, same price.
	again := r.Resolve(context.Background(), "Мурманск-Сочи", "Мурманск", "Сочи")
	assert.Equal(t, res, again)
}

func TestResolveAPIFailureFallsBack(t *testing.T) {
	api := &stubFareAPI{err: errors.New("connection refused")}
	r := NewResolver(api)

	res := r.Resolve(context.Background(), "Москва-Пекин", "Москва", "Пекин")

	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, 45000.0, res.Price)
}

func TestResolveNoFaresFallsBack(t *testing.T) {
	api := &stubFareAPI{err: ErrNoFares}
	r := NewResolver(api)

	res := r.Resolve(context.Background(), "Москва-Казань", "Москва", "Казань")

	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, 8000.0, res.Price)
}

func TestResolveFallbackUsesRawRouteText(t *testing.T) {
	api := &stubFareAPI{err: errors.New("timeout")}
	r := NewResolver(api)

	// The raw text "Пекин-Санкт-Петербург" parses with destination
	// "" under the hyphen-city rule; keyword precedence must still
	// see the whole route, so Beijing wins over Petersburg.
	res := r.Resolve(context.Background(), "Пекин-Санкт-Петербург", "Санкт-Петербург", "")

	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, 45000.0, res.Price)

	// Without raw text the pair is rebuilt.
	res = r.Resolve(context.Background(), "", "Санкт-Петербург", "")
	assert.Equal(t, 7000.0, res.Price)
}

func TestFallbackPriceTable(t *testing.T) {
	tests := []struct {
		route string
		want  float64
	}{
		{"Москва-Сочи", 12000.0},
		{"Москва-Казань", 8000.0},
		{"Москва-Пекин", 45000.0},
		{"Moscow-Beijing", 45000.0},
		{"Москва-Париж", 25000.0},
		{"Москва-Лондон", 30000.0},
		{"Москва-Дубай", 35000.0},
		{"Москва-Токио", 50000.0},
		{"Москва-Санкт-Петербург", 7000.0},
		{"Питер-Москва", 7000.0},
		{"Москва-Краснодар", 9000.0},
		{"Москва-Екатеринбург", 10000.0},
		{"Москва-Новосибирск", 15000.0},
		{"Тьмутаракань-Урюпинск", 15000.0}, // default
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FallbackPrice(tc.route), "route %q", tc.route)
	}
}

func TestFallbackPricePrecedence(t *testing.T) {
	// пекин is declared before сочи, so it wins for routes that
	// mention both cities, regardless of direction.
	assert.Equal(t, 45000.0, FallbackPrice("Сочи-Пекин"))
	assert.Equal(t, 45000.0, FallbackPrice("Пекин-Сочи"))
}

func TestIATACode(t *testing.T) {
	tests := []struct {
		city string
		code string
	}{
		{"Москва", "MOW"},
		{"  сочи ", "AER"},
		{"Санкт-Петербург", "LED"},
		{"Питер", "LED"},
		{"ПЕКИН", "PEK"},
	}
	for _, tc := range tests {
		code, ok := IATACode(tc.city)
		assert.True(t, ok, "city %q", tc.city)
		assert.Equal(t, tc.code, code, "city %q", tc.city)
	}

	_, ok := IATACode("Мурманск")
	assert.False(t, ok)
}
