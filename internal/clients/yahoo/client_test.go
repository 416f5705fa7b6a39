package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSnapshot_FromQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "005930.KS", r.URL.Query().Get("symbols"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"quoteResponse":{"result":[{
			"symbol":"005930.KS","shortName":"SamsungElec","currency":"KRW",
			"regularMarketPrice":72100,"regularMarketChange":1100,"regularMarketChangePercent":1.55,
			"regularMarketVolume":15000000,"marketCap":430000000000000,"regularMarketTime":1772600400
		}],"error":null}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	snap, err := c.GetSnapshot(context.Background(), "005930.KS")
	require.NoError(t, err)

	assert.Equal(t, 72100.0, snap.Price)
	assert.Equal(t, "KRW", snap.Currency)
	assert.Equal(t, 1.55, snap.ChangePercent)
	assert.Equal(t, int64(15000000), snap.Volume)
	assert.Equal(t, "SamsungElec", snap.Name)
	assert.Equal(t, "yahoo", snap.Source)
}

func TestGetSnapshot_FallsBackToChartMeta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v7/finance/quote":
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"finance":{"error":{"code":"Unauthorized"}}}`)
		case "/v8/finance/chart/AMD":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"chart":{"result":[{"meta":{"symbol":"AMD","currency":"USD",
				"regularMarketPrice":172.3,"chartPreviousClose":170.0,"regularMarketTime":1772600400}}],"error":null}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	snap, err := c.GetSnapshot(context.Background(), "AMD")
	require.NoError(t, err)
	assert.Equal(t, 172.3, snap.Price)
	assert.Equal(t, "USD", snap.Currency)
	assert.InDelta(t, 2.3, snap.Change, 1e-9)
	assert.InDelta(t, 1.3529, snap.ChangePercent, 1e-3)
}

func TestGetSnapshot_BothEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.GetSnapshot(context.Background(), "AMD")
	require.Error(t, err)
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestGetHistory_ZipsAndFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AMD", r.URL.Path)
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "5d", r.URL.Query().Get("range"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"chart":{"result":[{
			"meta":{"symbol":"AMD","currency":"USD","regularMarketPrice":172.3},
			"timestamp":[1772600400,1772604000,1772607600,1772611200],
			"indicators":{"quote":[{"close":[170.1,null,0,172.3]}]}
		}],"error":null}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	points, err := c.GetHistory(context.Background(), "AMD", 5*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 170.1, points[0].Price)
	assert.Equal(t, time.Unix(1772611200, 0), points[1].Time)
}

func TestGetHistory_ChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.GetHistory(context.Background(), "ZZZZ", 5*24*time.Hour)
	assert.Error(t, err)
}

func TestRangeFor(t *testing.T) {
	assert.Equal(t, "1d", rangeFor(12*time.Hour))
	assert.Equal(t, "5d", rangeFor(5*24*time.Hour))
	assert.Equal(t, "1mo", rangeFor(7*24*time.Hour))
	assert.Equal(t, "3mo", rangeFor(60*24*time.Hour))
}
