package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/pipeline/internal/logging"
)

func TestGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Venice", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		json.NewEncoder(w).Encode([]map[string]any{
			{
				"lat":          "45.4371908",
				"lon":          "12.3345898",
				"display_name": "Venezia, Veneto, Italia",
				"address":      map[string]string{"country": "Italia"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, logging.NewNop())

	result, found, err := client.Geocode(context.Background(), "Venice")

	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 45.4371908, result.Point.Lat, 1e-9)
	assert.InDelta(t, 12.3345898, result.Point.Lon, 1e-9)
	assert.Equal(t, "Italia", result.Country)
}

func TestGeocode_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]any{})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, logging.NewNop())

	_, found, err := client.Geocode(context.Background(), "nowhere at all")

	require.NoError(t, err)
	assert.False(t, found)
}

func TestGeocode_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, logging.NewNop())

	_, _, err := client.Geocode(context.Background(), "Venice")

	assert.Error(t, err)
}
