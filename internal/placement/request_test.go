package placement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/1broseidon/popdeck/internal/tiling"
)

func TestRequestURLAndWindowName(t *testing.T) {
	cases := []struct {
		req  Request
		url  string
		name string
	}{
		{Request{ViewType: ViewAlerts}, "http://localhost:3000/detailed/alerts?window=alerts-dashboard", "alerts-dashboard"},
		{Request{ViewType: ViewMetrics}, "http://localhost:3000/detailed/metrics?window=metrics-dashboard", "metrics-dashboard"},
		{Request{ViewType: ViewOperations}, "http://localhost:3000/detailed/operations?window=operations-dashboard", "operations-dashboard"},
		{Request{ViewType: ViewFlight, EntityID: "AA100"}, "http://localhost:3000/detailed/AA100?window=flight-AA100", "flight-AA100"},
	}
	for _, tc := range cases {
		require.NoError(t, tc.req.Validate())
		got, err := tc.req.URL("http://localhost:3000/")
		require.NoError(t, err)
		require.Equal(t, tc.url, got)
		require.Equal(t, tc.name, tc.req.WindowName())
	}
}

func TestRequestValidate(t *testing.T) {
	require.ErrorIs(t, Request{ViewType: ViewFlight}.Validate(), ErrInvalidRequest)
	require.ErrorIs(t, Request{ViewType: "weather"}.Validate(), ErrInvalidRequest)
	require.ErrorIs(t, Request{ViewType: ViewAlerts, Layout: &tiling.Options{Mode: tiling.Mode("bogus")}}.Validate(), ErrInvalidRequest)
	require.ErrorIs(t, Request{ViewType: "Flight"}.Validate(), ErrInvalidRequest)
	require.ErrorIs(t, Request{ViewType: " FLIGHT ", EntityID: "  "}.Validate(), ErrInvalidRequest)
}

func TestRequestMixedCaseViewType(t *testing.T) {
	req := Request{ViewType: "Flight", EntityID: "UA100"}
	require.NoError(t, req.Validate())
	require.Equal(t, "flight-UA100", req.WindowName())
	got, err := req.URL("http://localhost:3000")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3000/detailed/UA100?window=flight-UA100", got)

	req = Request{ViewType: " Metrics "}
	require.Equal(t, "metrics-dashboard", req.WindowName())
}

func TestParseViewType(t *testing.T) {
	v, err := ParseViewType(" Metrics ")
	require.NoError(t, err)
	require.Equal(t, ViewMetrics, v)

	_, err = ParseViewType("")
	require.ErrorIs(t, err, ErrInvalidRequest)
}
