package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeThemes struct {
	theme, window string
}

func (f *fakeThemes) SetThemeFrom(_ context.Context, theme, window string) (bool, error) {
	if theme == "sepia" {
		return false, errors.New("invalid theme")
	}
	changed := theme != f.theme
	f.theme, f.window = theme, window
	return changed, nil
}

func TestMailbox_LastWriteWinsPerType(t *testing.T) {
	m := NewMailbox()
	require.NoError(t, m.Post("alerts-dashboard", []byte(`{"type":"DETAILED_VIEW_DATA","payload":{"n":1},"timestamp":1}`)))
	require.NoError(t, m.Post("alerts-dashboard", []byte(`{"type":"THEME_CHANGE","payload":{"theme":"dark"},"timestamp":2}`)))
	require.NoError(t, m.Post("alerts-dashboard", []byte(`{"type":"DETAILED_VIEW_DATA","payload":{"n":2},"timestamp":3}`)))

	msgs := m.Messages("alerts-dashboard")
	require.Len(t, msgs, 2)
	require.JSONEq(t, `{"type":"THEME_CHANGE","payload":{"theme":"dark"},"timestamp":2}`, string(msgs[0]))
	require.JSONEq(t, `{"type":"DETAILED_VIEW_DATA","payload":{"n":2},"timestamp":3}`, string(msgs[1]))

	require.Error(t, m.Post("x", []byte(`not json`)))
	require.Error(t, m.Post("x", []byte(`{"payload":{}}`)))

	m.Drop("alerts-dashboard")
	require.Empty(t, m.Messages("alerts-dashboard"))
	require.Empty(t, m.Windows())
}

func TestServer_GetDeleteAndTheme(t *testing.T) {
	m := NewMailbox()
	themes := &fakeThemes{theme: "light"}
	srv := httptest.NewServer(NewServer(context.Background(), m, themes).Handler())
	defer srv.Close()

	require.NoError(t, m.Post("metrics-dashboard", []byte(`{"type":"THEME_CHANGE","payload":{"theme":"light"},"timestamp":5}`)))

	resp, err := http.Get(srv.URL + "/relay/metrics-dashboard")
	require.NoError(t, err)
	var got messagesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "metrics-dashboard", got.Window)
	require.Len(t, got.Messages, 1)

	resp, err = http.Post(srv.URL+"/relay/metrics-dashboard/theme", "application/json", strings.NewReader(`{"theme":"dark"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "dark", themes.theme)
	require.Equal(t, "metrics-dashboard", themes.window)

	resp, err = http.Post(srv.URL+"/relay/metrics-dashboard/theme", "application/json", strings.NewReader(`{"theme":"sepia"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/relay/metrics-dashboard", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, m.Messages("metrics-dashboard"))
}
