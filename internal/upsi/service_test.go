package upsi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/upsi-probe/internal/postgrest"
)

// fakeSupabase serves canned JSON keyed by "<path>?<rawquery>".
func fakeSupabase(t *testing.T, responses map[string]string) (*Service, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path + "?" + r.URL.RawQuery
		body, ok := responses[key]
		if !ok {
			t.Errorf("unexpected request: %s", key)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))

	client := postgrest.NewClient(zap.NewNop(), nil, postgrest.ClientConfig{
		BaseURL: server.URL,
		APIKey:  "anon",
	}, 10*time.Second)
	return NewService(zap.NewNop(), client), server
}

func TestGetUPSI(t *testing.T) {
	svc, server := fakeSupabase(t, map[string]string{
		"/rest/v1/upsi_records?upsi_id=eq.UPSI-001&select=*": `[{"upsi_id":"UPSI-001","upsi_type":"earnings","company_symbol":"RELIANCE","description":"Q3 results"}]`,
	})
	defer server.Close()

	record, err := svc.GetUPSI(context.Background(), "UPSI-001")

	require.NoError(t, err)
	assert.Equal(t, "earnings", record.UPSIType)
	assert.Equal(t, "RELIANCE", record.CompanySymbol)
}

func TestGetUPSI_NotFound(t *testing.T) {
	svc, server := fakeSupabase(t, map[string]string{
		"/rest/v1/upsi_records?upsi_id=eq.UPSI-999&select=*": `[]`,
	})
	defer server.Close()

	_, err := svc.GetUPSI(context.Background(), "UPSI-999")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetActiveUPSI(t *testing.T) {
	svc, server := fakeSupabase(t, map[string]string{
		"/rest/v1/upsi_records?company_symbol=eq.RELIANCE&is_public=eq.false&select=*": `[
			{"upsi_id":"UPSI-001","upsi_type":"earnings","company_symbol":"RELIANCE","is_public":false},
			{"upsi_id":"UPSI-002","upsi_type":"merger","company_symbol":"RELIANCE","is_public":false}
		]`,
	})
	defer server.Close()

	records, err := svc.GetActiveUPSI(context.Background(), "RELIANCE")

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "merger", records[1].UPSIType)
}

func TestGetActiveUPSI_Empty(t *testing.T) {
	svc, server := fakeSupabase(t, map[string]string{
		"/rest/v1/upsi_records?company_symbol=eq.TCS&is_public=eq.false&select=*": `[]`,
	})
	defer server.Close()

	records, err := svc.GetActiveUPSI(context.Background(), "TCS")

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGetAccessLog_RangeFilters(t *testing.T) {
	svc, server := fakeSupabase(t, map[string]string{
		"/rest/v1/upsi_access_log?upsi_id=eq.UPSI-001&access_timestamp=gte.1700000000&access_timestamp=lte.1700086400&select=*": `[
			{"access_id":"ACC-1","upsi_id":"UPSI-001","accessor_name":"R. Mehta","accessor_designation":"CFO","access_timestamp":1700001000}
		]`,
	})
	defer server.Close()

	entries, err := svc.GetAccessLog(context.Background(), "UPSI-001", 1700000000, 1700086400)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "CFO", entries[0].AccessorDesignation)
}

func TestGetAccessByPerson(t *testing.T) {
	fixed := time.Unix(1700086400, 0)
	// 1 day back from the fixed clock
	svc, server := fakeSupabase(t, map[string]string{
		"/rest/v1/upsi_access_log?accessor_entity_id=eq.ENT-42&access_timestamp=gte.1700000000&select=*": `[
			{"access_id":"ACC-7","upsi_id":"UPSI-003","accessor_entity_id":"ENT-42"}
		]`,
	})
	defer server.Close()
	svc.now = func() time.Time { return fixed }

	entries, err := svc.GetAccessByPerson(context.Background(), "ENT-42", 1)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "UPSI-003", entries[0].UPSIID)
}

func TestCheckAccessBefore_FiltersByCompany(t *testing.T) {
	svc, server := fakeSupabase(t, map[string]string{
		"/rest/v1/upsi_access_log?accessor_entity_id=eq.ENT-42&access_timestamp=lt.1700000000&select=*": `[
			{"access_id":"ACC-1","upsi_id":"UPSI-001","accessor_entity_id":"ENT-42"},
			{"access_id":"ACC-2","upsi_id":"UPSI-002","accessor_entity_id":"ENT-42"},
			{"access_id":"ACC-3","upsi_id":"UPSI-404","accessor_entity_id":"ENT-42"}
		]`,
		"/rest/v1/upsi_records?upsi_id=eq.UPSI-001&select=*": `[{"upsi_id":"UPSI-001","company_symbol":"RELIANCE"}]`,
		"/rest/v1/upsi_records?upsi_id=eq.UPSI-002&select=*": `[{"upsi_id":"UPSI-002","company_symbol":"TCS"}]`,
		"/rest/v1/upsi_records?upsi_id=eq.UPSI-404&select=*": `[]`,
	})
	defer server.Close()

	entries, err := svc.CheckAccessBefore(context.Background(), "ENT-42", "RELIANCE", 1700000000)

	require.NoError(t, err)
	// one matching company, one other company, one dangling reference skipped
	require.Len(t, entries, 1)
	assert.Equal(t, "ACC-1", entries[0].AccessID)
}

func TestGetTradingWindow(t *testing.T) {
	svc, server := fakeSupabase(t, map[string]string{
		"/rest/v1/trading_windows?company_symbol=eq.RELIANCE&select=*": `[
			{"company_symbol":"RELIANCE","window_status":"CLOSED","closure_reason":"results announcement","closure_start":1700000000,"expected_opening":1700604800}
		]`,
	})
	defer server.Close()

	window, err := svc.GetTradingWindow(context.Background(), "RELIANCE")

	require.NoError(t, err)
	assert.Equal(t, WindowClosed, window.WindowStatus)
	assert.Equal(t, "results announcement", window.ClosureReason)
}

func TestGetTradingWindow_NotFound(t *testing.T) {
	svc, server := fakeSupabase(t, map[string]string{
		"/rest/v1/trading_windows?company_symbol=eq.INFY&select=*": `[]`,
	})
	defer server.Close()

	_, err := svc.GetTradingWindow(context.Background(), "INFY")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckWindowViolation(t *testing.T) {
	closedWindow := `[{"company_symbol":"RELIANCE","window_status":"CLOSED","closure_start":1700000000,"expected_opening":1700604800}]`

	cases := []struct {
		name     string
		body     string
		tradeTS  int64
		violated bool
	}{
		{"trade inside closure", closedWindow, 1700100000, true},
		{"trade before closure", closedWindow, 1699999999, false},
		{"trade at reopening", closedWindow, 1700604800, false},
		{"window open", `[{"company_symbol":"RELIANCE","window_status":"OPEN"}]`, 1700100000, false},
		{"no window record", `[]`, 1700100000, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, server := fakeSupabase(t, map[string]string{
				"/rest/v1/trading_windows?company_symbol=eq.RELIANCE&select=*": tc.body,
			})
			defer server.Close()

			violated, err := svc.CheckWindowViolation(context.Background(), "ENT-42", "RELIANCE", tc.tradeTS)

			require.NoError(t, err)
			assert.Equal(t, tc.violated, violated)
		})
	}
}

func TestGetAccessors(t *testing.T) {
	svc, server := fakeSupabase(t, map[string]string{
		"/rest/v1/upsi_access_log?upsi_id=eq.UPSI-001&select=*": `[
			{"access_id":"ACC-1","accessor_name":"R. Mehta","accessor_designation":"CFO","access_reason":"board review"},
			{"access_id":"ACC-2","accessor_name":"S. Iyer","accessor_designation":"Auditor","access_reason":"quarterly audit"}
		]`,
	})
	defer server.Close()

	entries, err := svc.GetAccessors(context.Background(), "UPSI-001")

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "S. Iyer", entries[1].AccessorName)
}
