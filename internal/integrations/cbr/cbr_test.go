package cbr

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyRateResponse = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <KeyRateResponse xmlns="http://web.cbr.ru/">
      <KeyRateResult>
        <diffgr:diffgram xmlns:msdata="urn:schemas-microsoft-com:xml-msdata" xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1">
          <KeyRate xmlns="">
            <KR diffgr:id="KR1" msdata:rowOrder="0">
              <DT>2025-03-21T00:00:00+03:00</DT>
              <Rate>21.00</Rate>
            </KR>
            <KR diffgr:id="KR2" msdata:rowOrder="1">
              <DT>2025-03-20T00:00:00+03:00</DT>
              <Rate>20.50</Rate>
            </KR>
          </KeyRate>
        </diffgr:diffgram>
      </KeyRateResult>
    </KeyRateResponse>
  </soap:Body>
</soap:Envelope>`

func newTestClient(url string) *Client {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(&config.Config{CBRURL: url, RateMargin: 5}, log)
}

func TestGetKeyRate(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "http://web.cbr.ru/KeyRate", r.Header.Get("SOAPAction"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "<fromDate>2025-02-19</fromDate>")
		assert.Contains(t, string(body), "<ToDate>2025-03-21</ToDate>")
		_, _ = io.WriteString(w, keyRateResponse)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	now := time.Date(2025, 3, 21, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	rate, err := c.GetKeyRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21.0, rate)

	suggested, err := c.SuggestedRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 26.0, suggested)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second lookup is served from cache")

	now = now.Add(2 * time.Hour)
	c.now = func() time.Time { return now }
	_, err = c.GetKeyRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetKeyRateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error", http.StatusInternalServerError, "", "unexpected status code: 500"},
		{"not xml", http.StatusOK, "not xml at all", "failed to parse XML"},
		{"empty body", http.StatusOK, "", "failed to parse XML"},
		{"no rows", http.StatusOK, `<root><diffgram><KeyRate></KeyRate></diffgram></root>`, "no key rate data"},
		{"bad rate", http.StatusOK, `<root><diffgram><KeyRate><KR><Rate>n/a</Rate></KR></KeyRate></diffgram></root>`, "failed to parse rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).GetKeyRate(context.Background())
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestGetKeyRateHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv.URL).GetKeyRate(ctx)
	assert.Error(t, err)
}
