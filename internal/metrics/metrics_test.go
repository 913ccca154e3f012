package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordGift(t *testing.T) {
	beforeOK := testutil.ToFloat64(gifts.WithLabelValues(GiftOK))
	beforeCoins := testutil.ToFloat64(giftCoins)
	beforeFail := testutil.ToFloat64(gifts.WithLabelValues(GiftInsufficientFunds))

	RecordGift(GiftOK, 30)
	RecordGift(GiftInsufficientFunds, 500)

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(gifts.WithLabelValues(GiftOK)))
	assert.Equal(t, beforeCoins+30, testutil.ToFloat64(giftCoins), "only committed gifts move coins")
	assert.Equal(t, beforeFail+1, testutil.ToFloat64(gifts.WithLabelValues(GiftInsufficientFunds)))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordHTTPRequest("GET", "", 200, time.Millisecond)
	RecordFrame("chat")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(body, `theplug_http_requests_total{method="GET",route="unmatched",status="200"}`))
	assert.True(t, strings.Contains(body, `theplug_relay_frames_total{event="chat"}`))
}
