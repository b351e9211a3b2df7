package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/scentstock/scentstock/internal/shared"
)

const testSecret = "hush"

func newWebhookRouter(svc *Service, secret string) http.Handler {
	r := chi.NewRouter()
	NewHandler(slog.Default(), svc, secret).MountRoutes(r)
	return r
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(router http.Handler, topic, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/shopify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if topic != "" {
		req.Header.Set("X-Shopify-Topic", topic)
	}
	if signature != "" {
		req.Header.Set("X-Shopify-Hmac-Sha256", signature)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

const fulfilledBody = `{"id":820982911946154500,"name":"#1001","line_items":[{"id":466157049,"sku":"SA_CA_00001","quantity":3,"title":"Lavender"}]}`

func TestWebhookFulfilledDebitsStock(t *testing.T) {
	repo, svc, _ := newCascadeFixture()
	router := newWebhookRouter(svc, testSecret)

	rr := postWebhook(router, TopicOrdersFulfilled, fulfilledBody, sign(fulfilledBody))
	require.Equal(t, http.StatusOK, rr.Code)

	var res Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.True(t, res.Success)
	require.Equal(t, "#1001", res.ProcessedOrder)
	require.Len(t, res.Lines, 1)
	require.Equal(t, OutcomeApplied, res.Lines[0].Outcome)
	require.True(t, repo.stock("OILS_1").Equal(qty(8800)))
	require.True(t, repo.state.claimed["fulfillment:#1001:466157049"])
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	repo, svc, _ := newCascadeFixture()
	router := newWebhookRouter(svc, testSecret)

	for name, signature := range map[string]string{
		"missing":  "",
		"garbage":  "not-base64!",
		"mismatch": sign(fulfilledBody + " "),
	} {
		t.Run(name, func(t *testing.T) {
			rr := postWebhook(router, TopicOrdersFulfilled, fulfilledBody, signature)
			require.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
	require.Empty(t, repo.state.ledger)
}

func TestWebhookWithoutSecretSkipsVerification(t *testing.T) {
	repo, svc, _ := newCascadeFixture()
	router := newWebhookRouter(svc, "")

	rr := postWebhook(router, TopicFulfillmentsCreate, fulfilledBody, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, repo.state.ledger, 2)
}

func TestWebhookOrdersCreateRecordsIncoming(t *testing.T) {
	repo, svc, _ := newCascadeFixture()
	router := newWebhookRouter(svc, "")

	body := `{"id":42,"line_items":[{"sku":"SA_1L_00001","quantity":5}]}`
	rr := postWebhook(router, TopicOrdersCreate, body, "")
	require.Equal(t, http.StatusOK, rr.Code)

	incoming := repo.state.products["OILS_1"].incoming
	require.Len(t, incoming, 1)
	require.Equal(t, "42", incoming[0].OrderNumber, "id is used when the order has no name")
	require.Empty(t, repo.state.ledger)
}

func TestWebhookUnknownTopicAcknowledged(t *testing.T) {
	repo, svc, _ := newCascadeFixture()
	router := newWebhookRouter(svc, "")

	rr := postWebhook(router, "products/update", `{"id":1}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, true, body["received"])
	require.Empty(t, repo.state.ledger)
}

func TestWebhookRejectsMalformedLineItems(t *testing.T) {
	_, svc, _ := newCascadeFixture()
	router := newWebhookRouter(svc, "")

	for _, body := range []string{`{"name":"#1"}`, `{"name":"#1","line_items":{}}`, `not json`} {
		rr := postWebhook(router, TopicOrdersFulfilled, body, "")
		require.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestDecodeOrder(t *testing.T) {
	order, err := DecodeOrder([]byte(`{"id":7,"name":" #1007 ","line_items":[{"sku":"A","quantity":"1.5"},{"id":3,"sku":"B","quantity":2}]}`))
	require.NoError(t, err)
	require.Equal(t, "#1007", order.Ref)
	require.Len(t, order.LineItems, 2)
	require.Equal(t, "idx0", order.LineItems[0].key(0))
	require.Equal(t, "3", order.LineItems[1].key(1))
	require.Equal(t, "1.5", order.LineItems[0].Quantity.String())

	_, err = DecodeOrder([]byte(`{"id":7,"line_items":null}`))
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}
