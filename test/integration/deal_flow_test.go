package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriadwik/dealroom-be/internal/config"
	"github.com/satriadwik/dealroom-be/internal/eventbus"
	"github.com/satriadwik/dealroom-be/internal/handler"
	"github.com/satriadwik/dealroom-be/internal/integrations"
	"github.com/satriadwik/dealroom-be/internal/payment"
	"github.com/satriadwik/dealroom-be/internal/server"
	"github.com/satriadwik/dealroom-be/internal/service"
	"github.com/satriadwik/dealroom-be/internal/storage"
	"github.com/satriadwik/dealroom-be/pkg/logger"
)

type testStack struct {
	server   *httptest.Server
	bus      eventbus.EventBus
	gateway  *payment.SimulatedGateway
	notifier *integrations.LoggingNotifier
}

func setupTestServer(t *testing.T) *testStack {
	log := logger.NewNop()

	bus := eventbus.New(log, &eventbus.Config{
		ChannelBuffer: 100,
		MaxRetries:    3,
	})
	publisher := eventbus.NewStatusChangePublisher(bus, log)
	repo := storage.NewMemoryStore(publisher)

	notifier := integrations.NewLoggingNotifier(log)
	notificationConsumer := eventbus.NewNotificationConsumer(repo, notifier, log, 2)
	require.NoError(t, bus.Subscribe(eventbus.EventTypeStatusChanged, notificationConsumer))
	require.NoError(t, bus.Start(context.Background()))

	catalog := integrations.NewMemoryListingCatalog()
	documents := integrations.NewMemoryDocumentStore()
	messages := integrations.NewMemoryMessageLog()

	gateway := payment.NewSimulatedGateway("http://localhost:4000")
	sessions := payment.NewMemorySessionStore()
	reconciler := payment.NewReconciler(repo, gateway, sessions, documents, notifier, log, time.Minute)
	poller := payment.NewPoller(repo, log, 10*time.Millisecond, 5)

	dealService := service.NewDealService(repo, catalog, documents, messages, log)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
	}

	srv := server.New(cfg, log,
		handler.NewTransactionHandler(dealService, log),
		handler.NewPaymentHandler(reconciler, poller, log),
		handler.NewListingHandler(catalog),
		handler.NewHealthHandler(),
	)

	return &testStack{
		server:   httptest.NewServer(srv.Handler()),
		bus:      bus,
		gateway:  gateway,
		notifier: notifier,
	}
}

func (s *testStack) close() {
	s.server.Close()
	_ = s.bus.Shutdown(context.Background())
}

func TestDealLifecycle(t *testing.T) {
	stack := setupTestServer(t)
	defer stack.close()
	base := stack.server.URL

	// Seed the deal terms the parties agreed on.
	listing := postJSON(t, base+"/listings", map[string]interface{}{
		"title":          "Used sedan",
		"seller_id":      "s-1",
		"price":          20000,
		"deposit_amount": 1000,
	}, http.StatusCreated)
	listingID := listing["id"].(string)

	// Open the transaction.
	tx := postJSON(t, base+"/transactions", map[string]interface{}{
		"listing_id": listingID,
		"buyer":      map[string]string{"id": "b-1", "name": "Budi", "email": "budi@example.com", "phone": "+62-811"},
		"seller":     map[string]string{"id": "s-1", "name": "Sari", "email": "sari@example.com", "phone": "+62-812"},
	}, http.StatusCreated)
	txID := tx["id"].(string)
	assert.Equal(t, "AWAITING_DEPOSIT", tx["status"])
	assert.Equal(t, float64(19000), tx["final_payment_amount"])

	// The buyer's first step is confirming intent client-side.
	view := getJSON(t, base+"/transactions/"+txID+"/view?role=buyer", http.StatusOK)
	assert.Equal(t, "confirm_intent", view["step"])

	// Once intent and terms are marked the deposit is payable.
	view = getJSON(t, base+"/transactions/"+txID+"/view?role=buyer&intent_confirmed=true&terms_accepted=true", http.StatusOK)
	assert.Equal(t, "deposit_payment", view["step"])
	// The remaining balance is not disclosed to the buyer yet.
	_, disclosed := view["final_payment_amount"]
	assert.False(t, disclosed)

	// Pay the deposit by card.
	session := postJSON(t, base+"/transactions/"+txID+"/checkout", map[string]interface{}{
		"phase": "deposit",
	}, http.StatusOK)
	assert.NotEmpty(t, session["redirect_url"])

	stack.gateway.Settle(txID, "deposit", payment.ChargeCaptured)
	tx = postJSON(t, base+"/transactions/"+txID+"/payments/confirm", map[string]interface{}{
		"phase": "deposit",
	}, http.StatusOK)
	assert.Equal(t, "DEPOSIT_RECEIVED", tx["status"])

	// A duplicate webhook for the same charge changes nothing.
	postJSON(t, base+"/webhooks/payment", map[string]interface{}{
		"id":             "evt-1",
		"type":           "payment.captured",
		"transaction_id": txID,
		"phase":          "deposit",
	}, http.StatusOK)
	tx = getJSON(t, base+"/transactions/"+txID, http.StatusOK)
	assert.Equal(t, "DEPOSIT_RECEIVED", tx["status"])
	assert.Len(t, tx["audit"], 1)

	// Admin reviews the deposit, which generates the agreement.
	tx = postJSON(t, base+"/transactions/"+txID+"/review", nil, http.StatusOK)
	assert.Equal(t, "IN_REVIEW", tx["status"])
	assert.NotEmpty(t, tx["agreement_document_id"])

	// The admin cannot approve before both parties.
	postJSON(t, base+"/transactions/"+txID+"/approve", map[string]interface{}{
		"role": "admin",
	}, http.StatusPreconditionFailed)

	tx = postJSON(t, base+"/transactions/"+txID+"/approve", map[string]interface{}{
		"role": "seller",
	}, http.StatusOK)
	assert.Equal(t, "SELLER_APPROVED", tx["status"])

	tx = postJSON(t, base+"/transactions/"+txID+"/approve", map[string]interface{}{
		"role": "buyer",
	}, http.StatusOK)
	assert.Equal(t, "BOTH_APPROVED", tx["status"])

	tx = postJSON(t, base+"/transactions/"+txID+"/approve", map[string]interface{}{
		"role": "admin",
	}, http.StatusOK)
	assert.Equal(t, "PAYMENT_PENDING", tx["status"])

	// The buyer settles the balance by bank transfer.
	tx = postClaim(t, base+"/transactions/"+txID+"/bank-claims", "final", "TRF-889", "receipt.jpg", []byte("scan"))
	assert.Equal(t, "PAYMENT_PENDING", tx["status"])

	// A second claim for the same phase is rejected while one is open.
	resp := postClaimRaw(t, base+"/transactions/"+txID+"/bank-claims", "final", "TRF-890", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Admin verifies the transfer; the deal settles.
	tx = postJSON(t, base+"/transactions/"+txID+"/bank-claims/confirm", map[string]interface{}{
		"phase":    "final",
		"decision": "accept",
	}, http.StatusOK)
	assert.Equal(t, "COMPLETED", tx["status"])

	// Contact details unlock for both parties at completion.
	view = getJSON(t, base+"/transactions/"+txID+"/view?role=buyer", http.StatusOK)
	counterpart := view["counterpart"].(map[string]interface{})
	assert.Equal(t, "sari@example.com", counterpart["email"])

	view = getJSON(t, base+"/transactions/"+txID+"/view?role=seller", http.StatusOK)
	counterpart = view["counterpart"].(map[string]interface{})
	assert.Equal(t, "budi@example.com", counterpart["email"])

	// Status-change notifications were fanned out asynchronously.
	time.Sleep(200 * time.Millisecond)
	assert.NotEmpty(t, stack.notifier.Sent())
}

func TestCancelledDealRejectsPayment(t *testing.T) {
	stack := setupTestServer(t)
	defer stack.close()
	base := stack.server.URL

	listing := postJSON(t, base+"/listings", map[string]interface{}{
		"seller_id":      "s-1",
		"price":          5000,
		"deposit_amount": 500,
	}, http.StatusCreated)

	tx := postJSON(t, base+"/transactions", map[string]interface{}{
		"listing_id": listing["id"],
		"buyer":      map[string]string{"id": "b-1", "name": "Budi"},
		"seller":     map[string]string{"id": "s-1", "name": "Sari"},
	}, http.StatusCreated)
	txID := tx["id"].(string)

	tx = postJSON(t, base+"/transactions/"+txID+"/cancel", map[string]interface{}{
		"note": "buyer withdrew",
	}, http.StatusOK)
	assert.Equal(t, "CANCELLED", tx["status"])

	postJSON(t, base+"/transactions/"+txID+"/checkout", map[string]interface{}{
		"phase": "deposit",
	}, http.StatusConflict)

	// Terminal states are final.
	postJSON(t, base+"/transactions/"+txID+"/dispute", nil, http.StatusConflict)
}

func TestMalformedCancelBodyRejected(t *testing.T) {
	stack := setupTestServer(t)
	defer stack.close()
	base := stack.server.URL

	listing := postJSON(t, base+"/listings", map[string]interface{}{
		"seller_id":      "s-1",
		"price":          5000,
		"deposit_amount": 500,
	}, http.StatusCreated)

	tx := postJSON(t, base+"/transactions", map[string]interface{}{
		"listing_id": listing["id"],
		"buyer":      map[string]string{"id": "b-1", "name": "Budi"},
		"seller":     map[string]string{"id": "s-1", "name": "Sari"},
	}, http.StatusCreated)
	txID := tx["id"].(string)

	for _, path := range []string{"/cancel", "/dispute"} {
		resp, err := http.Post(base+"/transactions/"+txID+path, "application/json", strings.NewReader("{not json"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "POST %s", path)
		resp.Body.Close()
	}

	// The transaction is untouched.
	tx = getJSON(t, base+"/transactions/"+txID, http.StatusOK)
	assert.Equal(t, "AWAITING_DEPOSIT", tx["status"])
}

func TestMessageLog(t *testing.T) {
	stack := setupTestServer(t)
	defer stack.close()
	base := stack.server.URL

	listing := postJSON(t, base+"/listings", map[string]interface{}{
		"seller_id":      "s-1",
		"price":          5000,
		"deposit_amount": 500,
	}, http.StatusCreated)

	tx := postJSON(t, base+"/transactions", map[string]interface{}{
		"listing_id": listing["id"],
		"buyer":      map[string]string{"id": "b-1", "name": "Budi"},
		"seller":     map[string]string{"id": "s-1", "name": "Sari"},
	}, http.StatusCreated)
	txID := tx["id"].(string)

	postJSON(t, base+"/transactions/"+txID+"/messages", map[string]interface{}{
		"author": "buyer",
		"body":   "is the price negotiable?",
	}, http.StatusCreated)

	list := getJSON(t, base+"/transactions/"+txID+"/messages", http.StatusOK)
	items := list["items"].([]interface{})
	require.Len(t, items, 1)
	msg := items[0].(map[string]interface{})
	assert.Equal(t, "buyer", msg["author"])
}

func TestHealthCheck(t *testing.T) {
	stack := setupTestServer(t)
	defer stack.close()

	resp, err := http.Get(stack.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "ok", result["status"])
	assert.Equal(t, "dealroom-be", result["service"])
}

func TestTransactionNotFound(t *testing.T) {
	stack := setupTestServer(t)
	defer stack.close()

	resp, err := http.Get(stack.server.URL + "/transactions/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func postJSON(t *testing.T, url string, body interface{}, wantStatus int) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, wantStatus, resp.StatusCode, "POST %s", url)

	var result map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&result)
	return result
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]interface{} {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, wantStatus, resp.StatusCode, "GET %s", url)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func postClaim(t *testing.T, url, phase, referenceCode, proofName string, proof []byte) map[string]interface{} {
	t.Helper()

	resp := postClaimRaw(t, url, phase, referenceCode, proofName, proof)
	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func postClaimRaw(t *testing.T, url, phase, referenceCode, proofName string, proof []byte) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	require.NoError(t, writer.WriteField("phase", phase))
	require.NoError(t, writer.WriteField("reference_code", referenceCode))
	if len(proof) > 0 {
		part, err := writer.CreateFormFile("proof", proofName)
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(proof))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest("POST", url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
