package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptforge/internal/types"
)

type fakeBillingLookup struct {
	customerID string
	email      string
	lookupErr  error

	updatedUserID     string
	updatedCustomerID string
	updateErr         error
}

func (f *fakeBillingLookup) GetBillingInfo(ctx context.Context, userID string) (string, string, error) {
	if f.lookupErr != nil {
		return "", "", f.lookupErr
	}
	return f.customerID, f.email, nil
}

func (f *fakeBillingLookup) UpdateStripeCustomerID(ctx context.Context, userID string, customerID string) error {
	f.updatedUserID = userID
	f.updatedCustomerID = customerID
	return f.updateErr
}

func newStripeTestClient(srv *httptest.Server, users UserBillingLookup) *StripeClient {
	base := NewBaseClient(
		srv.Client(),
		"stripe-test",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"PromptForge/test",
		WithSleepFunc(noSleep),
	)
	return NewStripeClientWithBase(base, users, StripeClientConfig{
		SecretKey:  "sk_test_123",
		ProPriceID: "price_pro_monthly",
		BaseURL:    srv.URL,
	})
}

func TestStripeClient_EnsureCustomerUsesStoredID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no Stripe call expected when customer ID is stored locally")
	}))
	defer srv.Close()

	users := &fakeBillingLookup{customerID: "cus_existing", email: "a@example.com"}
	c := newStripeTestClient(srv, users)

	id, err := c.EnsureCustomer(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_existing", id)
}

func TestStripeClient_EnsureCustomerFindsBySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/customers/search", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("query"), "user_1")
		w.Write([]byte(`{"data":[{"id":"cus_found","email":"a@example.com"}]}`))
	}))
	defer srv.Close()

	users := &fakeBillingLookup{email: "a@example.com"}
	c := newStripeTestClient(srv, users)

	id, err := c.EnsureCustomer(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_found", id)
	assert.Equal(t, "cus_found", users.updatedCustomerID)
	assert.Equal(t, "user_1", users.updatedUserID)
}

func TestStripeClient_EnsureCustomerCreatesWhenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/customers/search":
			w.Write([]byte(`{"data":[]}`))
		case "/v1/customers":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "a@example.com", r.Form.Get("email"))
			assert.Equal(t, "user_1", r.Form.Get("metadata[user_id]"))
			w.Write([]byte(`{"id":"cus_new","email":"a@example.com"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	users := &fakeBillingLookup{email: "a@example.com"}
	c := newStripeTestClient(srv, users)

	id, err := c.EnsureCustomer(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_new", id)
	assert.Equal(t, "cus_new", users.updatedCustomerID)
}

func TestStripeClient_CreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "cus_existing", r.Form.Get("customer"))
		assert.Equal(t, "subscription", r.Form.Get("mode"))
		assert.Equal(t, "user_1", r.Form.Get("client_reference_id"))
		assert.Equal(t, "price_pro_monthly", r.Form.Get("line_items[0][price]"))
		assert.Equal(t, "https://app.example.com/billing?ok=1", r.Form.Get("success_url"))
		w.Write([]byte(`{"id":"cs_123","url":"https://checkout.stripe.com/pay/cs_123"}`))
	}))
	defer srv.Close()

	users := &fakeBillingLookup{customerID: "cus_existing", email: "a@example.com"}
	c := newStripeTestClient(srv, users)

	url, sessionID, err := c.CreateCheckoutSession(context.Background(), "user_1", CheckoutURLs{
		Success: "https://app.example.com/billing?ok=1",
		Cancel:  "https://app.example.com/billing?canceled=1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_123", url)
	assert.Equal(t, "cs_123", sessionID)
}

func TestStripeClient_MapsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	}))
	defer srv.Close()

	users := &fakeBillingLookup{customerID: "cus_existing", email: "a@example.com"}
	c := newStripeTestClient(srv, users)

	_, _, err := c.CreateCheckoutSession(context.Background(), "user_1", CheckoutURLs{})
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeUpstreamStripe, appErr.Code)
	assert.Contains(t, appErr.Message, "declined")
}

func TestStripeClient_PropagatesLookupError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no Stripe call expected when the user lookup fails")
	}))
	defer srv.Close()

	lookupErr := types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	users := &fakeBillingLookup{lookupErr: lookupErr}
	c := newStripeTestClient(srv, users)

	_, err := c.EnsureCustomer(context.Background(), "user_missing")
	require.Error(t, err)
	assert.Equal(t, lookupErr, err)
}
