package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"a55pay-sdk/models"
	"a55pay-sdk/services/a55"
	"a55pay-sdk/types"
)

func testCharge() *models.ChargeRecord {
	return &models.ChargeRecord{
		ChargeUUID:       "c1",
		Value:            decimal.RequireFromString("100.00"),
		Currency:         "BRL",
		TypeCharge:       "credit_card",
		InstallmentCount: 1,
		Customer:         models.Customer{Name: "Ana Souza", Email: "ana@example.com"},
	}
}

func testUser() *models.UserPaymentData {
	return &models.UserPaymentData{
		Holder:  "ANA SOUZA",
		Number:  "4111 1111 1111 1111",
		Month:   "12",
		Year:    "2030",
		CVC:     "123",
		Phone:   "+55 (11) 98765-4321",
		TaxID:   "123.456.789-09",
		Street1: "Av. Paulista, 1000",
		City:    "São Paulo",
		State:   "SP",
		Zipcode: "01310-100",
	}
}

func TestBuildPayload(t *testing.T) {
	t.Parallel()

	t.Run("normalizes payer data", func(t *testing.T) {
		p := BuildPayload(testCharge(), testUser(), PayloadOptions{})
		require.Equal(t, "Ana Souza", p.PayerName)
		require.Equal(t, "ana@example.com", p.PayerEmail)
		require.Equal(t, "5511987654321", p.CellPhone)
		require.Equal(t, "12345678909", p.PayerTaxID)
		require.Equal(t, "4111111111111111", p.Card.Number)
		require.Equal(t, "01310100", p.Address.PostalCode)
		require.Equal(t, "n/d", p.Address.AddressNumber)
		require.Equal(t, "Av. Paulista, 1000", p.Address.Complement)
		require.Equal(t, "BR", p.Address.Country)
		require.Nil(t, p.ShippingAddress)
		require.Nil(t, p.ThreeDSAuth)
		require.Nil(t, p.DeviceInfo)
	})

	t.Run("attaches proof, device and shipping", func(t *testing.T) {
		user := testUser()
		user.ShippingAddress = &types.Address{Street1: "Rua B", Zipcode: "20000-000", City: "Rio", State: "RJ", Country: "BR"}
		proof := &types.ThreeDSProof{Eci: "05", RequestID: "r1", Xid: "x", Cavv: "c", Version: "2.2.0"}
		device := &models.DeviceFingerprint{DeviceID: "d1"}

		p := BuildPayload(testCharge(), user, PayloadOptions{Proof: proof, Device: device})
		require.Equal(t, proof, p.ThreeDSAuth)
		require.Equal(t, device, p.DeviceInfo)
		require.Equal(t, "20000000", p.ShippingAddress.PostalCode)

		raw, err := json.Marshal(p)
		require.NoError(t, err)
		require.Contains(t, string(raw), `"threeds_auth":{"eci":"05"`)
	})

	t.Run("token payload", func(t *testing.T) {
		raw, err := json.Marshal(TokenPayload("ott_1"))
		require.NoError(t, err)
		require.JSONEq(t, `{"card":{"card_token":"ott_1"}}`, string(raw))
	})
}

func TestValidateCard(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateCard(testUser()))
	require.ErrorIs(t, ValidateCard(nil), types.ErrValidation)

	bad := testUser()
	bad.Number = "4111 1111 1111 1112"
	require.ErrorIs(t, ValidateCard(bad), types.ErrValidation)

	short := testUser()
	short.CVC = "1"
	require.ErrorIs(t, ValidateCard(short), types.ErrValidation)

	cryptogram := testUser()
	cryptogram.CVC = ""
	cryptogram.Cryptogram = "AgAAAAAABk4DWZ4C28yUQAAAAAA="
	require.NoError(t, ValidateCard(cryptogram))

	token := &models.UserPaymentData{CardToken: "tok"}
	require.NoError(t, ValidateCard(token))
}

func TestValidateExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC)
	require.True(t, validateExpiry("12", "2030", now))
	require.True(t, validateExpiry("10", "26", now))
	require.False(t, validateExpiry("09", "2026", now))
	require.False(t, validateExpiry("13", "2030", now))
	require.False(t, validateExpiry("ab", "2030", now))
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		status     int
		body       string
		wantErr    error
		wantStatus models.PaymentStatus
		challenge  bool
	}{
		{name: "challenge required", status: 200, body: `{"status":"pending","url_3ds":"https://acs.example/c"}`, wantStatus: models.PaymentStatusPending, challenge: true},
		{name: "confirmed", status: 200, body: `{"status":"confirmed"}`, wantStatus: models.PaymentStatusConfirmed},
		{name: "paid upper case", status: 200, body: `{"status":"PAID"}`, wantStatus: models.PaymentStatusPaid},
		{name: "pending without url", status: 200, body: `{"status":"pending"}`, wantErr: types.ErrUnexpectedStatus},
		{name: "declined", status: 200, body: `{"status":"declined"}`, wantErr: types.ErrUnexpectedStatus},
		{name: "backend error", status: 400, body: `{"message":"invalid card"}`, wantErr: types.ErrNetwork},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var path string
			var got map[string]interface{}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				body, _ := io.ReadAll(r.Body)
				json.Unmarshal(body, &got)
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			s := NewSubmitter(a55.NewClient(srv.URL))
			outcome, err := s.Submit(context.Background(), "c1", BuildPayload(testCharge(), testUser(), PayloadOptions{}))
			require.Equal(t, "/charge/c1/pay", path)
			require.Equal(t, "Ana Souza", got["payer_name"])

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				if tc.wantErr == types.ErrUnexpectedStatus {
					var sdkErr *types.Error
					require.ErrorAs(t, err, &sdkErr)
					require.JSONEq(t, tc.body, string(sdkErr.Raw))
				}
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantStatus, outcome.Status)
			require.Equal(t, tc.challenge, outcome.ChallengeRequired())
		})
	}
}
