package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"capital_flux/internal/domain"
	"capital_flux/internal/sync"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupRouter builds the sync routes over a throwaway sqlite database with
// the authenticated user stubbed to id 1
func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "server.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.ServerWallet{}, &domain.ServerTransaction{}))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", uint(1))
		c.Next()
	})
	r.GET("/sync/wallets", ListWalletsHandler(db))
	r.GET("/sync/wallets/:id", GetWalletHandler(db))
	r.POST("/sync/wallets", InsertWalletHandler(db))
	r.PUT("/sync/wallets/:id", UpdateWalletHandler(db))
	r.GET("/sync/transactions", ListTransactionsHandler(db))
	r.POST("/sync/transactions", InsertTransactionHandler(db))
	r.PUT("/sync/transactions/:id", UpdateTransactionHandler(db))
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func walletPayload(clientID string) sync.WalletRecord {
	rec := sync.WalletRecord{
		Name:      "Cash",
		Currency:  "USD",
		Balance:   decimal.NewFromInt(100),
		Icon:      "wallet",
		Color:     "#4F46E5",
		IsActive:  true,
		UpdatedAt: time.Now().UTC(),
	}
	if clientID != "" {
		rec.ClientID = &clientID
	}
	return rec
}

func TestInsertWalletIsIdempotentOnClientID(t *testing.T) {
	r, db := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/sync/wallets", walletPayload("local-1"))
	require.Equal(t, http.StatusCreated, w.Code)
	var first struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.NotEmpty(t, first.ID)

	// Re-posting the same correlation token returns the same id, no new row
	w = doJSON(t, r, http.MethodPost, "/sync/wallets", walletPayload("local-1"))
	require.Equal(t, http.StatusOK, w.Code)
	var second struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&domain.ServerWallet{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestInsertWalletRejectsUnknownCurrency(t *testing.T) {
	r, _ := setupRouter(t)
	rec := walletPayload("")
	rec.Currency = "GBP"
	w := doJSON(t, r, http.MethodPost, "/sync/wallets", rec)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListWalletsFiltersUpdatedSince(t *testing.T) {
	r, db := setupRouter(t)

	old := time.Now().UTC().Add(-time.Hour)
	fresh := time.Now().UTC()
	require.NoError(t, db.Create(&domain.ServerWallet{
		ID: "w-old", UserID: 1, Name: "Old", Currency: domain.CurrencyUSD,
		Balance: decimal.Zero, IsActive: true, UpdatedAt: old,
	}).Error)
	require.NoError(t, db.Create(&domain.ServerWallet{
		ID: "w-new", UserID: 1, Name: "New", Currency: domain.CurrencyUSD,
		Balance: decimal.Zero, IsActive: true, UpdatedAt: fresh,
	}).Error)
	// Another user's wallet never shows up
	require.NoError(t, db.Create(&domain.ServerWallet{
		ID: "w-other", UserID: 2, Name: "Other", Currency: domain.CurrencyUSD,
		Balance: decimal.Zero, IsActive: true, UpdatedAt: fresh,
	}).Error)

	cutoff := old.Add(time.Minute).Format(time.RFC3339)
	w := doJSON(t, r, http.MethodGet, "/sync/wallets?updated_since="+cutoff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Wallets []sync.WalletRecord `json:"wallets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Wallets, 1)
	assert.Equal(t, "w-new", resp.Wallets[0].ID)

	// No filter returns everything the caller owns
	w = doJSON(t, r, http.MethodGet, "/sync/wallets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Wallets, 2)
}

func TestUpdateWalletRestampsUpdatedAt(t *testing.T) {
	r, db := setupRouter(t)

	stale := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Create(&domain.ServerWallet{
		ID: "w-1", UserID: 1, Name: "Cash", Currency: domain.CurrencyUSD,
		Balance: decimal.Zero, IsActive: true, UpdatedAt: stale,
	}).Error)

	rec := walletPayload("")
	rec.Name = "Renamed"
	w := doJSON(t, r, http.MethodPut, "/sync/wallets/w-1", rec)
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.ServerWallet
	require.NoError(t, db.First(&got, "id = ?", "w-1").Error)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, got.UpdatedAt.After(stale), "updated_at must be restamped server-side")
}

func TestUpdateWalletUnknownIDReturns404(t *testing.T) {
	r, _ := setupRouter(t)
	w := doJSON(t, r, http.MethodPut, "/sync/wallets/missing", walletPayload(""))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetWalletScopedToCaller(t *testing.T) {
	r, db := setupRouter(t)
	require.NoError(t, db.Create(&domain.ServerWallet{
		ID: "w-2", UserID: 2, Name: "Other", Currency: domain.CurrencyUSD,
		Balance: decimal.Zero, IsActive: true, UpdatedAt: time.Now().UTC(),
	}).Error)

	w := doJSON(t, r, http.MethodGet, "/sync/wallets/w-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "another user's wallet must read as missing")
}

func transactionPayload(walletID, clientID string) sync.TransactionRecord {
	rec := sync.TransactionRecord{
		WalletID:  walletID,
		Type:      "expense",
		Amount:    decimal.NewFromInt(25),
		Currency:  "USD",
		Date:      time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if clientID != "" {
		rec.ClientID = &clientID
	}
	return rec
}

func TestInsertTransactionRequiresKnownWallet(t *testing.T) {
	r, _ := setupRouter(t)
	w := doJSON(t, r, http.MethodPost, "/sync/transactions", transactionPayload("no-such-wallet", ""))
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Unknown wallet", resp.Error)
}

func TestInsertTransactionIsIdempotentOnClientID(t *testing.T) {
	r, db := setupRouter(t)
	require.NoError(t, db.Create(&domain.ServerWallet{
		ID: "w-1", UserID: 1, Name: "Cash", Currency: domain.CurrencyUSD,
		Balance: decimal.Zero, IsActive: true, UpdatedAt: time.Now().UTC(),
	}).Error)

	w := doJSON(t, r, http.MethodPost, "/sync/transactions", transactionPayload("w-1", "tx-local-1"))
	require.Equal(t, http.StatusCreated, w.Code)
	var first struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = doJSON(t, r, http.MethodPost, "/sync/transactions", transactionPayload("w-1", "tx-local-1"))
	require.Equal(t, http.StatusOK, w.Code)
	var second struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&domain.ServerTransaction{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestInsertTransactionValidation(t *testing.T) {
	r, db := setupRouter(t)
	require.NoError(t, db.Create(&domain.ServerWallet{
		ID: "w-1", UserID: 1, Name: "Cash", Currency: domain.CurrencyUSD,
		Balance: decimal.Zero, IsActive: true, UpdatedAt: time.Now().UTC(),
	}).Error)

	rec := transactionPayload("w-1", "")
	rec.Type = "loan"
	w := doJSON(t, r, http.MethodPost, "/sync/transactions", rec)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	rec = transactionPayload("w-1", "")
	rec.Amount = decimal.NewFromInt(-5)
	w = doJSON(t, r, http.MethodPost, "/sync/transactions", rec)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
