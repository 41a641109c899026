package routes

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/config"
	"github.com/gradskill/backend/internal/database"
	"github.com/gradskill/backend/internal/handlers"
	"github.com/gradskill/backend/internal/middleware"
	"github.com/gradskill/backend/internal/queue"
	"github.com/gradskill/backend/internal/services/kyc"
	"github.com/gradskill/backend/internal/services/payment"
	"github.com/gradskill/backend/internal/services/payment/cashfree"
	"github.com/gradskill/backend/internal/services/referral"
	"github.com/gradskill/backend/internal/services/sms"
	"github.com/gradskill/backend/internal/services/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testRouter(t *testing.T, rl *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	gateway := cashfree.NewClient(config.CashfreeConfig{})
	graph := referral.NewService(db)
	reconciler := payment.NewReconciler(db, gateway, queue.NewQueue(db), "", "")

	router := gin.New()
	Register(router, Handlers{
		Auth:     handlers.NewAuthHandler(db, graph, sms.LogSender{}),
		Payment:  handlers.NewPaymentHandler(db, reconciler, gateway),
		Referral: handlers.NewReferralHandler(graph, referral.NewEarningsService(db, nil)),
		Wallet:   handlers.NewWalletHandler(wallet.NewService(db)),
		KYC:      handlers.NewKYCHandler(kyc.NewService(db, nil), nil),
		Course:   handlers.NewCourseHandler(db),
	}, rl)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	rl := middleware.NewRateLimiter(100, 100)
	defer rl.Stop()
	router := testRouter(t, rl)

	w := get(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIGroupIsRateLimited(t *testing.T) {
	rl := middleware.NewRateLimiter(1, 2)
	defer rl.Stop()
	router := testRouter(t, rl)

	assert.Equal(t, http.StatusOK, get(router, "/api/courses").Code)
	assert.Equal(t, http.StatusOK, get(router, "/api/courses").Code)

	// The burst is spent, so the next request is turned away.
	assert.Equal(t, http.StatusTooManyRequests, get(router, "/api/courses").Code)

	// Health sits outside the limited group and stays reachable.
	assert.Equal(t, http.StatusOK, get(router, "/health").Code)
}

func TestAuthedRoutesRejectMissingToken(t *testing.T) {
	rl := middleware.NewRateLimiter(100, 100)
	defer rl.Stop()
	router := testRouter(t, rl)

	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/wallet").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/admin/withdrawals").Code)
}
