package main

import (
	"bsm/src/db"
	"bsm/src/lib"
	"bsm/src/types"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	mockdb, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	mock.MatchExpectationsInOrder(false)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: mockdb,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

// testAuth stands in for the JWT middleware so handler tests can exercise
// authorization logic without a user row.
func testAuth(userId uint, professionalId uint, role string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("id", userId)
		ctx.Set("professional", professionalId)
		ctx.Set("role", role)
		ctx.Set("email", "someone@example.com")
	}
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", bookableDateValidatorFunc)
	}
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Setenv("MAINTENANCE_MODE", "false")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestGenerateJWT() {
	token, err := generateJWT("someone@example.com", 42, "client", "uid-1")
	assert.Nil(s.T(), err)

	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	assert.Nil(s.T(), err)
	assert.True(s.T(), tkn.Valid)
	assert.Equal(s.T(), "someone@example.com", claims.Username)
	assert.Equal(s.T(), strconv.Itoa(42), claims.Subject)
	assert.Equal(s.T(), "client", claims.Role)
}

func (s *TestSuite) TestCreateBookingRejectsPastDate() {
	os.Setenv("MAINTENANCE_MODE", "false")
	router := setupRouter()
	authorized := router.Group(apiPrefix)
	authorized.Use(testAuth(1, 0, "client"))
	bookingHandlers(authorized)

	past := time.Now().Add(-48 * time.Hour).Format("2006-01-02 15:04:05 -07:00")
	jbody := map[string]any{
		"service":      1,
		"scheduled_at": past,
		"location":     "12 Rue Example, Paris",
	}
	sbody, _ := json.Marshal(&jbody)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(sbody)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
}

func (s *TestSuite) TestCreateBookingRejectsMissingLocation() {
	router := setupRouter()
	authorized := router.Group(apiPrefix)
	authorized.Use(testAuth(1, 0, "client"))
	bookingHandlers(authorized)

	future := time.Now().Add(48 * time.Hour).Format("2006-01-02 15:04:05 -07:00")
	jbody := map[string]any{
		"service":      1,
		"scheduled_at": future,
	}
	sbody, _ := json.Marshal(&jbody)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(sbody)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
}

func (s *TestSuite) TestChargeRequiresPaymentMethod() {
	router := setupRouter()
	authorized := router.Group(apiPrefix)
	authorized.Use(testAuth(1, 0, "client"))
	bookingHandlers(authorized)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/bookings/1/charge", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	assert.Greaterf(s.T(), len(rbytes), 0, "Empty response")
}

func (s *TestSuite) TestChargeUnknownBookingReturns404() {
	d, mock := NewMockDB()
	db.NewDB(d)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	router := setupRouter()
	authorized := router.Group(apiPrefix)
	authorized.Use(testAuth(1, 0, "client"))
	bookingHandlers(authorized)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/bookings/999/charge", strings.NewReader(`{"payment_method_id":"pm_123"}`))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 404, w.Code)
	assert.Nil(s.T(), mock.ExpectationsWereMet())
}

func (s *TestSuite) TestChargeDuplicateIdempotencyKeyConflict() {
	d, mock := NewMockDB()
	db.NewDB(d)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rdb, rmock := redismock.NewClientMock()
	lib.NewRedisClient(rdb)
	defer lib.NewRedisClient(nil)
	rmock.ExpectSetNX("idem:idem-dup", "1", 24*time.Hour).SetVal(false)

	router := setupRouter()
	authorized := router.Group(apiPrefix)
	authorized.Use(testAuth(1, 0, "client"))
	bookingHandlers(authorized)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/bookings/1/charge", strings.NewReader(`{"payment_method_id":"pm_123"}`))
	req.Header.Set("Idempotency-Key", "idem-dup")
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 409, w.Code)
	assert.Nil(s.T(), rmock.ExpectationsWereMet())
}

func (s *TestSuite) TestChargeFailureReleasesIdempotencyKey() {
	d, mock := NewMockDB()
	db.NewDB(d)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rdb, rmock := redismock.NewClientMock()
	lib.NewRedisClient(rdb)
	defer lib.NewRedisClient(nil)
	// A failed attempt frees the key, so retrying with the same key must
	// reach the settlement engine again instead of bouncing with 409.
	rmock.ExpectSetNX("idem:idem-retry", "1", 24*time.Hour).SetVal(true)
	rmock.ExpectDel("idem:idem-retry").SetVal(1)
	rmock.ExpectSetNX("idem:idem-retry", "1", 24*time.Hour).SetVal(true)
	rmock.ExpectDel("idem:idem-retry").SetVal(1)

	router := setupRouter()
	authorized := router.Group(apiPrefix)
	authorized.Use(testAuth(1, 0, "client"))
	bookingHandlers(authorized)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/bookings/1/charge", strings.NewReader(`{"payment_method_id":"pm_123"}`))
		req.Header.Set("Idempotency-Key", "idem-retry")
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), 404, w.Code)
	}
	assert.Nil(s.T(), rmock.ExpectationsWereMet())
}

func (s *TestSuite) TestServiceCreateRequiresProfessional() {
	router := setupRouter()
	authorized := router.Group(apiPrefix)
	authorized.Use(testAuth(1, 0, "client"))
	serviceHandlers(authorized)

	jbody := map[string]any{
		"name":  "Balayage",
		"price": 120.00,
	}
	sbody, _ := json.Marshal(&jbody)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/services", strings.NewReader(string(sbody)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 403, w.Code)
}

func (s *TestSuite) TestSettingsRequireAdmin() {
	router := setupRouter()
	authorized := router.Group(apiPrefix)
	authorized.Use(testAuth(1, 0, "client"))
	settingsHandlers(authorized)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/v1/settings", strings.NewReader(`{"key":"payments.commission_rate","value":0.15,"group":"payments"}`))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 403, w.Code)
}

func TestSuiteRun(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
