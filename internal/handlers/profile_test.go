package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"contact-service/internal/mocks"
	"contact-service/internal/models"
	"contact-service/internal/plan"
	"contact-service/internal/repositories"
)

func setupProfileRouter(userRepo *mocks.UserRepositoryMock) *gin.Engine {
	handler := NewProfileHandler(userRepo, plan.NewResolver(userRepo))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Set("userEmail", "alice@example.com")
		c.Next()
	})
	r.PUT("/me", handler.UpsertMe)
	r.GET("/me", handler.GetMe)
	r.GET("/users/search", handler.SearchUsers)
	r.PUT("/internal/users/:id/plan", handler.SetPlan)
	return r
}

func TestUpsertMe(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupProfileRouter(userRepo)

	userRepo.On("UpsertProfile", mock.Anything, int64(1), "alice@example.com", "Alice", "").
		Return(models.User{ID: 1, Email: "alice@example.com", DisplayName: "Alice", Plan: "basic"}, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/me", bytes.NewBufferString(`{"display_name":"Alice"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestGetMeNotCreated(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupProfileRouter(userRepo)

	userRepo.On("GetUser", mock.Anything, int64(1)).Return(models.User{}, repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchUsersPlanGateReturnsEmpty(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupProfileRouter(userRepo)

	userRepo.On("GetPlan", mock.Anything, int64(1)).Return("basic", nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/search?q=bob", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Empty(t, resp["users"])
	userRepo.AssertNotCalled(t, "SearchByEmailPrefix", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchUsersEntitled(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupProfileRouter(userRepo)

	userRepo.On("GetPlan", mock.Anything, int64(1)).Return("pro", nil).Once()
	userRepo.On("SearchByEmailPrefix", mock.Anything, "bob", int64(1), 10).
		Return([]models.User{{ID: 2, Email: "bob@example.com", DisplayName: "Bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/search?q=bob", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["users"], 1)
	require.Equal(t, "bob@example.com", resp["users"][0]["email"])
	userRepo.AssertExpectations(t)
}

func TestSearchUsersShortQuery(t *testing.T) {
	router := setupProfileRouter(new(mocks.UserRepositoryMock))

	req := httptest.NewRequest(http.MethodGet, "/users/search?q=ab", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetPlanValidatesTier(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupProfileRouter(userRepo)

	req := httptest.NewRequest(http.MethodPut, "/internal/users/2/plan", bytes.NewBufferString(`{"plan":"gold"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	userRepo.AssertNotCalled(t, "SetPlan", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetPlanSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupProfileRouter(userRepo)

	userRepo.On("SetPlan", mock.Anything, int64(2), "enterprise").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/internal/users/2/plan", bytes.NewBufferString(`{"plan":"enterprise"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	userRepo.AssertExpectations(t)
}
