package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	catalogModel "library-lending/internal/domains/catalog/model"
	catalogRepo "library-lending/internal/domains/catalog/repository"
	"library-lending/internal/domains/inventory/repository"
	"library-lending/internal/domains/inventory/service"
	"library-lending/pkg/cache"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func givenRouter(t *testing.T, stock int) (*gin.Engine, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := catalogRepo.NewMemoryRepository()
	title := &catalogModel.Title{ISBN: "9780134190440", Title: "The Go Programming Language", Stock: stock}
	require.NoError(t, catalog.Create(context.Background(), title))

	ctrl := service.NewController(repository.NewMemoryRepository(catalog), cache.NewMemoryCache(), nil, time.Minute, nil)
	h := NewHandler(ctrl)

	r := gin.New()
	r.GET("/titles/:id/availability", h.GetAvailability)
	return r, title.ID
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestGetAvailability_OK(t *testing.T) {
	// arrange
	r, titleID := givenRouter(t, 2)

	// act
	w := get(r, "/titles/"+titleID.String()+"/availability")

	// assert
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                 `json:"success"`
		Data    AvailabilityResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Data.Stock)
	assert.True(t, body.Data.Available)
}

func TestGetAvailability_BadID(t *testing.T) {
	r, _ := givenRouter(t, 2)

	w := get(r, "/titles/not-a-uuid/availability")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAvailability_UnknownTitle(t *testing.T) {
	r, _ := givenRouter(t, 2)

	w := get(r, "/titles/"+uuid.NewString()+"/availability")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
