package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/parking-booking-backend/internal/auth"
	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/parking-booking-backend/internal/vehicle"
)

func executeRequest(t *testing.T, r *gin.Engine, jwt *auth.JWTManager, method, path string, body any, userID, role string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := jwt.GenerateAccessToken(userID, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVehicleEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwt := auth.NewJWTManager("test-secret", time.Hour)
	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewHandler(vehicle.NewService(vehicle.NewMemoryRepository())), auth.AuthRequired(jwt))

	var registered VehicleResponse

	t.Run("Register Vehicle: Success", func(t *testing.T) {
		w := executeRequest(t, r, jwt, http.MethodPost, "/v1/vehicles",
			map[string]string{"plate": " abc 123 ", "class": "motorcycle"}, "alice", auth.RoleDriver)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))
		assert.Equal(t, "ABC 123", registered.Plate)
		assert.Equal(t, compat.Motorcycle, registered.Class)
		assert.Equal(t, "alice", registered.OwnerID)
	})

	t.Run("Register Vehicle: Fail (Duplicate Plate)", func(t *testing.T) {
		w := executeRequest(t, r, jwt, http.MethodPost, "/v1/vehicles",
			map[string]string{"plate": "ABC 123", "class": "car"}, "alice", auth.RoleDriver)
		assert.Equal(t, http.StatusConflict, w.Code)

		var resp response.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "plate_already_registered", resp.Code)
	})

	t.Run("Register Vehicle: Fail (Unknown Class)", func(t *testing.T) {
		w := executeRequest(t, r, jwt, http.MethodPost, "/v1/vehicles",
			map[string]string{"plate": "XYZ", "class": "truck"}, "alice", auth.RoleDriver)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Get Vehicle: Success (Owner)", func(t *testing.T) {
		w := executeRequest(t, r, jwt, http.MethodGet, "/v1/vehicles/"+registered.ID, nil, "alice", auth.RoleDriver)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Get Vehicle: Hidden From Other Drivers", func(t *testing.T) {
		w := executeRequest(t, r, jwt, http.MethodGet, "/v1/vehicles/"+registered.ID, nil, "bob", auth.RoleDriver)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Get Vehicle: Success (Admin)", func(t *testing.T) {
		w := executeRequest(t, r, jwt, http.MethodGet, "/v1/vehicles/"+registered.ID, nil, "ops", auth.RoleAdmin)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("List Vehicles: Own Only", func(t *testing.T) {
		w := executeRequest(t, r, jwt, http.MethodGet, "/v1/vehicles", nil, "bob", auth.RoleDriver)
		require.Equal(t, http.StatusOK, w.Code)

		var page response.PageResponse[VehicleResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Equal(t, 0, page.Total)
		assert.Empty(t, page.Items)
	})
}
