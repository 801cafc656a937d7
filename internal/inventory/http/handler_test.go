package http

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/parking-booking-backend/internal/auth"
	"github.com/nekogravitycat/parking-booking-backend/internal/inventory"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/storage"
)

type testEnv struct {
	router *gin.Engine
	jwt    *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	jwt := auth.NewJWTManager("test-secret", time.Hour)
	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewHandler(inventory.NewService(inventory.NewMemoryStore(), blobs)),
		auth.AuthRequired(jwt), auth.RequireAdmin())

	return &testEnv{router: r, jwt: jwt}
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	token, err := e.jwt.GenerateAccessToken("user-"+role, role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, path string, content []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "layout.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAreaEndpoints(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, auth.RoleAdmin)
	driver := env.token(t, auth.RoleDriver)

	var area AreaResponse

	t.Run("Create Area: Success", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/v1/areas", CreateAreaBody{Name: " West ", Location: "Gate 4"}, admin)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &area))
		assert.Equal(t, "West", area.Name)
		assert.Nil(t, area.LayoutURL)
	})

	t.Run("Create Area: Forbidden (Driver)", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/v1/areas", CreateAreaBody{Name: "East"}, driver)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Create Area: Fail (Missing Name)", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/v1/areas", map[string]string{"location": "Gate 5"}, admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Add Slot: Success", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/v1/areas/"+area.ID+"/slots", map[string]string{"label": "W-1", "class": "car_slot"}, admin)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var slot SlotResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slot))
		assert.Equal(t, inventory.StatusFree, slot.Status)
		assert.Equal(t, area.ID, slot.AreaID)
	})

	t.Run("Add Slot: Fail (Duplicate Label)", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/v1/areas/"+area.ID+"/slots", map[string]string{"label": "W-1", "class": "bike_slot"}, admin)
		assert.Equal(t, http.StatusConflict, w.Code)

		var resp response.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "slot_label_taken", resp.Code)
	})

	t.Run("Add Slot: Fail (Unknown Class)", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/v1/areas/"+area.ID+"/slots", map[string]string{"label": "W-2", "class": "truck_slot"}, admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Get Area: Not Found", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/areas/7d3c1a52-6f0e-4b8e-9a41-0c2d5e6f7a8b", nil, driver)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("List Areas: Keyword Filter", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/areas?q=gate+4", nil, driver)
		require.Equal(t, http.StatusOK, w.Code)

		var page response.PageResponse[AreaResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, area.ID, page.Items[0].ID)
	})

	t.Run("Layout: Not Found Before Upload", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/areas/"+area.ID+"/layout", nil, driver)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Upload Layout: Fail (Not An Image)", func(t *testing.T) {
		w := env.upload(t, "/v1/areas/"+area.ID+"/layout", []byte("not an image"), admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Upload Layout: Success", func(t *testing.T) {
		w := env.upload(t, "/v1/areas/"+area.ID+"/layout", pngBytes(t, 400, 200), admin)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var got AreaResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.NotNil(t, got.LayoutURL)
		require.NotNil(t, got.LayoutThumbnailURL)

		w = env.do(t, http.MethodGet, *got.LayoutURL, nil, driver)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

		w = env.do(t, http.MethodGet, *got.LayoutThumbnailURL, nil, driver)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	})
}
