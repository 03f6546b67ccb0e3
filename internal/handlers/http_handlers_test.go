package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"luckydraw/internal/live"
	"luckydraw/internal/models"
	"luckydraw/internal/services"
)

const tenant = "tenant-a"

func newTestRouter(t *testing.T) (*gin.Engine, *services.LotteryService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := live.NewHub()
	go hub.Run(ctx)

	service := services.NewLotteryService(nil)
	return NewRouter(NewHTTPHandler(service, hub, 1<<20), nil), service
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tenantHeader, tenant)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, r http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/participants/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(tenantHeader, tenant)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestDrawFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := upload(t, r, "staff.csv", "ID,Name,Department\n1,Alice,Eng\n2,Bob,\n3,Cara,Ops\n,\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	imported := decode[struct {
		Imported       int            `json:"imported"`
		HeaderDetected bool           `json:"headerDetected"`
		Skipped        map[string]int `json:"skipped"`
	}](t, rec)
	require.Equal(t, 3, imported.Imported)
	require.True(t, imported.HeaderDetected)
	require.Equal(t, 1, imported.Skipped["blank_name"])

	rec = do(t, r, http.MethodPost, "/api/prizes", gin.H{"name": "Headphones", "count": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	prize := decode[models.Prize](t, rec)
	require.Equal(t, 1, prize.Level)

	rec = do(t, r, http.MethodPost, "/api/draw/start", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/draw/select", gin.H{"prizeId": prize.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/draw/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "running", decode[map[string]any](t, rec)["state"])

	rec = do(t, r, http.MethodPost, "/api/draw/select", gin.H{"prizeId": prize.ID})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/draw/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stopped := decode[struct {
		State   string               `json:"state"`
		Pending []models.Participant `json:"pending"`
	}](t, rec)
	require.Equal(t, "pending", stopped.State)
	require.Len(t, stopped.Pending, 2)

	rec = do(t, r, http.MethodPost, "/api/draw/commit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	committed := decode[struct {
		Committed []models.WinnerRecord `json:"committed"`
	}](t, rec)
	require.Len(t, committed.Committed, 2)

	rec = do(t, r, http.MethodPost, "/api/draw/commit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[struct {
		Committed []models.WinnerRecord `json:"committed"`
	}](t, rec).Committed)

	rec = do(t, r, http.MethodPost, "/api/draw/start", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), services.ErrPrizeExhausted.Error())

	rec = do(t, r, http.MethodGet, "/api/prizes", nil)
	board := decode[struct {
		Prizes []models.PrizeStatus `json:"prizes"`
	}](t, rec)
	require.True(t, board.Prizes[0].Complete)

	rec = do(t, r, http.MethodDelete, "/api/prizes/"+prize.ID, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/winners/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(rec.Body.String(), "\xef\xbb\xbf"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Headphones", rows[1][0])

	rec = do(t, r, http.MethodPost, "/api/reset/winners", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodGet, "/api/winners", nil)
	require.Empty(t, decode[struct {
		History []models.PrizeWinners `json:"history"`
	}](t, rec).History)
	rec = do(t, r, http.MethodGet, "/api/participants", nil)
	require.Len(t, decode[struct {
		Participants []models.Participant `json:"participants"`
	}](t, rec).Participants, 3)
}

func TestOverrideRules(t *testing.T) {
	r, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/api/participants", gin.H{"id": "A", "name": "Alice"}).Code)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/api/participants", gin.H{"id": "B", "name": "Bob"}).Code)
	prize := decode[models.Prize](t, do(t, r, http.MethodPost, "/api/prizes", gin.H{"name": "Car", "count": 1}))

	rec := do(t, r, http.MethodPost, "/api/rules", gin.H{"prizeId": prize.ID, "participantId": "nobody"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/rules", gin.H{"prizeId": prize.ID, "participantId": "A"})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/api/draw/select", gin.H{"prizeId": prize.ID}).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/api/draw/start", nil).Code)
	stopped := decode[struct {
		Pending []models.Participant `json:"pending"`
	}](t, do(t, r, http.MethodPost, "/api/draw/stop", nil))
	require.Len(t, stopped.Pending, 1)
	require.Equal(t, "A", stopped.Pending[0].ID)

	rec = do(t, r, http.MethodDelete, "/api/rules?prizeId="+prize.ID+"&participantId=A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decode[map[string]any](t, rec)["removed"])
}

func TestValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("prize needs a positive count", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/prizes", gin.H{"name": "Mug", "count": 0})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("participant needs a name", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/participants", gin.H{"id": "X"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate participant", func(t *testing.T) {
		require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/api/participants", gin.H{"id": "D", "name": "Dee"}).Code)
		rec := do(t, r, http.MethodPost, "/api/participants", gin.H{"id": "D", "name": "Dee"})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown prize selection", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/draw/select", gin.H{"prizeId": "missing"})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unreadable import applies nothing", func(t *testing.T) {
		rec := upload(t, r, "staff.xlsx", "not a workbook")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		rec = do(t, r, http.MethodGet, "/api/participants", nil)
		require.Len(t, decode[struct {
			Participants []models.Participant `json:"participants"`
		}](t, rec).Participants, 1)
	})

	t.Run("unsupported import type", func(t *testing.T) {
		rec := upload(t, r, "staff.pdf", "1,Alice")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown export format", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/winners/export?format=pdf", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTenantMiddleware(t *testing.T) {
	r, service := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, tenantCookie, cookies[0].Name)
	require.NotEmpty(t, cookies[0].Value)

	req = httptest.NewRequest(http.MethodPost, "/api/participants", strings.NewReader(`{"id":"1","name":"Ann"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, service.Session(cookies[0].Value).Participants(), 1)
	require.Empty(t, service.Session(tenant).Participants())
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Result().Cookies())
}
