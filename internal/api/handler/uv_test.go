package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvconsensus/uvconsensus/internal/api/handler"
	"github.com/uvconsensus/uvconsensus/internal/api/models"
	"github.com/uvconsensus/uvconsensus/internal/uv"
)

type fakeUVService struct {
	got          *uv.Request
	err          error
	availability map[string]bool
	stats        *uv.CacheStats
}

func (f *fakeUVService) GetUV(_ context.Context, req uv.Request) (*uv.Response, error) {
	f.got = &req
	if f.err != nil {
		return nil, f.err
	}
	return &uv.Response{
		Lat:       req.Lat,
		Lon:       req.Lon,
		Date:      "2024-06-01",
		Timezone:  "Europe/Madrid",
		Providers: []uv.ProviderStatus{{Name: "open_meteo"}},
		Hourly:    []uv.HourBucket{},
	}, nil
}

func (f *fakeUVService) ProviderAvailability() map[string]bool {
	return f.availability
}

func (f *fakeUVService) CacheStats() (uv.CacheStats, bool) {
	if f.stats == nil {
		return uv.CacheStats{}, false
	}
	return *f.stats, true
}

func serveUV(t *testing.T, svc *fakeUVService, target string) *httptest.ResponseRecorder {
	t.Helper()
	h := handler.NewUVHandler(svc, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.GetUV(rec, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return rec
}

func TestUVHandler_GetUV(t *testing.T) {
	svc := &fakeUVService{}

	rec := serveUV(t, svc, "/v1/uv?lat=40.4168&lon=-3.7038&date=2024-06-01&tz=auto")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.got)
	assert.Equal(t, uv.Request{Lat: 40.4168, Lon: -3.7038, Date: "2024-06-01", Timezone: "auto"}, *svc.got)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Europe/Madrid", body["tz"])
	assert.Equal(t, 40.4168, body["lat"])
}

func TestUVHandler_GetUV_OptionalParams(t *testing.T) {
	svc := &fakeUVService{}

	rec := serveUV(t, svc, "/v1/uv?lat=0&lon=0")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uv.Request{}, *svc.got, "zero coordinates are valid and date/tz stay empty")
}

func TestUVHandler_GetUV_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		fields map[string]string // field -> code
	}{
		{
			name:   "missing both",
			target: "/v1/uv",
			fields: map[string]string{"lat": "required", "lon": "required"},
		},
		{
			name:   "not a number",
			target: "/v1/uv?lat=north&lon=1",
			fields: map[string]string{"lat": "number"},
		},
		{
			name:   "latitude out of range",
			target: "/v1/uv?lat=91&lon=0",
			fields: map[string]string{"lat": "lte"},
		},
		{
			name:   "longitude out of range",
			target: "/v1/uv?lat=0&lon=-180.5",
			fields: map[string]string{"lon": "gte"},
		},
		{
			name:   "NaN",
			target: "/v1/uv?lat=NaN&lon=0",
			fields: map[string]string{"lat": "gte"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUVService{}
			rec := serveUV(t, svc, tt.target)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, svc.got, "service must not be called")

			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, models.ProblemTypeValidation, problem.Type)
			assert.Equal(t, "/v1/uv", problem.Instance)

			got := make(map[string]string, len(problem.Errors))
			for _, fe := range problem.Errors {
				got[fe.Field] = fe.Code
				assert.NotEmpty(t, fe.Message)
			}
			for field, code := range tt.fields {
				assert.Equal(t, code, got[field], "field %s", field)
			}
		})
	}
}

func TestUVHandler_GetUV_ServiceErrors(t *testing.T) {
	rec := serveUV(t, &fakeUVService{err: uv.ErrInvalidCoordinates}, "/v1/uv?lat=1&lon=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serveUV(t, &fakeUVService{err: errors.New("boom")}, "/v1/uv?lat=1&lon=1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestUVHandler_ListProviders(t *testing.T) {
	svc := &fakeUVService{availability: map[string]bool{"open_meteo": true, "openuv": false}}
	h := handler.NewUVHandler(svc, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListProviders(rec, httptest.NewRequest(http.MethodGet, "/v1/providers", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"open_meteo":true,"openuv":false}`, rec.Body.String())
}
