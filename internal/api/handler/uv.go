// Package handler provides HTTP handlers for the uvconsensus API.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/uvconsensus/uvconsensus/internal/api/models"
	"github.com/uvconsensus/uvconsensus/internal/api/response"
	"github.com/uvconsensus/uvconsensus/internal/uv"
)

// UVService is the part of uv.Service the HTTP layer needs.
type UVService interface {
	GetUV(ctx context.Context, req uv.Request) (*uv.Response, error)
	ProviderAvailability() map[string]bool
}

// UVHandler serves the consensus forecast and provider listing.
type UVHandler struct {
	service  UVService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewUVHandler creates a new UVHandler.
func NewUVHandler(service UVService, logger zerolog.Logger) *UVHandler {
	return &UVHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// uvQuery holds the parsed query string of GET /v1/uv.
type uvQuery struct {
	Lat  *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon  *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
	Date string   `query:"date" validate:"omitempty,max=32"`
	TZ   string   `query:"tz" validate:"omitempty,max=64"`
}

// GetUV handles GET /v1/uv?lat=&lon=[&date=YYYY-MM-DD][&tz=auto|IANA].
// A malformed date falls back to today and an unknown tz falls back to UTC;
// only missing or out-of-range coordinates are rejected.
func (h *UVHandler) GetUV(w http.ResponseWriter, r *http.Request) {
	q, fieldErrs := parseUVQuery(r.URL.Query())
	if len(fieldErrs) == 0 {
		fieldErrs = validationErrors(h.validate.Struct(q))
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrs)
		return
	}

	resp, err := h.service.GetUV(r.Context(), uv.Request{
		Lat:      *q.Lat,
		Lon:      *q.Lon,
		Date:     q.Date,
		Timezone: q.TZ,
	})
	switch {
	case errors.Is(err, uv.ErrInvalidCoordinates):
		response.BadRequest(w, r, err.Error(), nil)
		return
	case err != nil:
		h.logger.Error().Err(err).Float64("lat", *q.Lat).Float64("lon", *q.Lon).Msg("uv lookup failed")
		response.InternalError(w, r, "failed to build UV forecast")
		return
	}

	response.JSON(w, r, http.StatusOK, resp)
}

// ListProviders handles GET /v1/providers and reports, per configured
// provider, whether it is enabled.
func (h *UVHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.service.ProviderAvailability())
}

func parseUVQuery(values url.Values) (uvQuery, []models.FieldError) {
	var errs []models.FieldError

	parse := func(name string) *float64 {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, models.FieldError{Field: name, Message: "must be a number", Code: "number"})
			return nil
		}
		return &v
	}

	q := uvQuery{
		Lat:  parse("lat"),
		Lon:  parse("lon"),
		Date: strings.TrimSpace(values.Get("date")),
		TZ:   strings.TrimSpace(values.Get("tz")),
	}
	return q, errs
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// validationErrors converts validator output into problem field errors.
func validationErrors(err error) []models.FieldError {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldError{{Field: "query", Message: err.Error()}}
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
