package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/platform/logger"
	"load-tracking-service/internal/platform/obs"
	"load-tracking-service/internal/ports"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.openrouteservice.org"
	defaultCountry     = "US"
	defaultMaxAttempts = 3
)

// ORSGeocoder implements the Geocoder port using OpenRouteService.
//
// Forward lookups consult the optional persistent cache first and write
// fresh results back; reverse lookups are never cached. The geocoder is safe
// for concurrent use.
type ORSGeocoder struct {
	session     *http.Client
	apiKey      string
	baseURL     string
	country     string
	maxAttempts int
	backoff     time.Duration
	cache       ports.GeocodeCache
}

type ORSOptions struct {
	BaseURL     string
	Country     string
	MaxAttempts int
	Timeout     time.Duration
	Cache       ports.GeocodeCache
	Client      *http.Client
}

func NewORSGeocoder(apiKey string, opts ORSOptions) (*ORSGeocoder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	g := &ORSGeocoder{
		session:     opts.Client,
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		country:     opts.Country,
		maxAttempts: opts.MaxAttempts,
		backoff:     200 * time.Millisecond,
		cache:       opts.Cache,
	}

	if g.session == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		g.session = &http.Client{Timeout: timeout}
	}
	if g.baseURL == "" {
		g.baseURL = defaultBaseURL
	}
	if g.country == "" {
		g.country = defaultCountry
	}
	if g.maxAttempts < 1 {
		g.maxAttempts = defaultMaxAttempts
	}

	return g, nil
}

// normalize ensures consistent cache keys by collapsing whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type featureCollection struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label string `json:"label"`
		} `json:"properties"`
	} `json:"features"`
}

// Forward resolves an address through /geocode/search.
func (o *ORSGeocoder) Forward(ctx context.Context, address string) (_ domain.Coordinates, err error) {
	defer obs.Time(ctx, "ors.Forward")(&err)

	norm := normalize(address)
	if norm == "" {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, ports.ErrAddressNotFound)
	}

	if o.cache != nil {
		hits, err := o.cache.GetMany(ctx, []string{norm})
		if err != nil {
			logger.FromContext(ctx).Warning("geocode cache read failed", logger.String("address", norm), logger.Error(err))
		} else if c, ok := hits[norm]; ok {
			return c, nil
		}
	}

	endpoint := o.baseURL + "/geocode/search"
	decoded, err := o.getFeatures(ctx, endpoint, func(q url.Values) {
		q.Set("text", norm)
		q.Set("boundary.country", o.country)
		q.Set("size", "1")
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", norm, err)
	}

	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", norm, ports.ErrAddressNotFound)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: invalid coordinate format", norm)
	}

	c := domain.Coordinates{Lon: coords[0], Lat: coords[1]}

	if o.cache != nil && !c.IsNullIsland() {
		if err := o.cache.PutMany(ctx, map[string]domain.Coordinates{norm: c}); err != nil {
			logger.FromContext(ctx).Warning("geocode cache write failed", logger.String("address", norm), logger.Error(err))
		}
	}

	return c, nil
}

// Reverse resolves coordinates to the label of the nearest feature through
// /geocode/reverse.
func (o *ORSGeocoder) Reverse(ctx context.Context, c domain.Coordinates) (_ string, err error) {
	defer obs.Time(ctx, "ors.Reverse")(&err)

	endpoint := o.baseURL + "/geocode/reverse"
	decoded, err := o.getFeatures(ctx, endpoint, func(q url.Values) {
		q.Set("point.lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
		q.Set("point.lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
		q.Set("size", "1")
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocode %v: %w", c.CoordsToList(), err)
	}

	if len(decoded.Features) == 0 || strings.TrimSpace(decoded.Features[0].Properties.Label) == "" {
		return "", fmt.Errorf("reverse geocode %v: %w", c.CoordsToList(), ports.ErrAddressNotFound)
	}

	return decoded.Features[0].Properties.Label, nil
}

func (o *ORSGeocoder) getFeatures(ctx context.Context, endpoint string, query func(q url.Values)) (*featureCollection, error) {
	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := o.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		query(q)
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var decoded featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}

	return &decoded, nil
}
