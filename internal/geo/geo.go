// Package geo resolves 6-digit Indian postal codes to nearby health
// facilities using public map data.
//
// The lookup chain is India Post (pincode to locality), Nominatim
// (locality to coordinates), then Overpass (health amenities within
// radius). Results are ranked by haversine distance, trimmed to the
// top five, and cached per pincode for a short TTL because the
// upstream services are slow and rate limited.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GraminSeva/TriageLine/internal/models"
)

// Lookup chain defaults.
const (
	DefaultPostalTimeout   = 8 * time.Second
	DefaultGeocodeTimeout  = 8 * time.Second
	DefaultOverpassTimeout = 20 * time.Second
	DefaultCacheTTL        = 10 * time.Minute
	DefaultRadiusMeters    = 8000
	DefaultMaxResults      = 5

	defaultPostalBaseURL   = "https://api.postalpincode.in"
	defaultGeocodeBaseURL  = "https://nominatim.openstreetmap.org"
	defaultOverpassBaseURL = "https://overpass-api.de"
)

// pincodePattern matches a 6-digit Indian postal code not starting with 0.
var pincodePattern = regexp.MustCompile(`\b[1-9][0-9]{5}\b`)

// ExtractPincode returns the first pincode mentioned in text, or "".
func ExtractPincode(text string) string {
	return pincodePattern.FindString(text)
}

// Opts holds configuration options for the geo service.
type Opts struct {
	PostalBaseURL   string
	GeocodeBaseURL  string
	OverpassBaseURL string
	HTTPClient      *http.Client
	CacheTTL        time.Duration
	RadiusMeters    int
	MaxResults      int
}

// Option configures the geo service.
type Option func(*Opts)

// WithPostalBaseURL overrides the India Post API base URL.
func WithPostalBaseURL(u string) Option {
	return func(o *Opts) { o.PostalBaseURL = u }
}

// WithGeocodeBaseURL overrides the Nominatim base URL.
func WithGeocodeBaseURL(u string) Option {
	return func(o *Opts) { o.GeocodeBaseURL = u }
}

// WithOverpassBaseURL overrides the Overpass base URL.
func WithOverpassBaseURL(u string) Option {
	return func(o *Opts) { o.OverpassBaseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithCacheTTL sets how long per-pincode results are cached.
func WithCacheTTL(d time.Duration) Option {
	return func(o *Opts) { o.CacheTTL = d }
}

// Result is one resolved facility lookup.
type Result struct {
	Pincode      string            `json:"pincode"`
	LocationText string            `json:"locationText"`
	Lat          float64           `json:"lat"`
	Lon          float64           `json:"lon"`
	Facilities   []models.Facility `json:"facilities"`
}

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// Service performs live facility lookups with a per-pincode cache.
type Service struct {
	postalBaseURL   string
	geocodeBaseURL  string
	overpassBaseURL string
	http            *http.Client
	cacheTTL        time.Duration
	radiusMeters    int
	maxResults      int

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewService creates a geo service with the given options.
func NewService(opts ...Option) *Service {
	o := Opts{
		PostalBaseURL:   defaultPostalBaseURL,
		GeocodeBaseURL:  defaultGeocodeBaseURL,
		OverpassBaseURL: defaultOverpassBaseURL,
		CacheTTL:        DefaultCacheTTL,
		RadiusMeters:    DefaultRadiusMeters,
		MaxResults:      DefaultMaxResults,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	return &Service{
		postalBaseURL:   strings.TrimRight(o.PostalBaseURL, "/"),
		geocodeBaseURL:  strings.TrimRight(o.GeocodeBaseURL, "/"),
		overpassBaseURL: strings.TrimRight(o.OverpassBaseURL, "/"),
		http:            o.HTTPClient,
		cacheTTL:        o.CacheTTL,
		radiusMeters:    o.RadiusMeters,
		maxResults:      o.MaxResults,
	}
}

// Lookup resolves a pincode to nearby health facilities. Errors map to
// the models sentinels so callers can choose user-facing wording:
// ErrInvalidPincode, ErrLocationNotFound, ErrFacilityLookup.
func (s *Service) Lookup(ctx context.Context, pincode string) (*Result, error) {
	if !pincodePattern.MatchString(pincode) || len(pincode) != 6 {
		return nil, models.ErrInvalidPincode
	}

	s.mu.RLock()
	entry, ok := s.cache[pincode]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		slog.Debug("geo.Lookup: cache hit", "pincode", pincode)
		result := entry.result
		return &result, nil
	}

	locationText, err := s.resolvePincode(ctx, pincode)
	if err != nil {
		return nil, err
	}
	lat, lon, err := s.geocode(ctx, locationText)
	if err != nil {
		return nil, err
	}
	facilities, err := s.nearbyAmenities(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	result := Result{
		Pincode:      pincode,
		LocationText: locationText,
		Lat:          lat,
		Lon:          lon,
		Facilities:   facilities,
	}
	s.mu.Lock()
	if s.cache == nil {
		s.cache = make(map[string]cacheEntry)
	}
	s.cache[pincode] = cacheEntry{result: result, expiresAt: time.Now().Add(s.cacheTTL)}
	s.mu.Unlock()

	slog.Info("geo.Lookup: lookup complete", "pincode", pincode, "location", locationText, "facilities", len(facilities))
	return &result, nil
}

// resolvePincode asks India Post for the locality of a pincode.
func (s *Service) resolvePincode(ctx context.Context, pincode string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultPostalTimeout)
	defer cancel()

	var payload []struct {
		Status     string `json:"Status"`
		PostOffice []struct {
			Name     string `json:"Name"`
			District string `json:"District"`
			State    string `json:"State"`
		} `json:"PostOffice"`
	}
	if err := s.getJSON(ctx, s.postalBaseURL+"/pincode/"+pincode, &payload); err != nil {
		return "", fmt.Errorf("geo: postal lookup failed: %w", models.ErrFacilityLookup)
	}
	if len(payload) == 0 || payload[0].Status != "Success" || len(payload[0].PostOffice) == 0 {
		slog.Warn("geo.resolvePincode: pincode not found", "pincode", pincode)
		return "", models.ErrInvalidPincode
	}
	po := payload[0].PostOffice[0]
	return fmt.Sprintf("%s, %s, %s", po.Name, po.District, po.State), nil
}

// geocode resolves a locality string to coordinates via Nominatim.
func (s *Service) geocode(ctx context.Context, locationText string) (float64, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultGeocodeTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", locationText+", India")
	q.Set("format", "json")
	q.Set("limit", "1")

	var payload []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := s.getJSON(ctx, s.geocodeBaseURL+"/search?"+q.Encode(), &payload); err != nil {
		return 0, 0, fmt.Errorf("geo: geocode failed: %w", models.ErrFacilityLookup)
	}
	if len(payload) == 0 {
		slog.Warn("geo.geocode: no results", "location", locationText)
		return 0, 0, models.ErrLocationNotFound
	}
	lat, err1 := strconv.ParseFloat(payload[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(payload[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, models.ErrLocationNotFound
	}
	return lat, lon, nil
}

// nearbyAmenities queries Overpass for health amenities around a point.
func (s *Service) nearbyAmenities(ctx context.Context, lat, lon float64) ([]models.Facility, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultOverpassTimeout)
	defer cancel()

	query := fmt.Sprintf(`[out:json][timeout:15];
(
  node["amenity"~"hospital|clinic|doctors|pharmacy"](around:%d,%f,%f);
  way["amenity"~"hospital|clinic|doctors|pharmacy"](around:%d,%f,%f);
  node["healthcare"](around:%d,%f,%f);
);
out center %d;`,
		s.radiusMeters, lat, lon, s.radiusMeters, lat, lon, s.radiusMeters, lat, lon, s.maxResults*6)

	form := url.Values{}
	form.Set("data", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.overpassBaseURL+"/api/interpreter", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("geo: failed to build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		slog.Warn("geo.nearbyAmenities: overpass request failed", "error", err)
		return nil, fmt.Errorf("geo: overpass request failed: %w", models.ErrFacilityLookup)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("geo: overpass returned status %d: %w", resp.StatusCode, models.ErrFacilityLookup)
	}

	var payload struct {
		Elements []struct {
			ID     int64   `json:"id"`
			Lat    float64 `json:"lat"`
			Lon    float64 `json:"lon"`
			Center *struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"center"`
			Tags map[string]string `json:"tags"`
		} `json:"elements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("geo: malformed overpass response: %w", models.ErrFacilityLookup)
	}

	var facilities []models.Facility
	for _, el := range payload.Elements {
		elat, elon := el.Lat, el.Lon
		if el.Center != nil {
			elat, elon = el.Center.Lat, el.Center.Lon
		}
		if elat == 0 && elon == 0 {
			continue
		}
		name := el.Tags["name"]
		if name == "" {
			continue
		}
		kind := el.Tags["amenity"]
		if kind == "" {
			kind = el.Tags["healthcare"]
		}
		dist := roundTenth(haversineKm(lat, lon, elat, elon))
		facilities = append(facilities, models.Facility{
			ID:         el.ID,
			Name:       name,
			Type:       strings.ToUpper(kind),
			Address:    el.Tags["addr:full"],
			Phone:      el.Tags["phone"],
			DistanceKm: &dist,
			Lat:        elat,
			Lon:        elon,
		})
	}
	sort.Slice(facilities, func(i, j int) bool {
		return *facilities[i].DistanceKm < *facilities[j].DistanceKm
	})
	if len(facilities) > s.maxResults {
		facilities = facilities[:s.maxResults]
	}
	return facilities, nil
}

// getJSON fetches a URL and decodes the JSON body.
func (s *Service) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "TriageLine/1.0")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// haversineKm computes the great-circle distance between two points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
