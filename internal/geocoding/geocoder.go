package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrNoResult = errors.New("no geocoding result")

// Geocoder resolves postal addresses through a Nominatim compatible search
// endpoint and remembers the answers in a JSON file.
type Geocoder struct {
	logger      *logrus.Logger
	baseURL     string
	country     string
	cacheDir    string
	cache       map[string][]float64
	cacheLock   sync.RWMutex
	client      *http.Client
	minInterval time.Duration
	lastCall    time.Time
	callLock    sync.Mutex
}

func NewGeocoder(logger *logrus.Logger, baseURL, cacheDir, country string) *Geocoder {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "gestion-immobiliere", "geocode_cache")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		logger.WithError(err).Warn("Could not create geocode cache directory")
	}

	g := &Geocoder{
		logger:   logger,
		baseURL:  baseURL,
		country:  strings.ToLower(country),
		cacheDir: cacheDir,
		cache:    make(map[string][]float64),
		client:   &http.Client{Timeout: 10 * time.Second},
		// Nominatim usage policy: at most one request per second
		minInterval: time.Second,
	}
	g.loadCache()
	return g
}

func (g *Geocoder) cacheFile() string {
	return filepath.Join(g.cacheDir, "geocode_cache.json")
}

func (g *Geocoder) loadCache() {
	data, err := os.ReadFile(g.cacheFile())
	if err != nil {
		if !os.IsNotExist(err) {
			g.logger.WithError(err).Warn("Could not load geocode cache")
		}
		return
	}

	g.cacheLock.Lock()
	defer g.cacheLock.Unlock()
	if err := json.Unmarshal(data, &g.cache); err != nil {
		g.logger.WithError(err).Error("Failed to parse geocode cache")
		return
	}
	g.logger.Infof("Loaded %d cached addresses", len(g.cache))
}

func (g *Geocoder) saveCache() {
	g.cacheLock.RLock()
	data, err := json.Marshal(g.cache)
	g.cacheLock.RUnlock()
	if err != nil {
		g.logger.WithError(err).Error("Failed to marshal geocode cache")
		return
	}

	if err := os.WriteFile(g.cacheFile(), data, 0644); err != nil {
		g.logger.WithError(err).Error("Failed to save geocode cache")
	}
}

func cacheKey(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

type nominatimResponse []struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns latitude and longitude for a free-form address.
func (g *Geocoder) Geocode(ctx context.Context, address string) (float64, float64, error) {
	key := cacheKey(address)
	if key == "" {
		return 0, 0, fmt.Errorf("empty address")
	}

	g.cacheLock.RLock()
	coords, ok := g.cache[key]
	g.cacheLock.RUnlock()
	if ok && len(coords) == 2 {
		g.logger.WithFields(logrus.Fields{
			"address": address,
			"source":  "cache",
		}).Debug("Found coordinates in cache")
		return coords[0], coords[1], nil
	}

	g.throttle()

	params := url.Values{
		"q":      []string{address},
		"format": []string{"json"},
		"limit":  []string{"1"},
	}
	if g.country != "" {
		params.Set("countrycodes", g.country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("User-Agent", "gestion-immobiliere/1.0")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.8")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).WithField("address", address).Error("Geocoding request failed")
		return 0, 0, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocoding service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read response: %w", err)
	}

	var result nominatimResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, 0, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result) == 0 {
		g.logger.WithField("address", address).Warn("No results found")
		return 0, 0, fmt.Errorf("%w for address: %s", ErrNoResult, address)
	}

	lat, errLat := strconv.ParseFloat(result[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(result[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return 0, 0, fmt.Errorf("invalid coordinates in response: %q, %q", result[0].Lat, result[0].Lon)
	}

	g.logger.WithFields(logrus.Fields{
		"address":   address,
		"latitude":  lat,
		"longitude": lon,
		"source":    "nominatim",
	}).Info("Successfully geocoded address")

	g.cacheLock.Lock()
	g.cache[key] = []float64{lat, lon}
	g.cacheLock.Unlock()
	g.saveCache()

	return lat, lon, nil
}

func (g *Geocoder) throttle() {
	g.callLock.Lock()
	defer g.callLock.Unlock()
	if wait := g.minInterval - time.Since(g.lastCall); wait > 0 {
		time.Sleep(wait)
	}
	g.lastCall = time.Now()
}
