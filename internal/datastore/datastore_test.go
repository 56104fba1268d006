package datastore_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/datastore"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/retry"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// fakeSource returns canned records or an error
type fakeSource struct {
	records []models.CarRecord
	err     error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Records(ctx context.Context) ([]models.CarRecord, error) {
	return f.records, f.err
}

// memoryCache implements datastore.Cache in memory
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	puts int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[key]
	return d, ok, nil
}

func (c *memoryCache) Put(ctx context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	c.puts++
	return nil
}

const scenarioJSON = `[
  {"Manufacturer": "A", "Model Year": 1970, "MPG": 20, "Acceleration": 10},
  {"Manufacturer": "B", "Model Year": 1970, "MPG": 30, "Acceleration": 12},
  {"Manufacturer": "A", "Model Year": 1971, "MPG": 25, "Acceleration": 11}
]`

func fastRetry() *retry.RetryPolicy {
	return retry.NewRetryPolicy(3, time.Millisecond).WithSleep(func(context.Context, time.Duration) error { return nil })
}

func TestDecode_JSON(t *testing.T) {
	records, err := datastore.Decode([]byte(scenarioJSON), datastore.FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	want := models.CarRecord{Manufacturer: "A", ModelYear: 1971, MPG: 25, Acceleration: 11}
	if records[2] != want {
		t.Errorf("expected %+v, got %+v", want, records[2])
	}
}

func TestDecode_JSONNumericStringsAndNulls(t *testing.T) {
	data := `[{"Manufacturer": "ford", "Model Year": "1971", "MPG": null, "Acceleration": "15.5", "Horsepower": null}]`

	records, err := datastore.Decode([]byte(data), datastore.FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].ModelYear != 1971 || records[0].Acceleration != 15.5 {
		t.Errorf("unexpected record %+v", records[0])
	}
	if !math.IsNaN(records[0].MPG) {
		t.Errorf("expected null MPG to decode as NaN, got %v", records[0].MPG)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"Manufacturer": "A"}`},
		{"truncated", `[{"Manufacturer": "A"`},
		{"missing MPG", `[{"Manufacturer": "A", "Model Year": 1970, "Acceleration": 10}]`},
		{"missing year", `[{"Manufacturer": "A", "MPG": 20, "Acceleration": 10}]`},
		{"empty manufacturer", `[{"Manufacturer": "", "Model Year": 1970, "MPG": 20, "Acceleration": 10}]`},
		{"null year", `[{"Manufacturer": "A", "Model Year": null, "MPG": 20, "Acceleration": 10}]`},
		{"fractional year", `[{"Manufacturer": "A", "Model Year": 1970.5, "MPG": 20, "Acceleration": 10}]`},
		{"text MPG", `[{"Manufacturer": "A", "Model Year": 1970, "MPG": "fast", "Acceleration": 10}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := datastore.Decode([]byte(tt.data), datastore.FormatJSON)
			if !errors.Is(err, datastore.ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDecode_CSV(t *testing.T) {
	data := "Manufacturer,Model Year,MPG,Acceleration\nA,1970,20,10\nB,1970,NA,12\n"

	records, err := datastore.Decode([]byte(data), datastore.FormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !math.IsNaN(records[1].MPG) {
		t.Errorf("expected NA to decode as NaN, got %v", records[1].MPG)
	}
}

func TestDecode_CSVMissingColumn(t *testing.T) {
	data := "Manufacturer,Model Year,MPG\nA,1970,20\n"
	if _, err := datastore.Decode([]byte(data), datastore.FormatCSV); !errors.Is(err, datastore.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestFormatFromName(t *testing.T) {
	if datastore.FormatFromName("cars.CSV") != datastore.FormatCSV {
		t.Error("expected csv for .CSV")
	}
	if datastore.FormatFromName("cars1.json") != datastore.FormatJSON {
		t.Error("expected json for .json")
	}
	if datastore.FormatFromName("text/csv; charset=utf-8") != datastore.FormatCSV {
		t.Error("expected csv for text/csv content type")
	}
}

func TestLoad_FileSources(t *testing.T) {
	for _, path := range []string{"testdata/cars.json", "testdata/cars.csv"} {
		t.Run(path, func(t *testing.T) {
			store, err := datastore.Load(context.Background(), datastore.NewFileSource(path))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store.Len() != 8 {
				t.Errorf("expected 8 records, got %d", store.Len())
			}
			minY, maxY := store.YearBounds()
			if minY != 1970 || maxY != 1971 {
				t.Errorf("expected bounds 1970-1971, got %d-%d", minY, maxY)
			}
			// ford pinto has no horsepower in the fixture
			if hp := store.All()[7].Horsepower; hp != 0 {
				t.Errorf("expected missing horsepower to stay zero, got %v", hp)
			}
		})
	}
}

func TestLoad_MissingFileIsLoadError(t *testing.T) {
	_, err := datastore.Load(context.Background(), datastore.NewFileSource("testdata/nope.json"))

	var loadErr *datastore.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %T %v", err, err)
	}
	if !errors.Is(err, datastore.ErrSourceUnreachable) {
		t.Errorf("expected ErrSourceUnreachable, got %v", err)
	}
	if !strings.Contains(loadErr.Source, "nope.json") {
		t.Errorf("expected source name in error, got %q", loadErr.Source)
	}
}

func TestLoad_NoPartialLoads(t *testing.T) {
	src := &fakeSource{
		records: []models.CarRecord{{Manufacturer: "A", ModelYear: 1970}},
		err:     errors.New("boom"),
	}

	store, err := datastore.Load(context.Background(), src)
	if store != nil {
		t.Error("expected no store when the source fails")
	}
	var loadErr *datastore.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
}

func TestLoad_EmptyDataset(t *testing.T) {
	_, err := datastore.Load(context.Background(), &fakeSource{})
	if !errors.Is(err, datastore.ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestStore_Lookups(t *testing.T) {
	store, err := datastore.NewStore("test", []models.CarRecord{
		{Manufacturer: "ford", ModelYear: 1972},
		{Manufacturer: "amc", ModelYear: 1970},
		{Manufacturer: "ford", ModelYear: 1976},
		{Manufacturer: "vw", ModelYear: 1980},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.Manufacturers(); strings.Join(got, ",") != "ford,amc,vw" {
		t.Errorf("expected first-occurrence order, got %v", got)
	}

	tests := []struct {
		name     string
		makers   []string
		expected models.YearRange
	}{
		{"single", []string{"ford"}, models.NewYearRange(1972, 1976)},
		{"union", []string{"amc", "ford"}, models.NewYearRange(1970, 1976)},
		{"unknown ignored", []string{"bmw", "vw"}, models.NewYearRange(1980, 1980)},
		{"none known", []string{"bmw"}, models.Unset()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.YearsFor(tt.makers...); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestHTTPSource_RetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(scenarioJSON))
	}))
	defer server.Close()

	src := datastore.NewHTTPSource(server.URL+"/cars1.json", datastore.WithRetryPolicy(fastRetry()))
	store, err := datastore.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Len() != 3 {
		t.Errorf("expected 3 records, got %d", store.Len())
	}
	if calls != 2 {
		t.Errorf("expected 2 requests, got %d", calls)
	}
}

func TestHTTPSource_NotFoundIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer server.Close()

	src := datastore.NewHTTPSource(server.URL, datastore.WithRetryPolicy(fastRetry()))
	_, err := datastore.Load(context.Background(), src)

	if !errors.Is(err, datastore.ErrSourceUnreachable) {
		t.Errorf("expected ErrSourceUnreachable, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single request, got %d", calls)
	}
}

func TestHTTPSource_UsesCache(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(scenarioJSON))
	}))
	defer server.Close()

	cache := newMemoryCache()
	src := datastore.NewHTTPSource(server.URL, datastore.WithRetryPolicy(fastRetry()), datastore.WithCache(cache))

	for i := 0; i < 2; i++ {
		if _, err := datastore.Load(context.Background(), src); err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}

	if calls != 1 {
		t.Errorf("expected the second load to be served from cache, got %d requests", calls)
	}
	if cache.puts != 1 {
		t.Errorf("expected one cache write, got %d", cache.puts)
	}
}

func TestHTTPSource_MalformedPayloadNotCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	cache := newMemoryCache()
	src := datastore.NewHTTPSource(server.URL, datastore.WithRetryPolicy(fastRetry()), datastore.WithCache(cache))

	_, err := datastore.Load(context.Background(), src)
	if !errors.Is(err, datastore.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
	if cache.puts != 0 {
		t.Errorf("expected nothing cached, got %d writes", cache.puts)
	}
}

func TestParseSourceURI(t *testing.T) {
	tests := []struct {
		uri      string
		expected string
	}{
		{"data/cars.json", "*datastore.FileSource"},
		{"file:///srv/cars.csv", "*datastore.FileSource"},
		{"https://example.com/cars1.json", "*datastore.HTTPSource"},
		{"postgres://user:pw@localhost:5432/cars?sslmode=disable", "*datastore.PostgresSource"},
		{"redis://localhost:6379/0?key=cars", "*datastore.RedisSource"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			src, err := datastore.ParseSourceURI(tt.uri, datastore.SourceOptions{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := fmt.Sprintf("%T", src); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}

	if _, err := datastore.ParseSourceURI("ftp://example.com/cars", datastore.SourceOptions{}); err == nil {
		t.Error("expected error for unsupported scheme")
	}
	if _, err := datastore.ParseSourceURI("", datastore.SourceOptions{}); err == nil {
		t.Error("expected error for empty URI")
	}
}

func TestRedisSourceFromURL_Key(t *testing.T) {
	src, err := datastore.NewRedisSourceFromURL("redis://localhost:6379/0?key=cars1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Key() != "cars1" {
		t.Errorf("expected key cars1, got %s", src.Key())
	}

	src, err = datastore.NewRedisSourceFromURL("redis://localhost:6379/0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Key() != datastore.DefaultRedisKey {
		t.Errorf("expected default key, got %s", src.Key())
	}
}

func TestPostgresSource_QueryQuotesIdentifiers(t *testing.T) {
	src := datastore.NewPostgresSource("postgres://localhost/cars", "auto mpg", "")

	expected := `SELECT manufacturer, model_year, mpg, acceleration FROM "auto mpg" ORDER BY "id"`
	if got := src.Query(); got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}
	if src.Name() != "postgres:auto mpg" {
		t.Errorf("unexpected name %s", src.Name())
	}
}
