package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-search/internal/apiclient"
	"property-search/internal/boundary"
	"property-search/internal/models"
	"property-search/internal/netstatus"
	"property-search/internal/ratelimit"
	"property-search/internal/render"
	"property-search/internal/search"
	"property-search/internal/session"
)

const sampleProperty = `{"id":1,"name":"サンプルマンション","address":"東京都新宿区西新宿1-1","station":"新宿",
"walking_minutes":5,"rent":100000,"management_fee":5000,"deposit":null,"key_money":100000,"floor_plan":"1LDK",
"size_sqm":40.5,"building_structure":"RC","built_year":2015,"total_floors":10,"floor":3,"corner_room":false,
"status":"active","site_url":"https://example.com/1","main_image_url":null,
"created_at":"2025-04-01T00:00:00","updated_at":"2025-04-01T00:00:00"}`

// fakeBackend stands in for the property API.
type fakeBackend struct {
	mu          sync.Mutex
	listStatus  int
	queries     []string
	parkingBody string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/properties/":
		f.queries = append(f.queries, r.URL.RawQuery)
		if f.listStatus != 0 && f.listStatus != http.StatusOK {
			w.WriteHeader(f.listStatus)
			return
		}
		w.Write([]byte("[" + sampleProperty + "]"))
	case r.URL.Path == "/properties/1":
		w.Write([]byte(sampleProperty))
	case strings.HasPrefix(r.URL.Path, "/properties/"):
		http.NotFound(w, r)
	case r.URL.Path == "/internet-providers/1":
		http.NotFound(w, r)
	case r.URL.Path == "/bike-parkings/property/1":
		body := f.parkingBody
		if body == "" {
			body = "[]"
		}
		w.Write([]byte(body))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

func (f *fakeBackend) setListStatus(status int) {
	f.mu.Lock()
	f.listStatus = status
	f.mu.Unlock()
}

func newTestRouter(t *testing.T, client Backend, monitor *netstatus.Monitor) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	pages, err := render.New()
	require.NoError(t, err)

	sessions, err := session.NewStore("sid", time.Hour, 100, func() *search.Controller {
		return search.NewController(client)
	})
	require.NoError(t, err)
	return NewRouter(RouterDeps{
		Client:      client,
		Pages:       pages,
		Sessions:    sessions,
		Monitor:     monitor,
		CORSOrigins: []string{"http://localhost:3000"},
		LogRequests: true,
	})
}

func newBackendRouter(t *testing.T) (*fakeBackend, *gin.Engine) {
	t.Helper()
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	return fb, newTestRouter(t, apiclient.New(srv.URL), nil)
}

func doRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseHTML(t *testing.T, w *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	return doc
}

func TestSubmitSearchRedirectsToNavigableURL(t *testing.T) {
	_, r := newBackendRouter(t)

	form := url.Values{
		"station":    {"新宿"},
		"min_rent":   {"50000"},
		"max_rent":   {"150000"},
		"floor_plan": {"1LDK"},
	}
	req := httptest.NewRequest(http.MethodPost, "/properties/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := doRequest(r, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/properties?station=新宿&min_rent=50000&max_rent=150000&floor_plan=1LDK", w.Header().Get("Location"))
}

func TestSubmitSearchOmitsEmptyFields(t *testing.T) {
	_, r := newBackendRouter(t)

	form := url.Values{"station": {""}, "min_rent": {""}, "max_rent": {"80000"}, "floor_plan": {""}}
	req := httptest.NewRequest(http.MethodPost, "/properties/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := doRequest(r, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/properties?max_rent=80000", w.Header().Get("Location"))
}

func TestSubmitSearchInvalid(t *testing.T) {
	_, r := newBackendRouter(t)

	form := url.Values{"min_rent": {"abc"}, "floor_plan": {"9LDK"}}
	req := httptest.NewRequest(http.MethodPost, "/properties/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := doRequest(r, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	doc := parseHTML(t, w)
	assert.Equal(t, 1, doc.Find(`.field-error[data-field="min_rent"]`).Length())
	assert.Equal(t, 1, doc.Find(`.field-error[data-field="floor_plan"]`).Length())
	assert.Equal(t, "abc", doc.Find("#minRent").AttrOr("value", ""))
}

func TestSearchPageFetchesWithFilters(t *testing.T) {
	fb, r := newBackendRouter(t)

	target := "/properties?station=" + url.QueryEscape("新宿") + "&max_rent=150000"
	w := doRequest(r, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "station=%E6%96%B0%E5%AE%BF&max_rent=150000", fb.lastQuery())

	doc := parseHTML(t, w)
	card := doc.Find(".property-card")
	require.Equal(t, 1, card.Length())
	assert.Equal(t, "100,000 円", card.Find(".rent").Text())
	assert.Equal(t, "(管理費: 5,000 円)", card.Find(".management-fee").Text())
	assert.Equal(t, "新宿", doc.Find("#station").AttrOr("value", ""))
}

func TestSearchPageKeepsStaleResultsOnFailure(t *testing.T) {
	fb, r := newBackendRouter(t)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/properties", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	fb.setListStatus(http.StatusInternalServerError)
	req := httptest.NewRequest(http.MethodGet, "/properties?floor_plan=2DK", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = doRequest(r, req)
	require.Equal(t, http.StatusOK, w.Code)

	doc := parseHTML(t, w)
	assert.Equal(t, "物件データの取得中にエラーが発生しました", doc.Find("#search-error").Text())
	assert.Equal(t, 1, doc.Find(".property-card").Length())
	assert.Equal(t, "2DK", doc.Find("#floorPlan option[selected]").AttrOr("value", ""))
}

func TestSearchPageEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer srv.Close()
	r := newTestRouter(t, apiclient.New(srv.URL), nil)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/properties", nil))
	doc := parseHTML(t, w)
	assert.Equal(t, "条件に一致する物件が見つかりませんでした。", doc.Find("#empty").Text())
}

func TestDetailPageDegradesOptionalSections(t *testing.T) {
	_, r := newBackendRouter(t)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/properties/1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	doc := parseHTML(t, w)
	assert.Equal(t, "サンプルマンション", doc.Find("h1.name").Text())
	assert.Equal(t, "(管理費: 5,000 円)", doc.Find("h2.rent .management-fee").Text())
	assert.Equal(t, "無し", doc.Find(".deposit").Text())
	assert.Equal(t, "100,000 円", doc.Find(".key-money").Text())
	assert.Equal(t, "いいえ", doc.Find(".corner-room").Text())
	assert.Equal(t, "近隣のバイク駐輪場情報はありません", doc.Find("#no-parkings").Text())
	assert.Zero(t, doc.Find("#parkings table").Length())
	assert.Equal(t, "インターネット回線情報はありません", doc.Find("#no-internet").Text())
}

func TestDetailPageWithParkings(t *testing.T) {
	fb, r := newBackendRouter(t)
	fb.parkingBody = `[{"id":1,"property_id":1,"parking_name":"西新宿駐輪場","address":"新宿区","distance":0.3,"fee":null,"parking_url":"https://p.example.com","created_at":"2025-04-01T00:00:00"}]`

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/properties/1", nil))
	doc := parseHTML(t, w)
	rows := doc.Find("tr.parking")
	require.Equal(t, 1, rows.Length())
	assert.Equal(t, "0.30 km", rows.Find(".distance").Text())
	assert.Equal(t, "不明", rows.Find(".fee").Text())
}

func TestDetailPagePrimaryFailure(t *testing.T) {
	_, r := newBackendRouter(t)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/properties/99", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	doc := parseHTML(t, w)
	assert.Equal(t, "物件詳細の取得中にエラーが発生しました", doc.Find("#detail-error").Text())
	assert.Equal(t, "← 物件一覧に戻る", doc.Find("a.back").Text())

	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/properties/abc", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// panickyBackend blows up on the primary fetch to exercise the error boundary.
type panickyBackend struct{}

func (panickyBackend) ListProperties(ctx context.Context, _ apiclient.PropertyFilters) ([]models.Property, error) {
	panic("list exploded")
}
func (panickyBackend) GetProperty(ctx context.Context, id int64) (*models.Property, error) {
	panic("detail exploded")
}
func (panickyBackend) GetInternetProvider(ctx context.Context, id int64) (*models.InternetProvider, error) {
	return nil, nil
}
func (panickyBackend) GetBikeParkings(ctx context.Context, id int64) ([]models.BikeParking, error) {
	return nil, nil
}

func TestErrorBoundaryFallbackPage(t *testing.T) {
	r := newTestRouter(t, panickyBackend{}, nil)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/properties/1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	doc := parseHTML(t, w)
	assert.Equal(t, "エラーが発生しました", doc.Find("#fallback h2").Text())
	assert.Equal(t, "detail exploded", doc.Find(".message").Text())
	assert.Equal(t, "/properties/1", doc.Find("#reload").AttrOr("href", ""))
	assert.Equal(t, "/", doc.Find("#home").AttrOr("href", ""))

	// the home page is outside the failing handler and still renders
	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/api/properties", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestAPIProperties(t *testing.T) {
	fb, r := newBackendRouter(t)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/properties?floor_plan=1LDK&limit=10&skip=20", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "floor_plan=1LDK&skip=20&limit=10", fb.lastQuery())

	var body struct {
		Properties []models.Property `json:"properties"`
		Count      int               `json:"count"`
		URL        string            `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "/properties?floor_plan=1LDK", body.URL)

	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/api/properties?min_rent=-5", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	fb.setListStatus(http.StatusInternalServerError)
	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/api/properties", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAPIPropertyDetail(t *testing.T) {
	_, r := newBackendRouter(t)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/api/properties/1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "サンプルマンション", raw["name"])
	assert.Nil(t, raw["internet_provider"])
	assert.Equal(t, []any{}, raw["bike_parkings"])

	var d models.PropertyDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, int64(1), d.ID)
	assert.NotNil(t, d.BikeParkings)

	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/api/properties/99", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSOnAPI(t *testing.T) {
	_, r := newBackendRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := doRequest(r, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthAndOfflineBanner(t *testing.T) {
	monitor := netstatus.NewMonitor(stubPinger{err: assert.AnError}, time.Second)
	require.Error(t, monitor.Probe(context.Background()))

	srv := httptest.NewServer(&fakeBackend{})
	defer srv.Close()
	r := newTestRouter(t, apiclient.New(srv.URL), monitor)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status  string           `json:"status"`
		Backend netstatus.Status `json:"backend"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.False(t, health.Backend.Online)

	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/", nil))
	doc := parseHTML(t, w)
	assert.Equal(t, 1, doc.Find("#offline-banner").Length())
}

func TestNotFoundAndMetrics(t *testing.T) {
	_, r := newBackendRouter(t)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "property_search_http_requests_total")
}

func TestHealthReportsBreakerAndRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pages, err := render.New()
	require.NoError(t, err)
	srv := httptest.NewServer(&fakeBackend{})
	defer srv.Close()

	client := apiclient.New(srv.URL)
	sessions, err := session.NewStore("sid", time.Hour, 10, func() *search.Controller {
		return search.NewController(client)
	})
	require.NoError(t, err)

	breaker := apiclient.NewBreaker(1, time.Hour)
	breaker.RecordFailure(http.StatusBadGateway)
	r := NewRouter(RouterDeps{
		Client:   client,
		Pages:    pages,
		Sessions: sessions,
		Breaker:  breaker,
		Limiter:  ratelimit.NewRateLimiter(60, 1000, true),
	})

	doRequest(r, httptest.NewRequest(http.MethodGet, "/", nil))
	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health struct {
		Status  string `json:"status"`
		Breaker struct {
			Open     bool `json:"open"`
			Failures int  `json:"failures"`
		} `json:"breaker"`
		RateLimit ratelimit.Stats `json:"rate_limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.True(t, health.Breaker.Open)
	assert.Equal(t, 1, health.Breaker.Failures)
	assert.True(t, health.RateLimit.Enabled)
	assert.Equal(t, 1, health.RateLimit.RequestsLastMinute)
	assert.Equal(t, 59, health.RateLimit.RemainingThisMinute)
}

func TestFallbackReloadAfterFailedPost(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pages, err := render.New()
	require.NoError(t, err)

	h := NewPageHandler(panickyBackend{}, nil, nil)
	r := gin.New()
	r.HTMLRender = pages
	g := r.Group("/", boundary.Middleware("page", h.Fallback))
	g.POST("/properties/search", func(c *gin.Context) { panic("submit exploded") })

	tests := []struct {
		name    string
		referer string
		want    string
	}{
		{"back to referring page", "http://example.com/properties?floor_plan=1LDK", "/properties?floor_plan=1LDK"},
		{"no referer", "", "/properties"},
		{"foreign referer", "http://evil.test/phish", "/properties"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/properties/search", strings.NewReader("station=x"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			w := doRequest(r, req)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, tt.want, parseHTML(t, w).Find("#reload").AttrOr("href", ""))
		})
	}
}

func TestInvalidSearchOpensNoSession(t *testing.T) {
	_, r := newBackendRouter(t)

	w := doRequest(r, httptest.NewRequest(http.MethodGet, "/properties?min_rent=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Result().Cookies())

	w = doRequest(r, httptest.NewRequest(http.MethodGet, "/properties?station=%E6%96%B0%E5%AE%BF", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Result().Cookies())
}
