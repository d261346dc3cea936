package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"property-search/internal/apiclient"
	"property-search/internal/boundary"
	"property-search/internal/detail"
	"property-search/internal/netstatus"
	"property-search/internal/render"
	"property-search/internal/search"
	"property-search/internal/session"
)

// Backend is everything the pages need from the property API.
type Backend interface {
	search.Lister
	detail.Fetcher
}

// PageHandler serves the HTML pages
type PageHandler struct {
	client   Backend
	sessions *session.Store
	monitor  *netstatus.Monitor
	now      func() time.Time
}

// NewPageHandler creates a new page handler. monitor may be nil.
func NewPageHandler(client Backend, sessions *session.Store, monitor *netstatus.Monitor) *PageHandler {
	return &PageHandler{
		client:   client,
		sessions: sessions,
		monitor:  monitor,
		now:      time.Now,
	}
}

func (h *PageHandler) base(title string) render.Base {
	return render.Base{
		Title:   title,
		Offline: h.monitor != nil && !h.monitor.Online(),
	}
}

// Home renders the landing page
func (h *PageHandler) Home(c *gin.Context) {
	c.HTML(http.StatusOK, "home", render.HomePage{Base: h.base("")})
}

// Search renders the search page for the filters in the URL and runs the search
func (h *PageHandler) Search(c *gin.Context) {
	form := search.FormFromQuery(c.Request.URL.Query())

	if err := form.Validate(); err != nil {
		h.renderInvalid(c, form, err)
		return
	}

	// a failed search is recorded in the controller state and shown inline
	ctrl := h.sessions.Controller(c)
	_ = ctrl.Submit(c.Request.Context(), form)
	h.renderSearch(c, http.StatusOK, ctrl.Snapshot(), form, nil)
}

// SubmitSearch handles the search form and redirects to the navigable URL
func (h *PageHandler) SubmitSearch(c *gin.Context) {
	var form search.Form
	if err := c.ShouldBind(&form); err != nil {
		c.String(http.StatusBadRequest, "invalid form")
		return
	}
	form = form.Normalize()

	if err := form.Validate(); err != nil {
		h.renderInvalid(c, form, err)
		return
	}

	// http.Redirect would hex-escape the station name; the URL is written as built.
	c.Header("Location", form.NavigableURL())
	c.Status(http.StatusSeeOther)
}

// renderInvalid shows the form errors over the session's last results. Invalid input
// never opens a session.
func (h *PageHandler) renderInvalid(c *gin.Context, form search.Form, err error) {
	ctrl := h.sessions.Lookup(c)
	if ctrl == nil {
		ctrl = search.NewController(h.client)
	}
	ctrl.SetForm(form)
	h.renderSearch(c, http.StatusBadRequest, ctrl.Snapshot(), form, fieldErrors(err))
}

func (h *PageHandler) renderSearch(c *gin.Context, status int, state search.State, form search.Form, fe search.FieldErrors) {
	c.HTML(status, "properties", render.SearchPage{
		Base:        h.base("物件検索"),
		State:       state,
		Form:        form,
		FieldErrors: fe,
		FloorPlans:  search.FloorPlans,
	})
}

// Detail renders the aggregated property detail page
func (h *PageHandler) Detail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.HTML(http.StatusNotFound, "detail", render.DetailPage{
			Base: h.base("物件詳細"),
			Err:  "物件が見つかりませんでした",
		})
		return
	}

	agg := detail.NewAggregator(h.client)
	d, err := agg.Load(c.Request.Context(), id)
	if err != nil {
		c.HTML(detailStatus(err), "detail", render.DetailPage{
			Base: h.base("物件詳細"),
			Err:  agg.Snapshot().Err,
		})
		return
	}

	c.HTML(http.StatusOK, "detail", render.DetailPage{
		Base:   h.base(d.Name),
		Detail: d,
		Now:    h.now(),
	})
}

// Fallback is the error boundary page for the HTML routes
func (h *PageHandler) Fallback(c *gin.Context, err *boundary.UncaughtRuntimeError) {
	c.HTML(http.StatusInternalServerError, "error", render.ErrorPage{
		Base:      h.base("エラー"),
		Message:   err.Message(),
		ReloadURL: reloadURL(c.Request),
	})
}

// reloadURL is where the fallback page's reload link points. Only safe methods are
// repeated; a failed form post goes back to the page it came from.
func reloadURL(r *http.Request) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return r.URL.RequestURI()
	}
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" && (ref.Host == "" || ref.Host == r.Host) {
		return ref.RequestURI()
	}
	return "/properties"
}

// NotFound renders the 404 page
func (h *PageHandler) NotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "not_found", render.NotFoundPage{Base: h.base("ページが見つかりません")})
}

func detailStatus(err error) int {
	switch {
	case apiclient.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, detail.ErrSuperseded):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func fieldErrors(err error) search.FieldErrors {
	var fe search.FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	slog.Warn("unexpected validation error", "error", err)
	return search.FieldErrors{"form": err.Error()}
}
