package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func echo(body string, status int) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(status, body) }
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	assert.Equal(t, "v2", NewRouter(gin.New(), WithAPIVersion("v2")).apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("tuition", "/tuition")
	group.GET("/ping", echo("pong", http.StatusOK))
	r.Register(group)
	assert.Len(t, r.registrars, 1)

	r.Setup()

	w := serve(engine, "GET", "/api/v1/tuition/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	// Unknown paths stay unknown
	assert.Equal(t, http.StatusNotFound, serve(engine, "GET", "/api/v1/tuition/missing").Code)
}

func TestRouterUse_AppliesOnlyToAPIGroup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	r.Use(func(c *gin.Context) {
		c.Header("X-Group-Middleware", "applied")
		c.Next()
	})

	group := NewDomainGroup("tuition", "/tuition")
	group.GET("/ping", echo("pong", http.StatusOK))
	r.Register(group)
	r.Setup()

	engine.GET("/health", echo("ok", http.StatusOK))

	w := serve(engine, "GET", "/api/v1/tuition/ping")
	assert.Equal(t, "applied", w.Header().Get("X-Group-Middleware"))

	// Routes outside the API group are not affected
	w = serve(engine, "GET", "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Group-Middleware"))
}

func TestDomainGroupVerbs(t *testing.T) {
	engine := gin.New()

	g := NewDomainGroup("tuition", "/tuition")
	g.GET("/payments", echo("list", http.StatusOK)).
		POST("/payments", echo("recorded", http.StatusCreated)).
		PUT("/fee-structures/:id", echo("updated", http.StatusOK)).
		DELETE("/fee-structures/:id", echo("", http.StatusNoContent))

	g.RegisterRoutes(engine.Group("/api/v1"))

	cases := []struct {
		method, path string
		wantStatus   int
	}{
		{"GET", "/api/v1/tuition/payments", http.StatusOK},
		{"POST", "/api/v1/tuition/payments", http.StatusCreated},
		{"PUT", "/api/v1/tuition/fee-structures/fs-1", http.StatusOK},
		{"DELETE", "/api/v1/tuition/fee-structures/fs-1", http.StatusNoContent},
	}
	for _, tc := range cases {
		w := serve(engine, tc.method, tc.path)
		assert.Equal(t, tc.wantStatus, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestMultipleDomainGroups(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	tuition := NewDomainGroup("tuition", "/tuition")
	tuition.GET("/payments", echo("payments", http.StatusOK))

	enrollment := NewDomainGroup("enrollment", "/enrollment")
	enrollment.GET("/records", echo("records", http.StatusOK))

	r.Register(tuition).Register(enrollment).Setup()

	assert.Equal(t, "payments", serve(engine, "GET", "/api/v1/tuition/payments").Body.String())
	assert.Equal(t, "records", serve(engine, "GET", "/api/v1/enrollment/records").Body.String())
}

func TestDomainGroup_MultipleHandlersPerRoute(t *testing.T) {
	engine := gin.New()

	// A write route with a guard handler ahead of the terminal one,
	// as the payment route is wired with its write rate limit
	guard := func(c *gin.Context) {
		if c.GetHeader("X-Allow") == "" {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
	g := NewDomainGroup("tuition", "/tuition")
	g.POST("/payments", guard, echo("recorded", http.StatusCreated))
	g.RegisterRoutes(engine.Group("/api/v1"))

	assert.Equal(t, http.StatusTooManyRequests, serve(engine, "POST", "/api/v1/tuition/payments").Code)

	req := httptest.NewRequest("POST", "/api/v1/tuition/payments", nil)
	req.Header.Set("X-Allow", "yes")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}
