package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
	"github.com/noah-isme/school-dashboard-api/pkg/logger"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newPolicyRouter(capability Capability) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	tokens := stubValidator{
		"admin-token":   {UserID: "u1", Role: models.RoleAdmin},
		"teacher-token": {UserID: "u2", Role: models.RoleTeacher, ProfileID: "t1"},
		"student-token": {UserID: "u3", Role: models.RoleStudent, ProfileID: "s1"},
	}
	r.Use(JWT(tokens), RequireCapability(DefaultPolicy(), capability))
	r.GET("/", func(c *gin.Context) {
		claims := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user": claims.UserID, "logUser": c.GetString(logger.ContextUserIDKey)})
	})
	return r
}

func request(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingOrMalformedTokens(t *testing.T) {
	r := newPolicyRouter(CapViewRecords)

	assert.Equal(t, http.StatusUnauthorized, request(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "Bearer forged").Code)

	w := request(r, "bearer student-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u3","logUser":"u3"}`, w.Body.String())
}

func TestRequireCapability(t *testing.T) {
	cases := []struct {
		capability Capability
		token      string
		status     int
	}{
		{CapManageAssignments, "admin-token", http.StatusOK},
		{CapManageAssignments, "teacher-token", http.StatusForbidden},
		{CapRecordAttendance, "teacher-token", http.StatusOK},
		{CapRecordAttendance, "student-token", http.StatusForbidden},
		{CapViewStudentBoard, "student-token", http.StatusOK},
		{CapViewHODDashboard, "teacher-token", http.StatusForbidden},
		{CapViewDirectory, "teacher-token", http.StatusOK},
		{CapViewDirectory, "student-token", http.StatusForbidden},
		{Capability("unknown"), "admin-token", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(string(tc.capability)+"/"+tc.token, func(t *testing.T) {
			w := request(newPolicyRouter(tc.capability), "Bearer "+tc.token)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequireCapabilityWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RequireCapability(DefaultPolicy(), CapViewRecords), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, request(r, "").Code)
}

type observed struct {
	method, path string
	status       int
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observed
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observed{method, path, status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/teachers/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/teachers/abc", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	require.Len(t, obs.seen, 2)
	assert.Equal(t, observed{"GET", "/teachers/:id", http.StatusNoContent}, obs.seen[0])
	assert.Equal(t, "unmatched", obs.seen[1].path)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
	assert.Nil(t, ExtractMeta(nil))
}
