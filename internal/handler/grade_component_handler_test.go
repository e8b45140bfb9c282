package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hums-platform/academics-api/internal/models"
	"github.com/hums-platform/academics-api/internal/service"
)

type componentRepoStub struct {
	components map[string]*models.GradeComponent
}

func (s *componentRepoStub) ListByClass(ctx context.Context, classID string) ([]models.GradeComponent, error) {
	var out []models.GradeComponent
	for _, c := range s.components {
		if c.ClassID == classID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *componentRepoStub) FindByID(ctx context.Context, id string) (*models.GradeComponent, error) {
	if c, ok := s.components[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (s *componentRepoStub) SumWeights(ctx context.Context, classID, excludeID string) (float64, error) {
	total := 0.0
	for _, c := range s.components {
		if c.ClassID == classID && c.ID != excludeID {
			total += c.Weight
		}
	}
	return total, nil
}

func (s *componentRepoStub) Create(ctx context.Context, component *models.GradeComponent) error {
	if s.components == nil {
		s.components = make(map[string]*models.GradeComponent)
	}
	component.ID = "comp-new"
	s.components[component.ID] = component
	return nil
}

func (s *componentRepoStub) Update(ctx context.Context, component *models.GradeComponent) error {
	s.components[component.ID] = component
	return nil
}

func (s *componentRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.components, id)
	return nil
}

type entryCounterStub struct {
	counts map[string]int
}

func (s *entryCounterStub) CountByComponent(ctx context.Context, componentID string) (int, error) {
	return s.counts[componentID], nil
}

type classReaderStub struct{}

func (classReaderStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if id == "class-1" {
		return &models.Class{ID: "class-1", Code: "CS101"}, nil
	}
	return nil, sql.ErrNoRows
}

func buildComponentRouter(repo *componentRepoStub, counter *entryCounterStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewGradeComponentService(repo, counter, classReaderStub{}, validator.New(), zap.NewNop())
	h := NewGradeComponentHandler(svc)

	router := gin.New()
	router.GET("/classes/:classId/grade-components", h.List)
	router.POST("/classes/:classId/grade-components", h.Create)
	router.GET("/classes/:classId/grade-components/validate", h.ValidateWeights)
	router.PATCH("/grade-components/:id", h.Update)
	router.DELETE("/grade-components/:id", h.Delete)
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestGradeComponentRoutes(t *testing.T) {
	repo := &componentRepoStub{components: map[string]*models.GradeComponent{
		"comp-1": {ID: "comp-1", ClassID: "class-1", Name: "Midterm", Type: models.ComponentTypeMidterm, Weight: 40, MaxScore: 100},
	}}
	counter := &entryCounterStub{counts: map[string]int{"comp-1": 2}}
	router := buildComponentRouter(repo, counter)

	t.Run("list", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/classes/class-1/grade-components", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"Midterm"`)
	})

	t.Run("create", func(t *testing.T) {
		payload := `{"name":"Final","type":"FINAL","weight":60,"max_score":100}`
		req, _ := http.NewRequest(http.MethodPost, "/classes/class-1/grade-components", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
	})

	t.Run("create over budget", func(t *testing.T) {
		payload := `{"name":"Extra","type":"QUIZ","weight":10,"max_score":20}`
		req, _ := http.NewRequest(http.MethodPost, "/classes/class-1/grade-components", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
		require.Contains(t, resp.Body.String(), "INVALID_WEIGHTS")
	})

	t.Run("validate weights", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/classes/class-1/grade-components/validate", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"valid":true`)
	})

	t.Run("patch max score conflict", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPatch, "/grade-components/comp-1", bytes.NewBufferString(`{"max_score":50}`))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("delete with entries", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, "/grade-components/comp-1", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("unknown class", func(t *testing.T) {
		payload := `{"name":"Quiz","type":"QUIZ","weight":5,"max_score":10}`
		req, _ := http.NewRequest(http.MethodPost, "/classes/missing/grade-components", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusNotFound, resp.Code)
	})
}
