package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/onegreenvn/assign-services-backend/internal/config"
	"github.com/onegreenvn/assign-services-backend/internal/database/dbtest"
	"github.com/onegreenvn/assign-services-backend/internal/middleware"
	"github.com/onegreenvn/assign-services-backend/internal/models"
	"github.com/onegreenvn/assign-services-backend/internal/services"
	"github.com/onegreenvn/assign-services-backend/internal/services/excel"
)

const (
	testSecret        = "router-test-secret"
	adminID    uint64 = 1
	samID      uint64 = 7
	outsiderID uint64 = 9
	staffID    uint64 = 10
	topicID    uint64 = 42
)

type RouterTestSuite struct {
	suite.Suite
	db        *gorm.DB
	container *services.Container
	hub       *services.SSEHub
	engine    *gin.Engine
}

func (s *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	s.db = dbtest.Open(s.T())
	settings := config.DefaultAssignSettings()
	settings.UnassignOnClose = true

	metrics := services.NewAssignMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics)

	s.hub = services.NewSSEHub(metrics)
	s.container = services.NewContainer(s.db, settings, services.ContainerOptions{
		Realtime: s.hub,
		Metrics:  metrics,
	})
	s.engine = SetupRouter(Deps{
		Container: s.container,
		SSEHub:    s.hub,
		Exporter:  excel.NewAssignmentExporter(s.T().TempDir()),
		Gatherer:  registry,
		JWTSecret: testSecret,
	})

	dbtest.CreateUser(s.T(), s.db, adminID, "admin", true)
	dbtest.CreateUser(s.T(), s.db, samID, "sam", false)
	dbtest.CreateUser(s.T(), s.db, outsiderID, "outsider", false)
	dbtest.CreateGroup(s.T(), s.db, staffID, "staff", models.AssignableOnlyAdmins, samID)
	dbtest.CreateTopic(s.T(), s.db, topicID, "Printer on fire")
}

func token(userID uint64) string {
	claims := middleware.TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *RouterTestSuite) request(method, path string, userID uint64, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+token(userID))
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *RouterTestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (s *RouterTestSuite) assignSam() {
	w := s.request(http.MethodPost, "/api/v1/assign/assign", adminID, models.AssignRequest{
		TargetType: "Topic",
		TargetID:   topicID,
		Username:   "sam",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
}

func (s *RouterTestSuite) TestHealthIsPublic() {
	w := s.request(http.MethodGet, "/api/v1/health", 0, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("ok", s.decode(w)["status"])
}

func (s *RouterTestSuite) TestRejectsMissingOrInvalidTokens() {
	w := s.request(http.MethodGet, "/api/v1/assign/topics/42", 0, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assign/topics/42", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.request(http.MethodGet, "/api/v1/assign/topics/42", 404, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestAssignAndViewTopic() {
	w := s.request(http.MethodPost, "/api/v1/assign/assign", adminID, models.AssignRequest{
		TargetType: "topic",
		TargetID:   topicID,
		Username:   "sam",
		Note:       "call the vendor",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := s.decode(w)
	s.Equal("sam", body["assigned_to_name"])
	s.Equal("Printer on fire", body["topic_title"])
	s.Equal("call the vendor", body["note"])

	w = s.request(http.MethodGet, "/api/v1/assign/topics/42", adminID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	assignedTo, ok := s.decode(w)["assigned_to"].(map[string]interface{})
	s.Require().True(ok)
	s.Equal("sam", assignedTo["assigned_to_name"])

	var notifications int64
	s.Require().NoError(s.db.Model(&models.Notification{}).Where("user_id = ?", samID).Count(&notifications).Error)
	s.Equal(int64(1), notifications)
}

func (s *RouterTestSuite) TestAssignErrors() {
	for _, tc := range []struct {
		name   string
		actor  uint64
		req    models.AssignRequest
		status int
	}{
		{"unknown user", adminID, models.AssignRequest{TargetType: "Topic", TargetID: topicID, Username: "ghost"}, http.StatusNotFound},
		{"unknown topic", adminID, models.AssignRequest{TargetType: "Topic", TargetID: 999, Username: "sam"}, http.StatusNotFound},
		{"no assignee", adminID, models.AssignRequest{TargetType: "Topic", TargetID: topicID}, http.StatusBadRequest},
		{"bad target type", adminID, models.AssignRequest{TargetType: "Category", TargetID: topicID, Username: "sam"}, http.StatusBadRequest},
		{"actor not allowed", outsiderID, models.AssignRequest{TargetType: "Topic", TargetID: topicID, Username: "sam"}, http.StatusForbidden},
		{"assignee not allowed", adminID, models.AssignRequest{TargetType: "Topic", TargetID: topicID, Username: "outsider"}, http.StatusUnprocessableEntity},
	} {
		s.Run(tc.name, func() {
			w := s.request(http.MethodPost, "/api/v1/assign/assign", tc.actor, tc.req)
			s.Equal(tc.status, w.Code, w.Body.String())
			s.NotEmpty(s.decode(w)["error"])
		})
	}
}

func (s *RouterTestSuite) TestUnassign() {
	s.assignSam()

	req := models.UnassignRequest{TargetType: "Topic", TargetID: topicID}
	w := s.request(http.MethodPut, "/api/v1/assign/unassign", adminID, req)
	s.Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.request(http.MethodPut, "/api/v1/assign/unassign", adminID, req)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestUserAndGroupAssigned() {
	s.assignSam()

	w := s.request(http.MethodGet, "/api/v1/assign/users/sam/assigned", samID, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.EqualValues(1, s.decode(w)["total"])

	w = s.request(http.MethodGet, "/api/v1/assign/users/sam/assigned", outsiderID, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodGet, "/api/v1/assign/groups/staff/assigned", adminID, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.EqualValues(1, s.decode(w)["assignment_count"])
}

func (s *RouterTestSuite) TestListAssigned() {
	dbtest.CreateTopic(s.T(), s.db, 43, "Coffee machine leaks")
	s.assignSam()

	w := s.request(http.MethodGet, "/api/v1/assign/list?assigned=nobody", adminID, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := s.decode(w)
	s.EqualValues(1, body["total"])
	items := body["data"].([]interface{})
	s.Require().Len(items, 1)
	s.EqualValues(43, items[0].(map[string]interface{})["topic"].(map[string]interface{})["id"])

	w = s.request(http.MethodGet, "/api/v1/assign/list?assigned=sam&page=1&limit=5", adminID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body = s.decode(w)
	s.EqualValues(1, body["total"])
	s.EqualValues(5, body["limit"])

	w = s.request(http.MethodGet, "/api/v1/assign/list?assigned=ghost", adminID, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterTestSuite) TestUpdateRemindersFrequency() {
	w := s.request(http.MethodPut, "/api/v1/assign/reminders-frequency", samID, map[string]int{"frequency": config.RemindWeekly})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	user, err := s.container.Users.GetByID(context.Background(), samID)
	s.Require().NoError(err)
	s.Require().NotNil(user.RemindersFrequency)
	s.Equal(config.RemindWeekly, *user.RemindersFrequency)

	w = s.request(http.MethodPut, "/api/v1/assign/reminders-frequency", samID, map[string]int{"frequency": -1})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.request(http.MethodPut, "/api/v1/assign/reminders-frequency", samID, map[string]string{})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestSnoozeReminders() {
	w := s.request(http.MethodPut, "/api/v1/assign/reminders-snooze", samID, map[string]int{"minutes": 120})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	user, err := s.container.Users.GetByID(context.Background(), samID)
	s.Require().NoError(err)
	s.Require().NotNil(user.SnoozedUntil)
	s.True(user.IsSnoozed(time.Now()))
	s.False(user.IsSnoozed(time.Now().Add(3 * time.Hour)))

	w = s.request(http.MethodPut, "/api/v1/assign/reminders-snooze", samID, map[string]int{"minutes": 0})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	user, err = s.container.Users.GetByID(context.Background(), samID)
	s.Require().NoError(err)
	s.Nil(user.SnoozedUntil)

	w = s.request(http.MethodPut, "/api/v1/assign/reminders-snooze", samID, map[string]int{"minutes": -10})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.request(http.MethodPut, "/api/v1/assign/reminders-snooze", samID, map[string]string{})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestEventsRequireAdmin() {
	s.assignSam()
	ev := services.Event{Kind: services.EventTopicClosed, TopicID: topicID}

	w := s.request(http.MethodPost, "/api/v1/assign/events", samID, ev)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodPost, "/api/v1/assign/events", adminID, ev)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	_, err := s.container.Store.FindActive(context.Background(), models.TopicTarget(topicID))
	s.ErrorIs(err, gorm.ErrRecordNotFound)

	w = s.request(http.MethodPost, "/api/v1/assign/events", adminID, services.Event{Kind: "topic_exploded"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestEventsAcceptAPIKey() {
	s.assignSam()

	w := s.request(http.MethodPost, "/api/v1/api-key/generate", adminID, nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var generated models.GeneratedAPIKeyResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &generated))
	s.Len(generated.Key, 64)

	event := func(key string) int {
		payload, err := json.Marshal(services.Event{Kind: services.EventTopicClosed, TopicID: topicID})
		s.Require().NoError(err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/assign/events", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "ApiKey "+key)
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		return w.Code
	}

	s.Equal(http.StatusUnauthorized, event("deadbeef"))

	w = s.request(http.MethodPut, "/api/v1/api-key/status", adminID, models.APIKeyStatusRequest{IsActive: false})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(http.StatusUnauthorized, event(generated.Key))

	w = s.request(http.MethodPut, "/api/v1/api-key/status", adminID, models.APIKeyStatusRequest{IsActive: true})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(http.StatusOK, event(generated.Key))

	_, err := s.container.Store.FindActive(context.Background(), models.TopicTarget(topicID))
	s.ErrorIs(err, gorm.ErrRecordNotFound)

	w = s.request(http.MethodDelete, "/api/v1/api-key", adminID, nil)
	s.Equal(http.StatusOK, w.Code)
	w = s.request(http.MethodGet, "/api/v1/api-key", adminID, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterTestSuite) TestExportRedirectsToDownload() {
	s.assignSam()

	w := s.request(http.MethodGet, "/api/v1/assign/export", samID, nil)
	s.Require().Equal(http.StatusFound, w.Code, w.Body.String())
	location := w.Header().Get("Location")
	s.True(strings.HasPrefix(location, "/api/v1/assign/export/assignments_"), location)

	w = s.request(http.MethodGet, location, samID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Disposition"), "attachment")
	s.NotZero(w.Body.Len())

	w = s.request(http.MethodGet, location, outsiderID, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodGet, "/api/v1/assign/export/missing.xlsx", samID, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterTestSuite) TestMetricsEndpoint() {
	s.assignSam()

	w := s.request(http.MethodGet, "/metrics", 0, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `assign_assigner_operations_total{op="assign",result="ok"} 1`)
}

func (s *RouterTestSuite) TestRealtimeStreamDeliversScopedMessages() {
	server := httptest.NewServer(s.engine)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/realtime/stream", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token(samID))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	readUntil := func(prefix string) string {
		for {
			line, err := reader.ReadString('\n')
			s.Require().NoError(err)
			if strings.HasPrefix(line, prefix) {
				return line
			}
		}
	}
	readUntil("event:connected")

	s.assignSam()

	s.Equal("event: /assigned\n", readUntil("event: /assigned"))
	data := readUntil("data: ")
	s.Contains(data, fmt.Sprintf(`"topic_id":%d`, topicID))
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
