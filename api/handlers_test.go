package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
	"github.com/sekyikins/AI-Scheduler-Project/notify"
	"github.com/sekyikins/AI-Scheduler-Project/storage"
	"github.com/sekyikins/AI-Scheduler-Project/store"
)

const testUser = "user"

type fixedAuth struct {
	userID string
	err    error
}

func (a fixedAuth) UserIDFromAuthHeader(string) (string, error) { return a.userID, a.err }

type failingCreate struct {
	*storage.MemoryAccess
}

func (failingCreate) CreateTask(context.Context, string, domain.TaskCreate) (domain.Task, error) {
	return domain.Task{}, errors.New("backend down")
}

type testAPI struct {
	e     *echo.Echo
	tasks *store.Store
	inbox *notify.Inbox
}

func newTestAPI(t *testing.T, access store.DataAccess, mutate func(*Deps)) *testAPI {
	t.Helper()
	logger, _ := test.NewNullLogger()
	if access == nil {
		access = storage.NewMemory(storage.UniformDelays(0))
	}
	tasks := store.New(access, store.Options{UserID: testUser, Logger: logger})
	inbox := notify.NewInbox(notify.NewMemoryRepository(), logger)
	deps := Deps{
		Tasks:  tasks,
		Inbox:  inbox,
		Auth:   fixedAuth{userID: testUser},
		Owner:  testUser,
		Logger: logger,
	}
	if mutate != nil {
		mutate(&deps)
	}
	e := echo.New()
	Register(e, deps)
	return &testAPI{e: e, tasks: tasks, inbox: inbox}
}

func (a *testAPI) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) create(t *testing.T, body string) domain.Task {
	t.Helper()
	rec := a.do(http.MethodPost, "/api/tasks", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var task domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return task
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error json %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestCreateAndGetTask(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	task := a.create(t, `{"title":"  Draft report ","priority":"high","tags":["work"]}`)
	if task.ID == "" || task.Title != "Draft report" || task.Status != domain.StatusPending || task.UserID != testUser {
		t.Fatalf("unexpected task: %#v", task)
	}

	rec := a.do(http.MethodGet, "/api/tasks/"+task.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200 got %d", rec.Code)
	}
	var got domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.ID != task.ID || got.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected task: %#v", got)
	}
}

func TestCreateTaskRejectsBadInput(t *testing.T) {
	a := newTestAPI(t, nil, nil)

	rec := a.do(http.MethodPost, "/api/tasks", `{"title":"x","unknown":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400 got %d", rec.Code)
	}

	rec = a.do(http.MethodPost, "/api/tasks", `{"title":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank title: expected 400 got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Field != "title" {
		t.Fatalf("expected title field, got %#v", body)
	}
	if len(a.tasks.List()) != 0 {
		t.Fatalf("rejected drafts must not be stored")
	}
}

func TestCreateTaskTransportFailure(t *testing.T) {
	a := newTestAPI(t, failingCreate{storage.NewMemory(storage.UniformDelays(0))}, nil)
	rec := a.do(http.MethodPost, "/api/tasks", `{"title":"x"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}
	if len(a.tasks.List()) != 0 {
		t.Fatalf("collection must be unchanged")
	}
}

func TestListTasksFilters(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	a.create(t, `{"title":"a","priority":"high"}`)
	a.create(t, `{"title":"b","priority":"low"}`)

	var resp tasksResponse
	rec := a.do(http.MethodGet, "/api/tasks?priority=high", "")
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec.Code != http.StatusOK || len(resp.Tasks) != 1 || resp.Tasks[0].Title != "a" {
		t.Fatalf("priority filter: %d %#v", rec.Code, resp.Tasks)
	}

	rec = a.do(http.MethodGet, "/api/tasks?status=pending&sort=date", "")
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Tasks) != 2 {
		t.Fatalf("status filter: %#v", resp.Tasks)
	}

	rec = a.do(http.MethodGet, "/api/tasks?status=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestTaskActions(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	task := a.create(t, `{"title":"Draft report"}`)
	base := "/api/tasks/" + task.ID + "/actions/"

	steps := []struct {
		action string
		want   domain.Status
	}{
		{"primary", domain.StatusInProgress},
		{"primary", domain.StatusPaused},
		{"toggle", domain.StatusCompleted},
		{"toggle", domain.StatusPending},
		{"check", domain.StatusCompleted},
		{"primary", domain.StatusPending},
		{"cancel", domain.StatusCancelled},
	}
	for _, step := range steps {
		rec := a.do(http.MethodPost, base+step.action, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d: %s", step.action, rec.Code, rec.Body.String())
		}
		var got domain.Task
		if err := sonic.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if got.Status != step.want {
			t.Fatalf("%s: expected %s got %s", step.action, step.want, got.Status)
		}
	}
}

func TestTaskActionErrors(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	task := a.create(t, `{"title":"x"}`)
	base := "/api/tasks/" + task.ID + "/actions/"

	if rec := a.do(http.MethodPost, base+"uncheck", ""); rec.Code != http.StatusConflict {
		t.Fatalf("uncheck pending: expected 409 got %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, base+"expire", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expire: expected 400 got %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, base+"dance", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown action: expected 400 got %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/api/tasks/missing/actions/primary", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing task: expected 404 got %d", rec.Code)
	}
	if got, _ := a.tasks.Get(task.ID); got.Status != domain.StatusPending {
		t.Fatalf("rejected actions must not change status, got %s", got.Status)
	}

	rec := a.do(http.MethodGet, "/api/tasks/"+task.ID+"/actions", "")
	var resp actionsResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.PrimaryLabel != "start" {
		t.Fatalf("expected start label, got %#v", resp)
	}
}

func TestUpdateAndDeleteTask(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	task := a.create(t, `{"title":"old","description":"keep"}`)

	rec := a.do(http.MethodPatch, "/api/tasks/"+task.ID, `{"title":"new"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: expected 200 got %d", rec.Code)
	}
	var got domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.Title != "new" || got.Description != "keep" {
		t.Fatalf("unexpected patch result: %#v", got)
	}

	if rec := a.do(http.MethodPatch, "/api/tasks/"+task.ID, `{"status":"paused"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("illegal status write: expected 400 got %d", rec.Code)
	}
	if rec := a.do(http.MethodPatch, "/api/tasks/"+task.ID, `{"status":"overdue"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("client expiry: expected 400 got %d", rec.Code)
	}
	if rec := a.do(http.MethodPatch, "/api/tasks/"+task.ID, `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch: expected 400 got %d", rec.Code)
	}
	if got, _ := a.tasks.Get(task.ID); got.Status != domain.StatusPending {
		t.Fatalf("rejected writes changed status to %s", got.Status)
	}
	if rec := a.do(http.MethodDelete, "/api/tasks/"+task.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204 got %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, "/api/tasks/"+task.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404 got %d", rec.Code)
	}
	if rec := a.do(http.MethodDelete, "/api/tasks/"+task.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("delete twice: expected 404 got %d", rec.Code)
	}
}

func TestBulkUpdateSkipsUnknownIDs(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	task := a.create(t, `{"title":"A","priority":"high"}`)

	body := `[{"id":"` + task.ID + `","updates":{"priority":"low"}},{"id":"missing","updates":{"priority":"high"}}]`
	rec := a.do(http.MethodPut, "/api/tasks/bulk", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp tasksResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].Priority != domain.PriorityLow {
		t.Fatalf("unexpected bulk result: %#v", resp.Tasks)
	}
	if list := a.tasks.List(); len(list) != 1 || list[0].Priority != domain.PriorityLow {
		t.Fatalf("unexpected store contents: %#v", list)
	}
}

func TestSummaryRoute(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	first := a.create(t, `{"title":"a","priority":"high"}`)
	a.create(t, `{"title":"b"}`)
	a.do(http.MethodPost, "/api/tasks/"+first.ID+"/actions/check", "")

	rec := a.do(http.MethodGet, "/api/tasks/summary", "")
	var sum domain.Summary
	if err := sonic.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if sum.Total != 2 || sum.Completed != 1 || sum.Pending != 1 || sum.CompletionRate != 50 {
		t.Fatalf("unexpected summary: %#v", sum)
	}
}

func TestTaskRoutesRequireOwner(t *testing.T) {
	a := newTestAPI(t, nil, func(d *Deps) { d.Auth = fixedAuth{err: errBadAuthorization} })
	if rec := a.do(http.MethodGet, "/api/tasks", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	a = newTestAPI(t, nil, func(d *Deps) { d.Auth = fixedAuth{userID: "intruder"} })
	if rec := a.do(http.MethodPost, "/api/tasks", `{"title":"x"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if len(a.tasks.List()) != 0 {
		t.Fatalf("forbidden request must not create tasks")
	}
}

func TestCreateTaskIdempotencyKey(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := newTestAPI(t, nil, func(d *Deps) { d.Deduper = NewRedisDeduper(client, time.Minute) })

	a.create(t, `{"title":"unkeyed"}`)
	rec := a.do(http.MethodPost, "/api/tasks", `{"title":"keyed"}`, headerIdempotencyKey, "k1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("first keyed create: expected 201 got %d", rec.Code)
	}
	var created domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid json: %v", err)
	}

	rec = a.do(http.MethodPost, "/api/tasks", `{"title":"keyed"}`, headerIdempotencyKey, "k1")
	if rec.Code != http.StatusOK {
		t.Fatalf("replay: expected 200 got %d", rec.Code)
	}
	var replayed domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &replayed); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if replayed.ID != created.ID {
		t.Fatalf("expected replay of %s, got %s", created.ID, replayed.ID)
	}
	if n := len(a.tasks.List()); n != 2 {
		t.Fatalf("expected 2 tasks, got %d", n)
	}
}

func TestCreateFailureReleasesIdempotencyKey(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := newTestAPI(t, nil, func(d *Deps) { d.Deduper = NewRedisDeduper(client, time.Minute) })
	rec := a.do(http.MethodPost, "/api/tasks", `{"title":""}`, headerIdempotencyKey, "k2")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if m.Exists(testUser + ":" + dedupeKeyPrefix + ":k2") {
		t.Fatalf("failed create must release its idempotency key")
	}
}

func TestNotificationRoutes(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	ctx := context.Background()
	n1, _ := a.inbox.Create(ctx, domain.Notification{UserID: testUser, Title: "one"})
	a.inbox.Create(ctx, domain.Notification{UserID: testUser, Title: "two"})

	rec := a.do(http.MethodGet, "/api/notifications", "")
	var resp notificationsResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Notifications) != 2 || resp.UnreadCount != 2 {
		t.Fatalf("unexpected notifications: %#v", resp)
	}

	if rec := a.do(http.MethodPut, "/api/notifications/"+n1.ID+"/read", ""); rec.Code != http.StatusOK {
		t.Fatalf("mark read: expected 200 got %d", rec.Code)
	}
	if rec := a.do(http.MethodPut, "/api/notifications/missing/read", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("mark missing: expected 404 got %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, "/api/notifications?read=maybe", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad read filter: expected 400 got %d", rec.Code)
	}

	rec = a.do(http.MethodPut, "/api/notifications/read-all", "")
	var all markAllReadResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if all.Updated != 1 {
		t.Fatalf("expected 1 updated, got %d", all.Updated)
	}

	if rec := a.do(http.MethodDelete, "/api/notifications/"+n1.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204 got %d", rec.Code)
	}
	rec = a.do(http.MethodGet, "/api/notifications?read=true", "")
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Notifications) != 1 || resp.UnreadCount != 0 {
		t.Fatalf("unexpected notifications after delete: %#v", resp)
	}
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := a.e.NewContext(req, rec)
	h := &handlers{Deps: Deps{Tasks: a.tasks, Logger: log.New()}}

	if err := h.healthz(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
}

func TestListPaging(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	for _, title := range []string{"a", "b", "c"} {
		a.create(t, `{"title":"`+title+`"}`)
	}

	var whole tasksResponse
	rec := a.do(http.MethodGet, "/api/tasks", "")
	if err := sonic.Unmarshal(rec.Body.Bytes(), &whole); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(whole.Tasks) != 3 || whole.Pagination != nil {
		t.Fatalf("unpaged listing must be whole: %#v", whole)
	}

	var first tasksResponse
	rec = a.do(http.MethodGet, "/api/tasks?limit=2", "")
	if err := sonic.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(first.Tasks) != 2 || first.Pagination == nil || first.Pagination.Total != 3 || !first.Pagination.HasNext || first.Pagination.HasPrev {
		t.Fatalf("first page: %#v", first)
	}

	var second tasksResponse
	rec = a.do(http.MethodGet, "/api/tasks?skip=2&limit=2", "")
	if err := sonic.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(second.Tasks) != 1 || second.Pagination.Page != 2 || second.Pagination.HasNext || !second.Pagination.HasPrev {
		t.Fatalf("second page: %#v", second)
	}

	for _, q := range []string{"limit=0", "limit=101", "skip=-1", "skip=x"} {
		if rec := a.do(http.MethodGet, "/api/tasks?"+q, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", q, rec.Code)
		}
	}

	ctx := context.Background()
	for _, title := range []string{"one", "two"} {
		a.inbox.Create(ctx, domain.Notification{UserID: testUser, Title: title})
	}
	var notes notificationsResponse
	rec = a.do(http.MethodGet, "/api/notifications?skip=1", "")
	if err := sonic.Unmarshal(rec.Body.Bytes(), &notes); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(notes.Notifications) != 1 || notes.UnreadCount != 2 || notes.Pagination == nil || notes.Pagination.Limit != domain.DefaultPageLimit {
		t.Fatalf("notification page: %#v", notes)
	}
}

func TestCreateNotificationRoute(t *testing.T) {
	a := newTestAPI(t, nil, nil)

	rec := a.do(http.MethodPost, "/api/notifications", `{"title":"Heads up","message":"standup moved","type":"warning"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var n domain.Notification
	if err := sonic.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if n.ID == "" || n.UserID != testUser || n.Type != domain.NotificationWarning || n.Read {
		t.Fatalf("unexpected notification: %#v", n)
	}
	if count, _ := a.inbox.UnreadCount(context.Background(), testUser); count != 1 {
		t.Fatalf("expected 1 unread, got %d", count)
	}

	rec = a.do(http.MethodPost, "/api/notifications", `{"title":"x","type":"shout"}`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Field != "type" {
		t.Fatalf("unknown type: expected 400 on type, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := a.do(http.MethodPost, "/api/notifications", `{"message":"no title"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing title: expected 400 got %d", rec.Code)
	}

	b := newTestAPI(t, nil, func(d *Deps) { d.Auth = fixedAuth{err: errBadAuthorization} })
	if rec := b.do(http.MethodPost, "/api/notifications", `{"title":"x"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
