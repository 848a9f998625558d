package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/web-casa/aiui/internal/auth"
	"github.com/web-casa/aiui/internal/event"
	"github.com/web-casa/aiui/internal/llm"
	"github.com/web-casa/aiui/internal/model"
	"github.com/web-casa/aiui/internal/noa"
	"github.com/web-casa/aiui/internal/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const noaModel = "openai/gpt-oss-20b:free"

var handlerTestCounter atomic.Int64

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handler_%d?mode=memory&cache=shared&_foreign_keys=1", handlerTestCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type fakeCompleter struct {
	text string
	err  error
}

func (f *fakeCompleter) Complete(ctx context.Context, t llm.Target, prompt string) (llm.Result, error) {
	if f.err != nil {
		return llm.Result{}, f.err
	}
	return llm.Result{Text: f.text}, nil
}

func (f *fakeCompleter) TestConnection(ctx context.Context, t llm.Target) error {
	return f.err
}

type fakeTranscriber struct {
	text string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	return f.text, nil
}

type testEnv struct {
	db          *gorm.DB
	router      *gin.Engine
	users       *service.UserService
	models      *service.AIModelService
	completer   *fakeCompleter
	transcriber *fakeTranscriber
}

// setupTestEnv wires handlers onto a router. Requests carry the caller in
// X-Test-User / X-Test-Role headers instead of a JWT.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	log := zap.NewNop()
	bus := event.NewBus(log)
	fc := &fakeCompleter{text: "Paris is the capital of France."}
	ft := &fakeTranscriber{text: "What is the capital of France?"}

	users := service.NewUserService(db, log)
	models := service.NewAIModelService(db, nil, bus, log)
	threads := service.NewThreadService(db, bus, log)
	prompts := service.NewPromptService(db, fc, bus, log, 0)
	proc := noa.NewProcessor(ft, models, prompts, noa.Options{Model: noaModel}, log)

	limiter := auth.NewRateLimiter(5, 900)
	t.Cleanup(limiter.Close)

	r := gin.New()
	r.POST("/mm/", NewNOAHandler(proc, 1<<20, log).Handle)

	authH := NewAuthHandler(users, db, "test-secret", limiter)
	r.POST("/api/auth/setup", authH.Setup)
	r.POST("/api/auth/login", authH.Login)
	r.GET("/api/auth/need-setup", authH.NeedSetup)

	api := r.Group("/api", func(c *gin.Context) {
		var id uint
		fmt.Sscan(c.GetHeader("X-Test-User"), &id)
		c.Set("user_id", id)
		c.Set("username", fmt.Sprintf("user%d", id))
		c.Set("role", c.GetHeader("X-Test-Role"))
	})
	api.GET("/auth/me", authH.Me)

	mh := NewAIModelHandler(models, fc, db)
	api.GET("/aimodels", mh.List)
	api.POST("/aimodels", mh.Create)
	api.GET("/aimodels/:id", mh.Get)
	api.PUT("/aimodels/:id", mh.Update)
	api.DELETE("/aimodels/:id", mh.Delete)
	api.POST("/aimodels/:id/test", mh.Test)

	th := NewThreadHandler(threads, db)
	api.GET("/threads", th.List)
	api.POST("/threads", th.Create)
	api.GET("/threads/:id", th.Get)
	api.PUT("/threads/:id", th.Update)
	api.DELETE("/threads/:id", th.Delete)
	api.GET("/admin/threads", auth.RequireAdmin(), th.AdminList)

	ph := NewPromptHandler(prompts, db)
	api.POST("/threads/:id/prompt", ph.Send)
	api.POST("/prompt", ph.Start)

	uh := NewUserHandler(users, db)
	api.GET("/users", uh.List)
	api.POST("/users", uh.Create)
	api.DELETE("/users/:id", uh.Delete)

	pr := NewProfileHandler(users, db)
	api.GET("/profile", pr.Get)
	api.PUT("/profile", pr.Update)
	api.PUT("/profile/address", pr.UpdateAddress)
	api.POST("/profile/password", pr.ChangePassword)

	api.GET("/audit", NewAuditHandler(db).List)

	return &testEnv{db: db, router: r, users: users, models: models, completer: fc, transcriber: ft}
}

func (e *testEnv) user(t *testing.T, name, role string) *model.User {
	t.Helper()
	u, err := e.users.Create(name, "password123", role)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) do(method, path string, body interface{}, as *model.User) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("X-Test-User", fmt.Sprint(as.ID))
		req.Header.Set("X-Test-Role", as.Role)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return out
}

func countAuditLogs(db *gorm.DB, action string) int64 {
	var count int64
	db.Model(&model.AuditLog{}).Where("action = ?", action).Count(&count)
	return count
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".wav")
		if err != nil {
			t.Fatal(err)
		}
		io.Copy(fw, strings.NewReader(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}
