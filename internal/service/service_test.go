package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/web-casa/aiui/internal/event"
	"github.com/web-casa/aiui/internal/llm"
	"github.com/web-casa/aiui/internal/model"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter atomic.Int64

// setupTestDB creates a migrated in-memory SQLite database with a unique name to avoid shared state
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s_%d?mode=memory&cache=shared&_foreign_keys=1", name, testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type testServices struct {
	db      *gorm.DB
	bus     *event.Bus
	models  *AIModelService
	threads *ThreadService
	prompts *PromptService
	users   *UserService
	llm     *fakeCompleter
}

func setupServices(t *testing.T) *testServices {
	t.Helper()
	db := setupTestDB(t)
	log := zap.NewNop()
	bus := event.NewBus(log)
	fc := &fakeCompleter{text: "Paris is the capital of France."}
	return &testServices{
		db:      db,
		bus:     bus,
		models:  NewAIModelService(db, nil, bus, log),
		threads: NewThreadService(db, bus, log),
		prompts: NewPromptService(db, fc, bus, log, 0),
		users:   NewUserService(db, log),
		llm:     fc,
	}
}

func (ts *testServices) user(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := ts.users.Create(name, "password123", model.RoleViewer)
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (ts *testServices) aimodel(t *testing.T, name string) *model.AIModel {
	t.Helper()
	m, err := ts.models.Create(model.AIModelRequest{Name: name}, 0)
	if err != nil {
		t.Fatalf("create model %s: %v", name, err)
	}
	return m
}

// fakeCompleter answers every prompt with a fixed text or error.
type fakeCompleter struct {
	mu         sync.Mutex
	text       string
	err        error
	calls      int
	lastTarget llm.Target
	lastPrompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, t llm.Target, prompt string) (llm.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTarget = t
	f.lastPrompt = prompt
	if f.err != nil {
		return llm.Result{}, f.err
	}
	return llm.Result{Text: f.text}, nil
}
