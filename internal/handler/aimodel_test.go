package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/web-casa/aiui/internal/model"
)

func TestAIModelCreateAndGet(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.user(t, "admin", model.RoleAdmin)

	w := env.do(http.MethodPost, "/api/aimodels", map[string]interface{}{
		"name":                     "4o",
		"access_mode":              "openai_api",
		"token_cost_per_1M_input":  0.1,
		"token_cost_per_1M_output": 0.5,
		"max_tokens":               4096,
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "4o", created["name"])
	assert.Equal(t, "0.1", created["token_cost_per_1M_input"])
	assert.Equal(t, model.DefaultEndpoint, created["access_endpoint"])
	assert.Equal(t, int64(1), countAuditLogs(env.db, "CREATE"))

	w = env.do(http.MethodGet, "/api/aimodels/"+created["id"].(string), nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4096), decode(t, w)["max_tokens"])
}

func TestAIModelDuplicateNameHasErrorKey(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.user(t, "admin", model.RoleAdmin)

	w := env.do(http.MethodPost, "/api/aimodels", map[string]interface{}{"name": "gpt-4o"}, admin)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodPost, "/api/aimodels", map[string]interface{}{"name": "gpt-4o"}, admin)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "error.aimodel_name_exists", body["error_key"])
	fields := body["fields"].(map[string]interface{})
	assert.Equal(t, "AI model with this name already exists.", fields["name"])

	models, err := env.models.List(false)
	require.NoError(t, err)
	assert.Len(t, models, 1)
}

func TestAIModelValidationErrors(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.user(t, "admin", model.RoleAdmin)

	w := env.do(http.MethodPost, "/api/aimodels", map[string]interface{}{
		"name":        "",
		"access_mode": "carrier_pigeon",
		"max_tokens":  0,
	}, admin)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].(map[string]interface{})
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "access_mode")
	assert.Contains(t, fields, "max_tokens")
}

func TestAIModelNotFoundAndBadID(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.user(t, "admin", model.RoleAdmin)

	w := env.do(http.MethodGet, "/api/aimodels/not-a-uuid", nil, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/aimodels/6f1c2a0e-1d6c-4c53-9a3b-7a1f1f1f1f1f", nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAIModelConnectionTest(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.user(t, "admin", model.RoleAdmin)
	m, err := env.models.Create(model.AIModelRequest{Name: "local-llama", AccessMode: model.AccessLocal}, admin.ID)
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/api/aimodels/"+m.ID.String()+"/test", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ok"])

	env.completer.err = errors.New("connection refused")
	w = env.do(http.MethodPost, "/api/aimodels/"+m.ID.String()+"/test", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "error.aimodel_unreachable", body["error_key"])
}

func TestAIModelDelete(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.user(t, "admin", model.RoleAdmin)
	m, err := env.models.Create(model.AIModelRequest{Name: "old"}, admin.ID)
	require.NoError(t, err)

	w := env.do(http.MethodDelete, "/api/aimodels/"+m.ID.String(), nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), countAuditLogs(env.db, "DELETE"))

	w = env.do(http.MethodDelete, "/api/aimodels/"+m.ID.String(), nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
