package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcn-network/banshare-api/internal/config"
	"github.com/tcn-network/banshare-api/internal/dto"
	"github.com/tcn-network/banshare-api/internal/gateway"
	"github.com/tcn-network/banshare-api/internal/handlers"
	"github.com/tcn-network/banshare-api/internal/identity"
	"github.com/tcn-network/banshare-api/internal/ratelimit"
	"github.com/tcn-network/banshare-api/internal/services"
	"github.com/tcn-network/banshare-api/internal/store"
	"github.com/tcn-network/banshare-api/internal/testsupport"
)

const testSecret = "test-secret"

// botServer stands in for the Discord bot's HTTP API.
type botServer struct {
	mu    sync.Mutex
	next  int
	calls []string
}

func (b *botServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/banshares":
		b.next++
		_ = json.NewEncoder(w).Encode(map[string]string{"message": fmt.Sprintf("7000000000000000%03d", b.next)})
	case strings.HasSuffix(r.URL.Path, "/message"):
		w.WriteHeader(http.StatusNotFound)
	case strings.HasPrefix(r.URL.Path, "/channels/"):
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

type testAPI struct {
	app *fiber.App
	bot *botServer
}

func newTestAPI(t *testing.T, storage fiber.Storage) *testAPI {
	t.Helper()
	db := testsupport.NewDB(t)
	testsupport.Network(t, db)

	bot := &botServer{}
	srv := httptest.NewServer(bot)
	t.Cleanup(srv.Close)
	client := gateway.NewClient(gateway.Options{BaseURL: srv.URL, Timeout: 2 * time.Second})

	cfg := &config.Config{JWTSecret: testSecret, HubGuildID: testsupport.HubGuild}

	banshareStore := store.NewBanshareStore(db)
	settingsStore := store.NewSettingsStore(db)
	audit := services.NewAuditService(db)
	perms := services.NewPermissionService(db, cfg.HubGuildID)

	app := fiber.New()
	Setup(app, cfg, perms, NewLimiters(storage),
		handlers.NewHealthHandler(db),
		handlers.NewBanshareHandler(services.NewBanshareService(banshareStore, settingsStore, client, perms, audit), perms),
		handlers.NewSettingsHandler(services.NewSettingsService(settingsStore, client, audit)),
	)
	return &testAPI{app: app, bot: bot}
}

func token(t *testing.T, sub string, internal bool, scopes ...string) string {
	t.Helper()
	if len(scopes) == 0 {
		scopes = []string{identity.ScopeAll}
	}
	claims := jwt.MapClaims{
		"sub":    sub,
		"scopes": scopes,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
	if internal {
		claims["internal"] = true
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type response struct {
	status int
	body   []byte
}

func (r response) errorCode(t *testing.T) string {
	t.Helper()
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(r.body, &e), string(r.body))
	assert.True(t, e.Error)
	return e.Code
}

func (a *testAPI) call(t *testing.T, method, path, bearer string, body interface{}, headers ...string) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, body: raw}
}

func createBody() dto.CreateBanshareRequest {
	return dto.CreateBanshareRequest{
		IDs:      "123456789012345678",
		Reason:   "raided three member servers",
		Evidence: "https://example.com/evidence",
		Server:   testsupport.GuildA,
		Severity: "P1",
	}
}

func (a *testAPI) create(t *testing.T) string {
	t.Helper()
	resp := a.call(t, http.MethodPost, "/api/v1/banshares", token(t, testsupport.StaffA, false), createBody())
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	var out dto.CreateBanshareResponse
	require.NoError(t, json.Unmarshal(resp.body, &out))
	return out.Message
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, string(resp.body), `"db":"ok"`)

	api.create(t)
	resp = api.call(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, string(resp.body), "banshare_transitions_total")
}

func TestAuthAndScopes(t *testing.T) {
	api := newTestAPI(t, nil)

	resp := api.call(t, http.MethodGet, "/api/v1/banshares/pending", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, services.CodeUnauthorized, resp.errorCode(t))

	resp = api.call(t, http.MethodGet, "/api/v1/banshares/pending", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	resp = api.call(t, http.MethodPost, "/api/v1/banshares", token(t, testsupport.StaffA, false, "banshares/read"), createBody())
	assert.Equal(t, http.StatusForbidden, resp.status)
	assert.Equal(t, services.CodeMissingScope, resp.errorCode(t))

	resp = api.call(t, http.MethodPost, "/api/v1/banshares", token(t, testsupport.StaffA, false, "banshares"), createBody())
	assert.Equal(t, http.StatusCreated, resp.status, "parent scope grants children")

	resp = api.call(t, http.MethodGet, "/api/v1/banshares/pending", token(t, testsupport.StaffA, false), nil)
	assert.Equal(t, http.StatusForbidden, resp.status, "staff are not council")

	resp = api.call(t, http.MethodGet, "/api/v1/banshares/pending", token(t, testsupport.AdvisorA, false), nil)
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, `["7000000000000000001"]`, string(resp.body))
}

func TestBanshareLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	message := api.create(t)
	observer := token(t, testsupport.ObserverID, false)
	staff := token(t, testsupport.StaffA, false)

	resp := api.call(t, http.MethodPost, "/api/v1/banshares", token(t, testsupport.PlainStaff, false), createBody())
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = api.call(t, http.MethodPost, "/api/v1/banshares/"+message+"/publish", staff, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = api.call(t, http.MethodPatch, "/api/v1/banshares/"+message+"/severity/P1", observer, nil)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, services.CodeNotModified, resp.errorCode(t))

	resp = api.call(t, http.MethodPost, "/api/v1/banshares/"+message+"/publish", observer, nil)
	assert.Equal(t, http.StatusNoContent, resp.status, string(resp.body))

	resp = api.call(t, http.MethodGet, "/api/v1/banshares/"+message, staff, nil)
	require.Equal(t, http.StatusOK, resp.status)
	var got dto.BanshareResponse
	require.NoError(t, json.Unmarshal(resp.body, &got))
	assert.Equal(t, "published", got.Status)
	require.NotNil(t, got.Publisher)
	assert.Equal(t, services.RedactedUser, *got.Publisher)

	resp = api.call(t, http.MethodGet, "/api/v1/banshares/"+message, token(t, testsupport.Outsider, false), nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, services.CodeMissingBanshare, resp.errorCode(t))

	resp = api.call(t, http.MethodPost, "/api/v1/banshares/"+message+"/execute/"+testsupport.GuildA, token(t, testsupport.OwnerB, false), nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = api.call(t, http.MethodPost, "/api/v1/banshares/"+message+"/execute/"+testsupport.GuildA, token(t, testsupport.OwnerA, false), nil)
	assert.Equal(t, http.StatusNoContent, resp.status, string(resp.body))

	resp = api.call(t, http.MethodPost, "/api/v1/banshares/"+message+"/execute/"+testsupport.GuildA, staff, nil)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, services.CodeInvalidState, resp.errorCode(t))

	resp = api.call(t, http.MethodPost, "/api/v1/banshares/"+message+"/execute/"+testsupport.GuildB+"?auto=true", token(t, testsupport.OwnerB, false), nil)
	assert.Equal(t, http.StatusForbidden, resp.status, "automatic executions are reported by observers")

	resp = api.call(t, http.MethodPut, "/api/v1/banshares/"+message+"/crossposts", observer, dto.RegisterCrosspostsRequest{
		Crossposts: []dto.Crosspost{{Guild: testsupport.GuildA, Channel: "600000000000000001", Message: "610000000000000001"}},
	})
	assert.Equal(t, http.StatusOK, resp.status)
	assert.JSONEq(t, `{"added":1}`, string(resp.body))

	resp = api.call(t, http.MethodGet, "/api/v1/banshares/"+message+"/crossposts/"+testsupport.GuildA, staff, nil)
	assert.Equal(t, http.StatusOK, resp.status)
	assert.JSONEq(t, `{"channel":"600000000000000001","message":"610000000000000001"}`, string(resp.body))

	resp = api.call(t, http.MethodPost, "/api/v1/banshares/report/"+message, staff, dto.ReportBanshareRequest{Reason: "Wrong account."})
	assert.Equal(t, http.StatusNoContent, resp.status, string(resp.body))

	resp = api.call(t, http.MethodPost, "/api/v1/banshares/"+message+"/rescind", observer, dto.RescindBanshareRequest{Explanation: "Mistaken identity."})
	assert.Equal(t, http.StatusNoContent, resp.status, string(resp.body))

	resp = api.call(t, http.MethodDelete, "/api/v1/banshares/"+message, observer, nil, "X-Audit-Log-Reason", strings.Repeat("x", 257))
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = api.call(t, http.MethodDelete, "/api/v1/banshares/"+message, observer, nil, "X-Audit-Log-Reason", "cleanup")
	assert.Equal(t, http.StatusNoContent, resp.status, string(resp.body))

	resp = api.call(t, http.MethodGet, "/api/v1/banshares/"+message, observer, nil)
	assert.Equal(t, http.StatusNotFound, resp.status)

	api.bot.mu.Lock()
	defer api.bot.mu.Unlock()
	assert.Contains(t, api.bot.calls, "POST /banshares/"+message+"/execute/"+testsupport.GuildA)
	assert.Contains(t, api.bot.calls, "POST /banshares/"+message+"/rescind")
}

func TestSettingsRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	owner := token(t, testsupport.OwnerA, false)

	resp := api.call(t, http.MethodGet, "/api/v1/banshares/settings/"+testsupport.GuildA, token(t, testsupport.StaffA, false), nil)
	assert.Equal(t, http.StatusOK, resp.status)
	assert.JSONEq(t, `{"guild":"800000000000000002","channel":null,"logs":[],"blockdms":false,"nobutton":false,"daedalus":false,"autoban":0}`, string(resp.body))

	resp = api.call(t, http.MethodPatch, "/api/v1/banshares/settings/"+testsupport.GuildA, token(t, testsupport.AdvisorA, false), map[string]interface{}{"autoban": 136})
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = api.call(t, http.MethodPatch, "/api/v1/banshares/settings/"+testsupport.GuildA, owner, map[string]interface{}{"autoban": 136, "channel": "600000000000000001"})
	assert.Equal(t, http.StatusOK, resp.status, string(resp.body))
	var settings dto.BanshareSettings
	require.NoError(t, json.Unmarshal(resp.body, &settings))
	assert.Equal(t, uint8(136), settings.Autoban)

	resp = api.call(t, http.MethodPatch, "/api/v1/banshares/settings/"+testsupport.GuildA, owner, map[string]interface{}{"autoban": 300})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = api.call(t, http.MethodPut, "/api/v1/banshares/settings/logs/"+testsupport.GuildA+"/600000000000000002", owner, nil)
	assert.Equal(t, http.StatusNoContent, resp.status, string(resp.body))
	resp = api.call(t, http.MethodPut, "/api/v1/banshares/settings/logs/"+testsupport.GuildA+"/600000000000000002", owner, nil)
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.Equal(t, services.CodeDuplicate, resp.errorCode(t))

	resp = api.call(t, http.MethodGet, "/api/v1/banshares/settings/logs/"+testsupport.GuildA, owner, nil)
	assert.JSONEq(t, `["600000000000000002"]`, string(resp.body))

	resp = api.call(t, http.MethodGet, "/api/v1/banshares/guilds", owner, nil)
	assert.Equal(t, http.StatusForbidden, resp.status)
	resp = api.call(t, http.MethodGet, "/api/v1/banshares/guilds", token(t, testsupport.ObserverID, false), nil)
	assert.Equal(t, http.StatusOK, resp.status)

	resp = api.call(t, http.MethodDelete, "/api/v1/banshares/settings/logs/"+testsupport.GuildA+"/600000000000000009", owner, nil)
	assert.Equal(t, http.StatusNotFound, resp.status)

	resp = api.call(t, http.MethodGet, "/api/v1/banshares/settings/800000000000000099", owner, nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, services.CodeMissingGuild, resp.errorCode(t))
}

func TestPostBanshareRateLimitUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	storage := ratelimit.NewRedisStorageWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = storage.Close() })
	api := newTestAPI(t, storage)
	staff := token(t, testsupport.StaffA, false)

	invalid := createBody()
	invalid.Severity = "P9"
	for i := 0; i < 3; i++ {
		resp := api.call(t, http.MethodPost, "/api/v1/banshares", staff, invalid)
		assert.Equal(t, http.StatusBadRequest, resp.status, "failed requests are not counted")
	}

	api.create(t)
	api.create(t)

	resp := api.call(t, http.MethodPost, "/api/v1/banshares", staff, createBody())
	assert.Equal(t, http.StatusTooManyRequests, resp.status)
	assert.Equal(t, services.CodeRateLimit, resp.errorCode(t))
	assert.Contains(t, string(resp.body), "max: 2 requests per 1 minute")

	resp = api.call(t, http.MethodPost, "/api/v1/banshares", token(t, testsupport.AdvisorA, false), createBody())
	assert.Equal(t, http.StatusCreated, resp.status, "limits are per user")

	assert.NotEmpty(t, mr.Keys())
}
