package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/crypto/bcrypt"

	"github.com/consultease/adminguard/internal/config"
	"github.com/consultease/adminguard/internal/credential"
	"github.com/consultease/adminguard/internal/lockout"
	"github.com/consultease/adminguard/internal/model"
	"github.com/consultease/adminguard/internal/service"
)

const testPassword = "Corr3ct-Horse"

var epoch = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	authSvc *service.AuthService
	store   *config.Store
	mcp     *MCPServer
	client  *client.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	validator := credential.NewValidator(credential.NewPolicy(credential.DefaultMinLength), credential.NewHasher(bcrypt.MinCost))
	authSvc := service.NewAuthService(store, validator, lockout.Policy{Threshold: 3, Duration: 10 * time.Minute}, nil)

	srv := NewMCPServer(authSvc, "test", nil)
	srv.now = func() time.Time { return epoch.Add(time.Minute) }

	c, err := client.NewInProcessClient(srv.Server())
	if err != nil {
		t.Fatalf("NewInProcessClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "adminguard-test", Version: "0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	return &testEnv{authSvc: authSvc, store: store, mcp: srv, client: c}
}

func (e *testEnv) call(t *testing.T, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := e.client.CallTool(context.Background(), req)
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	tc, ok := mcp.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("content is %T, want text", res.Content[0])
	}
	return tc.Text
}

func decodeResult(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool returned error: %s", resultText(t, res))
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestToolsAreReadOnly(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.client.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	want := map[string]bool{
		"adminguard_check_password": false,
		"adminguard_lock_status":    false,
		"adminguard_list_admins":    false,
	}
	for _, tool := range res.Tools {
		if _, ok := want[tool.Name]; !ok {
			t.Errorf("unexpected tool %q", tool.Name)
			continue
		}
		want[tool.Name] = true
		if tool.Annotations.ReadOnlyHint == nil || !*tool.Annotations.ReadOnlyHint {
			t.Errorf("%s: not marked read-only", tool.Name)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestCheckPasswordTool(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		password string
		valid    bool
		code     string
	}{
		{testPassword, true, ""},
		{"Ab1!", false, credential.CodeMinLength},
		{"alllowercase1!", false, credential.CodeCharacterClasses},
		{"Admin-P1", false, credential.CodeCommonPattern},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			var got struct {
				Valid   bool   `json:"valid"`
				Message string `json:"message"`
				Code    string `json:"code"`
			}
			decodeResult(t, env.call(t, "adminguard_check_password", map[string]any{"password": tt.password}), &got)
			if got.Valid != tt.valid || got.Code != tt.code {
				t.Errorf("got %+v, want valid=%v code=%q", got, tt.valid, tt.code)
			}
			if got.Message == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestCheckPasswordToolMissingArgument(t *testing.T) {
	env := newTestEnv(t)
	res := env.call(t, "adminguard_check_password", map[string]any{})
	if !res.IsError {
		t.Fatal("expected tool error")
	}
}

func TestLockStatusTool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.authSvc.CreateAdmin(ctx, "ops", testPassword); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := env.authSvc.AttemptLogin(ctx, "ops", "Wrong-Pass1", epoch); err != nil {
			t.Fatal(err)
		}
	}

	var got struct {
		Username         string `json:"username"`
		Locked           bool   `json:"locked"`
		RemainingSeconds int64  `json:"remaining_seconds"`
	}
	decodeResult(t, env.call(t, "adminguard_lock_status", map[string]any{"username": "ops"}), &got)
	if !got.Locked || got.RemainingSeconds != 540 {
		t.Errorf("got %+v, want locked with 540s remaining", got)
	}

	decodeResult(t, env.call(t, "adminguard_lock_status", map[string]any{"username": "ghost"}), &got)
	if got.Locked || got.RemainingSeconds != 0 {
		t.Errorf("unknown user: got %+v", got)
	}

	// Querying must not count as an attempt.
	admin, err := env.authSvc.GetAdmin(ctx, "ops")
	if err != nil {
		t.Fatal(err)
	}
	if admin.FailedLoginAttempts != 3 {
		t.Errorf("FailedLoginAttempts = %d, want 3", admin.FailedLoginAttempts)
	}
}

func TestLockStatusToolStoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.store.Close()
	res := env.call(t, "adminguard_lock_status", map[string]any{"username": "ops"})
	if !res.IsError {
		t.Fatal("expected tool error")
	}
}

func TestListAdminsTool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, name := range []string{"alice", "bob"} {
		if _, err := env.authSvc.CreateAdmin(ctx, name, testPassword); err != nil {
			t.Fatal(err)
		}
	}

	var got []model.AdminSummary
	res := env.call(t, "adminguard_list_admins", nil)
	decodeResult(t, res, &got)
	if len(got) != 2 {
		t.Fatalf("got %d admins, want 2", len(got))
	}
	if text := resultText(t, res); strings.Contains(text, "$2a$") || strings.Contains(text, "password_hash") {
		t.Errorf("list output leaks credentials: %s", text)
	}
}

func TestPolicyResource(t *testing.T) {
	env := newTestEnv(t)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = policyURI
	res, err := env.client.ReadResource(context.Background(), req)
	if err != nil {
		t.Fatalf("ReadResource: %v", err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("got %d contents", len(res.Contents))
	}
	text, ok := mcp.AsTextResourceContents(res.Contents[0])
	if !ok {
		t.Fatalf("content is %T", res.Contents[0])
	}

	var info policyInfo
	if err := json.Unmarshal([]byte(text.Text), &info); err != nil {
		t.Fatal(err)
	}
	if info.MinLength != credential.DefaultMinLength || info.LockoutThreshold != 3 || info.LockoutSeconds != 600 {
		t.Errorf("info = %+v", info)
	}
	if info.SpecialCharacters != credential.SpecialCharacters {
		t.Errorf("special characters = %q", info.SpecialCharacters)
	}
}
