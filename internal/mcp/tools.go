package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/consultease/adminguard/internal/credential"
	"github.com/consultease/adminguard/internal/lockout"
)

// registerTools registers all adminguard MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("adminguard_check_password",
			mcp.WithDescription(
				"Check a candidate administrator password against the password policy. "+
					"Returns whether it is acceptable and, if not, the first rule it violates. "+
					"Nothing is stored.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("password",
				mcp.Required(),
				mcp.Description("Candidate password"),
			),
		),
		s.handleCheckPassword,
	)

	srv.AddTool(
		mcp.NewTool("adminguard_lock_status",
			mcp.WithDescription(
				"Report whether an administrator account is currently locked out after "+
					"repeated failed logins, and how many seconds remain. Unknown usernames "+
					"report unlocked. Does not count as a login attempt.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("username",
				mcp.Required(),
				mcp.Description("Administrator username (case-sensitive)"),
			),
		),
		s.handleLockStatus,
	)

	srv.AddTool(
		mcp.NewTool("adminguard_list_admins",
			mcp.WithDescription(
				"List administrator accounts with their active flag and current lock state. "+
					"Password hashes are never included.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListAdmins,
	)
}

func (s *MCPServer) handleCheckPassword(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	password, err := requireString(request, "password")
	if err != nil {
		return toolError("%v", err)
	}

	type verdict struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
		Code    string `json:"code,omitempty"`
	}

	v := verdict{Valid: true, Message: "Password meets strength requirements"}
	if err := s.authSvc.Validator().Policy().Check(password); err != nil {
		v.Valid = false
		v.Message = err.Error()
		var weak *credential.WeakPasswordError
		if errors.As(err, &weak) {
			v.Code = weak.Code
		}
	}
	return successJSON(v)
}

func (s *MCPServer) handleLockStatus(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	username, err := requireString(request, "username")
	if err != nil {
		return toolError("%v", err)
	}

	locked, remaining, err := s.authSvc.IsLocked(ctx, username, s.now())
	if err != nil {
		s.logger.Error("mcp lock status failed", "username", username, "error", err)
		return toolError("Lock status is temporarily unavailable")
	}

	return successJSON(map[string]interface{}{
		"username":          username,
		"locked":            locked,
		"remaining_seconds": lockout.Seconds(remaining),
	})
}

func (s *MCPServer) handleListAdmins(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	admins, err := s.authSvc.ListAdmins(ctx, s.now())
	if err != nil {
		s.logger.Error("mcp list admins failed", "error", err)
		return toolError("Failed to list administrators")
	}
	return successJSON(admins)
}
