package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/consultease/adminguard/internal/credential"
)

const policyURI = "adminguard://policy"

// registerResources adds MCP resource definitions to the server.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			policyURI,
			"Password and Lockout Policy",
			mcp.WithResourceDescription(
				"The effective administrator password rules and the account lockout "+
					"threshold and duration.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handlePolicyResource,
	)
}

type policyInfo struct {
	MinLength         int      `json:"min_length"`
	RequiredClasses   []string `json:"required_character_classes"`
	SpecialCharacters string   `json:"special_characters"`
	LockoutThreshold  int      `json:"lockout_threshold"`
	LockoutSeconds    int64    `json:"lockout_duration_seconds"`
}

func (s *MCPServer) handlePolicyResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	lp := s.authSvc.LockoutPolicy()
	info := policyInfo{
		MinLength:         s.authSvc.Validator().Policy().MinLength(),
		RequiredClasses:   []string{"uppercase", "lowercase", "digit", "special"},
		SpecialCharacters: credential.SpecialCharacters,
		LockoutThreshold:  lp.Threshold,
		LockoutSeconds:    int64(lp.Duration.Seconds()),
	}

	b, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal policy: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      policyURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
