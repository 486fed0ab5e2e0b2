package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Paths served by adminguard. The HTTP router and the generated document both
// use these constants.
const (
	PathSession       = "/api/v1/system/admin/session"
	PathPassword      = "/api/v1/system/admin/password"
	PathLockStatus    = "/api/v1/system/admin/{username}/lock"
	PathPasswordCheck = "/api/v1/system/password/check"
)

const tagAdmin = "admin"

// Generate builds the OpenAPI 3.1 description of the adminguard HTTP API.
// version is reported as the document version; baseURL may be empty.
func Generate(version, baseURL string) *openapi3.T {
	if version == "" {
		version = "dev"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "adminguard API",
			Description: "Administrator credential verification, password policy and account lockout.",
			Version:     version,
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: baseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	doc.Components = &components
	addComponentSchemas(doc.Components.Schemas)

	doc.Paths = openapi3.NewPaths()
	doc.Paths.Set(PathSession, &openapi3.PathItem{Post: loginOperation()})
	doc.Paths.Set(PathPassword, &openapi3.PathItem{Put: changePasswordOperation()})
	doc.Paths.Set(PathLockStatus, &openapi3.PathItem{Get: lockStatusOperation()})
	doc.Paths.Set(PathPasswordCheck, &openapi3.PathItem{Post: passwordCheckOperation()})
	doc.Paths.Set("/healthz", &openapi3.PathItem{Get: probeOperation("healthz", "Liveness probe")})
	doc.Paths.Set("/readyz", &openapi3.PathItem{Get: probeOperation("readyz", "Readiness probe, checks the record store")})

	return doc
}

func addComponentSchemas(schemas openapi3.Schemas) {
	schemas["ErrorResponse"] = objectSchema(nil, openapi3.Schemas{
		"error": objectSchema([]string{"code", "message"}, openapi3.Schemas{
			"code":    intProp("HTTP status code."),
			"message": stringProp("Human readable error message."),
			"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
		}),
	})

	schemas["LoginRequest"] = objectSchema([]string{"username", "password"}, openapi3.Schemas{
		"username": stringProp("Administrator username. Matching is case-sensitive."),
		"password": passwordProp("Plaintext password."),
	})
	schemas["LoginResponse"] = objectSchema(nil, openapi3.Schemas{
		"authenticated": boolProp("Always true for a 200 response."),
		"admin_id":      int64Prop("Identifier of the authenticated administrator."),
		"username":      stringProp("Username of the authenticated administrator."),
	})

	schemas["PasswordChangeRequest"] = objectSchema([]string{"username", "current_password", "new_password"}, openapi3.Schemas{
		"username":         stringProp("Administrator username."),
		"current_password": passwordProp("Current password. Verified as a login attempt."),
		"new_password":     passwordProp("Replacement password. Must satisfy the password policy."),
	})

	schemas["LockStatus"] = objectSchema(nil, openapi3.Schemas{
		"username":          stringProp("Queried username."),
		"locked":            boolProp("Whether login attempts are currently refused."),
		"remaining_seconds": int64Prop("Seconds until the lock expires, rounded up. Zero when unlocked."),
	})

	schemas["PasswordCheckRequest"] = objectSchema([]string{"password"}, openapi3.Schemas{
		"password": passwordProp("Candidate password."),
	})
	schemas["PasswordCheckResponse"] = objectSchema(nil, openapi3.Schemas{
		"valid":      boolProp("Whether the password satisfies the policy."),
		"message":    stringProp("Policy verdict. Names the first violated rule when invalid."),
		"code":       stringProp("Machine readable code of the violated rule."),
		"min_length": intProp("Configured minimum length."),
	})
}

func loginOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tagAdmin},
		Summary:     "Verify administrator credentials",
		Description: "Records the attempt for lockout. Unknown usernames and wrong passwords produce the same 401 response.",
		OperationID: "adminLogin",
		RequestBody: jsonRequestBody("Credentials", "LoginRequest"),
		Responses: newResponses("200", "Credentials accepted", schemaRef("LoginResponse"),
			"400", "401", "423", "429", "503"),
	}
}

func changePasswordOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tagAdmin},
		Summary:     "Change an administrator password",
		Description: "The current password is verified as a login attempt and counts toward lockout.",
		OperationID: "adminChangePassword",
		RequestBody: jsonRequestBody("Current and new password", "PasswordChangeRequest"),
		Responses: newResponses("200", "Password changed", successSchema(),
			"400", "401", "423", "503"),
	}
}

func lockStatusOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tagAdmin},
		Summary:     "Report whether an administrator is locked out",
		OperationID: "adminLockStatus",
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{
				Value: openapi3.NewPathParameter("username").
					WithSchema(openapi3.NewStringSchema()).
					WithDescription("Administrator username"),
			},
		},
		Responses: newResponses("200", "Lock status", schemaRef("LockStatus"), "503"),
	}
}

func passwordCheckOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tagAdmin},
		Summary:     "Check a password against the policy",
		Description: "Nothing is stored or hashed.",
		OperationID: "passwordCheck",
		RequestBody: jsonRequestBody("Candidate password", "PasswordCheckRequest"),
		Responses:   newResponses("200", "Policy verdict", schemaRef("PasswordCheckResponse"), "400"),
	}
}

func probeOperation(id, summary string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"system"},
		Summary:     summary,
		OperationID: id,
		Responses: newResponses("200", "Healthy", objectSchema(nil, openapi3.Schemas{
			"status": stringProp("ok or degraded"),
		}), "503"),
	}
}

// newResponses builds a response set with one success entry and an
// ErrorResponse entry for each of errorCodes.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef, errorCodes ...string) *openapi3.Responses {
	responses := openapi3.NewResponsesWithCapacity(len(errorCodes) + 1)

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := schemaRef("ErrorResponse")
	for _, code := range errorCodes {
		desc := errorDescriptions[code]
		resp := &openapi3.Response{
			Description: &desc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		}
		if code == "423" || code == "429" {
			resp.Headers = openapi3.Headers{
				"Retry-After": &openapi3.HeaderRef{
					Value: &openapi3.Header{
						Parameter: openapi3.Parameter{
							Description: "Seconds until a new attempt may succeed",
							Schema:      openapi3.NewIntegerSchema().NewRef(),
						},
					},
				},
			}
		}
		responses.Set(code, &openapi3.ResponseRef{Value: resp})
	}
	return responses
}

var errorDescriptions = map[string]string{
	"400": "Bad request or password policy violation",
	"401": "Invalid username or password",
	"423": "Account locked",
	"429": "Too many requests",
	"503": "Record store unavailable",
}

func jsonRequestBody(description, schemaName string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(schemaRef(schemaName)),
		},
	}
}

func successSchema() *openapi3.SchemaRef {
	return objectSchema(nil, openapi3.Schemas{
		"success": boolProp(""),
		"message": stringProp(""),
	})
}
