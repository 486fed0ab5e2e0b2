package openapi

import "github.com/getkin/kin-openapi/openapi3"

// schemaRef points at a named component schema.
func schemaRef(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func objectSchema(required []string, props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
			Required:   required,
		},
	}
}

func stringProp(description string) *openapi3.SchemaRef {
	s := openapi3.NewStringSchema()
	s.Description = description
	return s.NewRef()
}

// passwordProp is a write-only string in the "password" format.
func passwordProp(description string) *openapi3.SchemaRef {
	s := openapi3.NewStringSchema()
	s.Format = "password"
	s.WriteOnly = true
	s.Description = description
	return s.NewRef()
}

func boolProp(description string) *openapi3.SchemaRef {
	s := openapi3.NewBoolSchema()
	s.Description = description
	return s.NewRef()
}

func intProp(description string) *openapi3.SchemaRef {
	s := openapi3.NewIntegerSchema()
	s.Format = "int32"
	s.Description = description
	return s.NewRef()
}

func int64Prop(description string) *openapi3.SchemaRef {
	s := openapi3.NewInt64Schema()
	s.Description = description
	return s.NewRef()
}
