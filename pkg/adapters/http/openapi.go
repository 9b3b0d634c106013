package http

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPI describes the dispatch endpoint for the given agent types.
func OpenAPI(version string, agents []string) *openapi3.T {
	enum := make([]any, 0, len(agents))
	for _, a := range agents {
		enum = append(enum, a)
	}

	request := openapi3.NewObjectSchema().
		WithProperty("jsonrpc", openapi3.NewStringSchema().WithEnum("2.0")).
		WithProperty("id", &openapi3.Schema{Description: "Non-empty string or non-zero number"}).
		WithProperty("method", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("params", openapi3.NewObjectSchema())
	request.Required = []string{"jsonrpc", "id", "method"}

	rpcError := openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewIntegerSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("data", &openapi3.Schema{})
	rpcError.Required = []string{"code", "message"}

	response := openapi3.NewObjectSchema().
		WithProperty("jsonrpc", openapi3.NewStringSchema().WithEnum("2.0")).
		WithProperty("id", &openapi3.Schema{Nullable: true}).
		WithProperty("result", &openapi3.Schema{Nullable: true}).
		WithProperty("error", rpcError)
	response.Required = []string{"jsonrpc", "id"}

	envelope := func(description string) *openapi3.ResponseRef {
		return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(description).WithJSONSchema(response)}
	}

	op := openapi3.NewOperation()
	op.OperationID = "dispatch"
	op.Summary = "Dispatch a JSON-RPC 2.0 request to an agent"
	op.AddParameter(openapi3.NewPathParameter("agentType").WithSchema(openapi3.NewStringSchema().WithEnum(enum...)))
	op.AddParameter(openapi3.NewPathParameter("instanceId").WithSchema(openapi3.NewStringSchema()))
	op.AddParameter(openapi3.NewHeaderParameter(APIKeyHeader).WithRequired(true).WithSchema(openapi3.NewStringSchema()))
	op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(request)}
	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, envelope("Result envelope")),
		openapi3.WithStatus(http.StatusBadRequest, envelope("Parse error or invalid params")),
		openapi3.WithStatus(http.StatusUnauthorized, envelope("Missing or invalid API key")),
		openapi3.WithStatus(http.StatusNotFound, envelope("Unknown agent or method")),
		openapi3.WithStatus(http.StatusInternalServerError, envelope("Invalid request, internal or domain error")),
	)

	health := openapi3.NewOperation()
	health.OperationID = "health"
	health.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Service is up")}),
	)

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   "Mesa A2A API",
			Version: version,
		},
		Paths: openapi3.NewPaths(),
	}
	doc.Paths.Set("/agents/{agentType}/{instanceId}", &openapi3.PathItem{Post: op})
	doc.Paths.Set("/health", &openapi3.PathItem{Get: health})
	return doc
}
