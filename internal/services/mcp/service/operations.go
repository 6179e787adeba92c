package service

import (
	"context"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/louisbranch/tx3-mcp/internal/platform/errors"
	platformotel "github.com/louisbranch/tx3-mcp/internal/platform/otel"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/domain"
)

const (
	methodToolsList              = "tools/list"
	methodToolsCall              = "tools/call"
	methodPromptsList            = "prompts/list"
	methodPromptsGet             = "prompts/get"
	methodResourcesList          = "resources/list"
	methodResourceTemplatesList  = "resources/templates/list"
	methodResourcesSubscribe     = "resources/subscribe"
	methodResourcesUnsubscribe   = "resources/unsubscribe"
	methodCompletionComplete     = "completion/complete"
	methodLoggingSetLevel        = "logging/setLevel"
	notImplementedMessage        = "not implemented"
	operationTracerComponent     = "service"
	operationAttributeName       = "tx3.operation"
	operationAttributeToolsCount = "tx3.tools"
)

// operationMiddleware serves the per-call tool surface. tools/list appends
// the derived operation tools after the catalog tools; tools/call routes any
// name outside catalog to the dispatcher.
func operationMiddleware(dispatcher *domain.Dispatcher, catalog map[string]struct{}) mcp.Middleware {
	tracer := platformotel.Tracer(operationTracerComponent)
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			switch method {
			case methodToolsList:
				ctx, span := tracer.Start(ctx, methodToolsList)
				defer span.End()
				result, err := listTools(ctx, dispatcher, next, method, req)
				if err != nil {
					span.SetStatus(codes.Error, err.Error())
					return nil, err
				}
				span.SetAttributes(attribute.Int(operationAttributeToolsCount, len(result.Tools)))
				return result, nil
			case methodToolsCall:
				call, ok := req.(*mcp.CallToolRequest)
				if !ok || call.Params == nil {
					return next(ctx, method, req)
				}
				if _, static := catalog[call.Params.Name]; static {
					return next(ctx, method, req)
				}
				ctx, span := tracer.Start(ctx, methodToolsCall)
				defer span.End()
				span.SetAttributes(attribute.String(operationAttributeName, call.Params.Name))
				result, err := dispatcher.CallTool(ctx, call.Params.Name, call.Params.Arguments)
				if err != nil {
					log.Printf("tool call failed: operation=%s code=%s err=%v", call.Params.Name, apperrors.CodeOf(err), err)
					span.SetStatus(codes.Error, err.Error())
					return nil, apperrors.ToJSONRPC(err)
				}
				return result, nil
			case methodPromptsList:
				return &mcp.ListPromptsResult{Prompts: []*mcp.Prompt{}}, nil
			case methodResourcesList:
				return &mcp.ListResourcesResult{Resources: []*mcp.Resource{}}, nil
			case methodResourceTemplatesList:
				return &mcp.ListResourceTemplatesResult{ResourceTemplates: []*mcp.ResourceTemplate{}}, nil
			case methodPromptsGet, methodResourcesSubscribe, methodResourcesUnsubscribe, methodCompletionComplete, methodLoggingSetLevel:
				return nil, notImplemented()
			default:
				return next(ctx, method, req)
			}
		}
	}
}

// listTools returns the catalog page from the SDK and, on the last page,
// the operation tools of every loaded protocol.
func listTools(ctx context.Context, dispatcher *domain.Dispatcher, next mcp.MethodHandler, method string, req mcp.Request) (*mcp.ListToolsResult, error) {
	base, err := next(ctx, method, req)
	if err != nil {
		return nil, err
	}
	result, ok := base.(*mcp.ListToolsResult)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result %T", method, base)
	}
	if result.NextCursor != "" {
		return result, nil
	}
	tools, err := dispatcher.ListTools(ctx)
	if err != nil {
		log.Printf("list tools failed: code=%s err=%v", apperrors.CodeOf(err), err)
		return nil, apperrors.ToJSONRPC(err)
	}
	result.Tools = append(result.Tools, tools...)
	return result, nil
}

func notImplemented() *jsonrpc.Error {
	return &jsonrpc.Error{Code: apperrors.JSONRPCMethodNotFound, Message: notImplementedMessage}
}
