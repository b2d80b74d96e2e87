// Package grpcapi implements the penknife.v1.Renderer gRPC service and the
// long-running Operations service that exposes stored renders.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"

	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"

	"github.com/lemonberrylabs/penknife/pkg/api"
	"github.com/lemonberrylabs/penknife/pkg/store"
	"github.com/lemonberrylabs/penknife/pkg/types"
)

// Server implements the Renderer and Operations services.
type Server struct {
	longrunningpb.UnimplementedOperationsServer

	renderer *api.Renderer
	logger   *slog.Logger
	grpc     *grpc.Server
}

// New creates a new gRPC server wrapping the given renderer.
func New(r *api.Renderer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{renderer: r, logger: logger}

	gs := grpc.NewServer()
	RegisterRendererServer(gs, srv)
	longrunningpb.RegisterOperationsServer(gs, srv)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.grpc.Serve(lis)
}

// GracefulStop gracefully stops the gRPC server.
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}

// --- Renderer Service ---

// Render formats an ad-hoc template: {template, data, compress} -> {output}.
func (s *Server) Render(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	src := fields["template"].GetStringValue()
	data, err := valueFromProto(fields["data"])
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid data: %v", err)
	}

	output, err := s.renderer.Format(src, data, api.Settings{
		Compress: fields["compress"].GetBoolValue(),
		Markers:  stringMap(fields["markers"]),
	})
	if err != nil {
		return nil, templateStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"output": output})
}

// RenderTemplate renders a stored template: {name, data}. The result is a
// completed operation named after the render record.
func (s *Server) RenderTemplate(ctx context.Context, req *structpb.Struct) (*longrunningpb.Operation, error) {
	fields := req.GetFields()
	name := fields["name"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	data, err := valueFromProto(fields["data"])
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid data: %v", err)
	}

	rec, err := s.renderer.RenderTemplate(name, data)
	if err != nil {
		return nil, storeStatus(err)
	}
	s.logger.Debug("rendered template over grpc", "template", name, "render", rec.ID, "state", rec.State)
	return renderOperation(rec)
}

// Check validates a template: {template} -> {valid, error, line}.
func (s *Server) Check(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	src := req.GetFields()["template"].GetStringValue()
	result := map[string]interface{}{"valid": true}
	if err := s.renderer.Check(src); err != nil {
		var pe *types.ParseError
		if !errors.As(err, &pe) {
			return nil, status.Error(codes.Internal, err.Error())
		}
		result = map[string]interface{}{
			"valid": false,
			"error": pe.Message,
			"line":  pe.Line,
		}
	}
	return structpb.NewStruct(result)
}

// --- Operations Service ---

// GetOperation returns the operation of a stored render. Operation names are
// render names: "<template>/renders/<id>".
func (s *Server) GetOperation(ctx context.Context, req *longrunningpb.GetOperationRequest) (*longrunningpb.Operation, error) {
	templateID, renderID, ok := strings.Cut(req.GetName(), "/renders/")
	if !ok {
		return nil, status.Errorf(codes.NotFound, "operation %q not found", req.GetName())
	}
	rec, err := s.renderer.Store().GetRender(templateID, renderID)
	if err != nil {
		return nil, storeStatus(err)
	}
	return renderOperation(rec)
}

// --- Internal helpers ---

// renderOperation wraps a render record in an operation. The record is the
// metadata; a failed render also carries its error as the result.
func renderOperation(rec *store.Render) (*longrunningpb.Operation, error) {
	record, err := renderToProto(rec)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode render: %v", err)
	}
	meta, err := anypb.New(record)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to marshal operation result: %v", err)
	}

	op := &longrunningpb.Operation{
		Name:     rec.Name,
		Done:     rec.State != store.RenderActive,
		Metadata: meta,
	}
	switch rec.State {
	case store.RenderSucceeded:
		op.Result = &longrunningpb.Operation_Response{Response: meta}
	case store.RenderFailed:
		op.Result = &longrunningpb.Operation_Error{
			Error: status.New(codes.InvalidArgument, rec.Error.Message).Proto(),
		}
	}
	return op, nil
}

func renderToProto(rec *store.Render) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"name":               rec.Name,
		"id":                 rec.ID,
		"template":           rec.Template,
		"state":              string(rec.State),
		"startTime":          rec.StartTime.Format(time.RFC3339),
		"templateRevisionId": rec.TemplateRevisionID,
	}
	if rec.State == store.RenderSucceeded {
		m["output"] = rec.Output
	}
	if rec.Error != nil {
		m["error"] = rec.Error.Message
		m["line"] = rec.Error.Line
	}
	if !rec.EndTime.IsZero() {
		m["endTime"] = rec.EndTime.Format(time.RFC3339)
	}
	return structpb.NewStruct(m)
}

// valueFromProto converts request data. Struct keys have no order, so they
// are sorted.
func valueFromProto(v *structpb.Value) (types.Value, error) {
	if v == nil {
		return types.Null, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return types.Null, nil
	case *structpb.Value_StringValue:
		return types.NewScalar(kind.StringValue), nil
	case *structpb.Value_NumberValue:
		return types.FromGo(kind.NumberValue), nil
	case *structpb.Value_BoolValue:
		return types.FromGo(kind.BoolValue), nil
	case *structpb.Value_ListValue:
		items := make([]types.Value, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			iv, err := valueFromProto(item)
			if err != nil {
				return types.Null, err
			}
			items = append(items, iv)
		}
		return types.NewList(items...), nil
	case *structpb.Value_StructValue:
		raw := kind.StructValue.AsMap()
		return types.FromGo(raw), nil
	default:
		return types.Null, fmt.Errorf("unsupported value kind %T", kind)
	}
}

func stringMap(v *structpb.Value) map[string]string {
	fields := v.GetStructValue().GetFields()
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, f := range fields {
		out[k] = f.GetStringValue()
	}
	return out
}

func templateStatus(err error) error {
	var pe *types.ParseError
	if errors.As(err, &pe) {
		return status.Error(codes.InvalidArgument, pe.Message)
	}
	var se *types.SetupError
	if errors.As(err, &se) {
		return status.Error(codes.InvalidArgument, se.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func storeStatus(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
