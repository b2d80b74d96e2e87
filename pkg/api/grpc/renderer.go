package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"
)

// RendererServiceName is the fully qualified name of the Renderer service.
const RendererServiceName = "penknife.v1.Renderer"

const (
	renderMethod         = "/" + RendererServiceName + "/Render"
	renderTemplateMethod = "/" + RendererServiceName + "/RenderTemplate"
	checkMethod          = "/" + RendererServiceName + "/Check"
)

// RendererServer is the server API for the Renderer service. Requests and
// responses are google.protobuf.Struct messages.
type RendererServer interface {
	Render(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RenderTemplate(context.Context, *structpb.Struct) (*longrunningpb.Operation, error)
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRendererServer registers srv with s.
func RegisterRendererServer(s grpc.ServiceRegistrar, srv RendererServer) {
	s.RegisterService(&RendererServiceDesc, srv)
}

// RendererServiceDesc is the grpc.ServiceDesc for the Renderer service.
var RendererServiceDesc = grpc.ServiceDesc{
	ServiceName: RendererServiceName,
	HandlerType: (*RendererServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Render", Handler: rendererRenderHandler},
		{MethodName: "RenderTemplate", Handler: rendererRenderTemplateHandler},
		{MethodName: "Check", Handler: rendererCheckHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "penknife/v1/renderer.proto",
}

func rendererRenderHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RendererServer).Render(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: renderMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RendererServer).Render(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func rendererRenderTemplateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RendererServer).RenderTemplate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: renderTemplateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RendererServer).RenderTemplate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func rendererCheckHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RendererServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: checkMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RendererServer).Check(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RendererClient is the client API for the Renderer service.
type RendererClient struct {
	cc grpc.ClientConnInterface
}

// NewRendererClient creates a client over cc.
func NewRendererClient(cc grpc.ClientConnInterface) *RendererClient {
	return &RendererClient{cc: cc}
}

// Render calls Renderer.Render.
func (c *RendererClient) Render(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, renderMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RenderTemplate calls Renderer.RenderTemplate.
func (c *RendererClient) RenderTemplate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*longrunningpb.Operation, error) {
	out := new(longrunningpb.Operation)
	if err := c.cc.Invoke(ctx, renderTemplateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Check calls Renderer.Check.
func (c *RendererClient) Check(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, checkMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
