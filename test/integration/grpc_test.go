package integration

import (
	"context"
	"os"
	"testing"

	lroauto "cloud.google.com/go/longrunning/autogen"
	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpcapi "github.com/lemonberrylabs/penknife/pkg/api/grpc"
)

// grpcEndpoint returns the gRPC endpoint address (host:port).
func grpcEndpoint() string {
	if ep := os.Getenv("PENKNIFE_GRPC_ENDPOINT"); ep != "" {
		return ep
	}
	return "localhost:8788"
}

func newRendererClient(t *testing.T) *grpcapi.RendererClient {
	t.Helper()
	conn, err := grpc.NewClient(grpcEndpoint(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return grpcapi.NewRendererClient(conn)
}

// newOperationsClient connects the stock Google Cloud operations client to
// the penknife gRPC port.
func newOperationsClient(t *testing.T) *lroauto.OperationsClient {
	t.Helper()
	client, err := lroauto.NewOperationsClient(context.Background(),
		option.WithEndpoint(grpcEndpoint()),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("lroauto.NewOperationsClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("structpb.NewStruct: %v", err)
	}
	return s
}

func TestGRPC_Render(t *testing.T) {
	client := newRendererClient(t)

	resp, err := client.Render(context.Background(), mustStruct(t, map[string]interface{}{
		"template": "{{@people, p}}{{p.name}}{{?p.admin}}*{{/?p.admin}};{{/@people}}",
		"data": map[string]interface{}{
			"people": []interface{}{
				map[string]interface{}{"name": "ann", "admin": true},
				map[string]interface{}{"name": "bo"},
			},
		},
	}))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := resp.GetFields()["output"].GetStringValue(); got != "ann*;bo;" {
		t.Errorf("output = %q", got)
	}

	_, err = client.Render(context.Background(), mustStruct(t, map[string]interface{}{"template": "{{?x}}"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestGRPC_RenderTemplateAndPoll(t *testing.T) {
	id := uniqueID("grpc")
	createTemplate(t, id, "Hi {{who}}")

	op, err := newRendererClient(t).RenderTemplate(context.Background(), mustStruct(t, map[string]interface{}{
		"name": id,
		"data": map[string]interface{}{"who": "there"},
	}))
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}

	fetched, err := newOperationsClient(t).GetOperation(context.Background(), &longrunningpb.GetOperationRequest{Name: op.GetName()})
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if !fetched.GetDone() {
		t.Fatal("expected a completed operation")
	}
	record := new(structpb.Struct)
	if err := fetched.GetResponse().UnmarshalTo(record); err != nil {
		t.Fatalf("unpack response: %v", err)
	}
	if got := record.GetFields()["output"].GetStringValue(); got != "Hi there" {
		t.Errorf("output = %q", got)
	}
}
