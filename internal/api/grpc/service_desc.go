package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const formServiceName = "formai.v1.FormService"

// FormServiceServer is the server API of formai.v1.FormService. Every
// method takes and returns a google.protobuf.Struct holding the JSON shape
// of the HTTP API.
type FormServiceServer interface {
	CreateForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListForms(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartTesting(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PublishForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ArchiveForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DuplicateForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GenerateForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefineForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSubmissions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSubmission(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateSubmissionStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteSubmission(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportSubmissions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(FormServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(FormServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + formServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// FormServiceDesc describes formai.v1.FormService for grpc.Server
var FormServiceDesc = grpc.ServiceDesc{
	ServiceName: formServiceName,
	HandlerType: (*FormServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateForm", FormServiceServer.CreateForm),
		unary("GetForm", FormServiceServer.GetForm),
		unary("ListForms", FormServiceServer.ListForms),
		unary("UpdateForm", FormServiceServer.UpdateForm),
		unary("DeleteForm", FormServiceServer.DeleteForm),
		unary("StartTesting", FormServiceServer.StartTesting),
		unary("PublishForm", FormServiceServer.PublishForm),
		unary("ArchiveForm", FormServiceServer.ArchiveForm),
		unary("DuplicateForm", FormServiceServer.DuplicateForm),
		unary("GenerateForm", FormServiceServer.GenerateForm),
		unary("RefineForm", FormServiceServer.RefineForm),
		unary("SubmitForm", FormServiceServer.SubmitForm),
		unary("ListSubmissions", FormServiceServer.ListSubmissions),
		unary("GetSubmission", FormServiceServer.GetSubmission),
		unary("UpdateSubmissionStatus", FormServiceServer.UpdateSubmissionStatus),
		unary("DeleteSubmission", FormServiceServer.DeleteSubmission),
		unary("ExportSubmissions", FormServiceServer.ExportSubmissions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "formai/v1/forms.proto",
}

// RegisterFormServiceServer registers srv on s
func RegisterFormServiceServer(s grpc.ServiceRegistrar, srv FormServiceServer) {
	s.RegisterService(&FormServiceDesc, srv)
}

// FormServiceMethod returns the full method name of a FormService method
func FormServiceMethod(name string) string {
	return "/" + formServiceName + "/" + name
}
