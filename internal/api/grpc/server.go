// Package grpc exposes the wallet services over gRPC. Requests and responses are
// google.protobuf.Struct messages so that the service descriptors can be declared here
// without generated stubs.
package grpc

import (
	"context"
	"sort"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	LedgerServiceName  = "drivekr.wallet.v1.LedgerService"
	AccountServiceName = "drivekr.wallet.v1.AccountService"
	AdminServiceName   = "drivekr.wallet.v1.AdminService"
)

type rpc func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// rpcService is implemented by every handler in this package.
type rpcService interface {
	methods() map[string]rpc
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, h *LedgerHandler) {
	register(s, LedgerServiceName, h)
}

func RegisterAccountServer(s grpc.ServiceRegistrar, h *AccountHandler) {
	register(s, AccountServiceName, h)
}

func RegisterAdminServer(s grpc.ServiceRegistrar, h *AdminHandler) {
	register(s, AdminServiceName, h)
}

func register(s grpc.ServiceRegistrar, service string, h rpcService) {
	s.RegisterService(serviceDesc(service, h), h)
}

func serviceDesc(service string, h rpcService) *grpc.ServiceDesc {
	table := h.methods()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	desc := &grpc.ServiceDesc{
		ServiceName: service,
		HandlerType: (*rpcService)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "drivekr/wallet/v1/wallet.proto",
	}
	for _, name := range names {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler("/"+service+"/"+name, table[name]),
		})
	}
	return desc
}

// unaryHandler has the shape protoc-gen-go-grpc generates for a unary method.
func unaryHandler(fullMethod string, call rpc) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	invoke := func(ctx context.Context, req *structpb.Struct) (any, error) {
		resp, err := call(ctx, req)
		if err != nil {
			return nil, toStatus(err)
		}
		return resp, nil
	}
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return invoke(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return invoke(ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
