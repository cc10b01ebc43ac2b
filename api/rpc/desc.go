package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC service name clients dial, standing in for the
// protoc-generated "percolator.v1.Percolator" a .proto file would produce.
const ServiceName = "percolator.v1.Percolator"

func reserveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReserveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Reserve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Reserve"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Reserve(ctx, req.(*ReserveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func commitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CommitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Commit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Commit"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Commit(ctx, req.(*CommitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func cancelHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Cancel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Cancel"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Cancel(ctx, req.(*CancelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func batchOpenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BatchOpenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).BatchOpen(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/BatchOpen"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).BatchOpen(ctx, req.(*BatchOpenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func liquidationCallHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LiquidationCallRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).LiquidationCall(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/LiquidationCall"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).LiquidationCall(ctx, req.(*LiquidationCallRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func depositHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DepositRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Deposit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Deposit"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Deposit(ctx, req.(*DepositRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func withdrawHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(WithdrawRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Withdraw(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Withdraw"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Withdraw(ctx, req.(*WithdrawRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pledgeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PledgeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Pledge(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Pledge"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Pledge(ctx, req.(*PledgeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func unpledgeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UnpledgeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Unpledge(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Unpledge"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Unpledge(ctx, req.(*UnpledgeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-wired equivalent of what protoc-gen-go-grpc would
// emit into a _grpc.pb.go file for a "Percolator" service carrying spec.md
// §6.1/§6.2's operations. Registered against a *grpc.Server with
// grpc.RegisterService(&ServiceDesc, srv), srv must be a *Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reserve", Handler: reserveHandler},
		{MethodName: "Commit", Handler: commitHandler},
		{MethodName: "Cancel", Handler: cancelHandler},
		{MethodName: "BatchOpen", Handler: batchOpenHandler},
		{MethodName: "LiquidationCall", Handler: liquidationCallHandler},
		{MethodName: "Deposit", Handler: depositHandler},
		{MethodName: "Withdraw", Handler: withdrawHandler},
		{MethodName: "Pledge", Handler: pledgeHandler},
		{MethodName: "Unpledge", Handler: unpledgeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "percolator.proto",
}
