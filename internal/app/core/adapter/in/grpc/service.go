package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName gRPC 服務全名
const ServiceName = "ledger.LedgerService"

const (
	SubmitTransactionMethod = "/" + ServiceName + "/SubmitTransaction"
	GetExtractMethod        = "/" + ServiceName + "/GetExtract"
)

// LedgerServiceServer 帳本服務
//
// 訊息使用 google.protobuf.Struct，不需要額外的 codegen
//
//	SubmitTransaction: {account_id, value, kind, description} -> {id, limit, balance}
//	GetExtract: {account_id} -> {balance:{total, limit, as_of}, recent_history:[...]}
type LedgerServiceServer interface {
	SubmitTransaction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetExtract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// LedgerServiceDesc 手寫的 ServiceDesc (等同 protoc-gen-go-grpc 的產出)
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitTransaction",
			Handler:    submitTransactionHandler,
		},
		{
			MethodName: "GetExtract",
			Handler:    getExtractHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger.proto",
}

// RegisterLedgerServiceServer 註冊服務
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

func submitTransactionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).SubmitTransaction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SubmitTransactionMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LedgerServiceServer).SubmitTransaction(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getExtractHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).GetExtract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetExtractMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LedgerServiceServer).GetExtract(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// LedgerClient 呼叫 LedgerService 的客戶端
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

// SubmitTransaction 送出一筆交易
func (c *LedgerClient) SubmitTransaction(ctx context.Context, accountID, value int64, kind, description string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"account_id":  accountID,
		"value":       value,
		"kind":        kind,
		"description": description,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SubmitTransactionMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetExtract 取得對帳單
func (c *LedgerClient) GetExtract(ctx context.Context, accountID int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"account_id": accountID,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetExtractMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
