package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

// GrpcServer LedgerService 的實作 (Driving Adapter)
type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

// NewServer 建立 grpc.Server 並註冊 LedgerService、Health 與 Reflection
//
// 參數:
//
//	core: 業務邏輯層
//	logger: 請求 log
//	opts: 額外的 grpc.ServerOption
//
// 回傳:
//
//	*grpc.Server: 尚未 Serve 的 server
func NewServer(core *usecase.CoreUseCase, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(LoggingInterceptor(logger))}, opts...)
	s := grpc.NewServer(opts...)
	RegisterLedgerServiceServer(s, NewGrpcServer(core))

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s) // 方便 grpcurl 之類的工具測試
	return s
}

// LoggingInterceptor 記錄每個請求的方法、狀態碼與耗時
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("rpc completed",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("latency", time.Since(start)))
		return resp, err
	}
}

func (s *GrpcServer) SubmitTransaction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()

	// 1. 帳戶 ID
	accountID, err := intField(fields, "account_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	// 2. 金額必須是整數 (最小貨幣單位)
	value, err := intField(fields, "value")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	// 3. 組裝請求，其餘格式檢查交給 usecase
	req := domain.TransactionRequest{
		Value:       value,
		Kind:        domain.TransactionKind(fields["kind"].GetStringValue()),
		Description: fields["description"].GetStringValue(),
	}

	view, err := s.core.SubmitTransaction(ctx, accountID, req)
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"id":      view.ID,
		"limit":   view.Limit,
		"balance": view.Balance,
	})
}

func (s *GrpcServer) GetExtract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := intField(in.GetFields(), "account_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	extract, err := s.core.GetExtract(ctx, accountID)
	if err != nil {
		return nil, toStatus(err)
	}

	history := make([]interface{}, 0, len(extract.RecentHistory))
	for _, rec := range extract.RecentHistory {
		history = append(history, map[string]interface{}{
			"value":       rec.Value,
			"kind":        string(rec.Kind),
			"description": rec.Description,
			"occurred_at": rec.OccurredAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return structpb.NewStruct(map[string]interface{}{
		"balance": map[string]interface{}{
			"total": extract.Balance.Total,
			"limit": extract.Balance.Limit,
			"as_of": extract.Balance.AsOf.UTC().Format(time.RFC3339Nano),
		},
		"recent_history": history,
	})
}

// maxExactInt float64 能精確表示的最大整數 (2^53)
const maxExactInt = 1 << 53

// intField 取出整數欄位 (Struct 的數字都是 float64)
// 超過 2^53 的值在 float64 中已經被捨入，直接拒絕
func intField(fields map[string]*structpb.Value, name string) (int64, error) {
	v, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	f := n.NumberValue
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if math.Abs(f) > maxExactInt {
		return 0, fmt.Errorf("%s is out of range (|%s| <= 2^53)", name, name)
	}
	return int64(f), nil
}

// toStatus 業務錯誤轉成 gRPC 狀態碼
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrMalformedRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientLimit):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

var _ LedgerServiceServer = (*GrpcServer)(nil)
