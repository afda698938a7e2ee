package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpc_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/grpc"
	grpcpool "github.com/JoeShih716/go-credit-ledger/pkg/grpc"
)

// 對單一帳戶同時送出大量扣款，確認成功筆數剛好等於 floor((餘額 + 額度) / 金額)
func main() {
	target := flag.String("target", "localhost:50051", "gRPC server address")
	accountID := flag.Int64("account", 1, "account id")
	value := flag.Int64("value", 100, "debit value per request")
	totalCount := flag.Int("n", 10000, "number of debits")
	concurrency := flag.Int("c", 200, "concurrent requests")
	flag.Parse()
	if *value <= 0 || *totalCount <= 0 || *concurrency <= 0 {
		log.Fatal("value, n and c must be positive")
	}

	pool := grpcpool.NewPool()
	defer pool.Close()
	conn, err := pool.GetConnection(*target)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	client := grpc_adapter.NewLedgerClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	// 起始狀態
	before, err := client.GetExtract(ctx, *accountID)
	if err != nil {
		log.Fatalf("get extract: %v", err)
	}
	saldo := before.GetFields()["balance"].GetStructValue().GetFields()
	startBalance := int64(saldo["total"].GetNumberValue())
	limit := int64(saldo["limit"].GetNumberValue())
	expected := (startBalance + limit) / *value
	if expected > int64(*totalCount) {
		expected = int64(*totalCount)
	}

	var ok, rejected, failed int64
	var wg sync.WaitGroup
	wg.Add(*totalCount)
	sem := make(chan struct{}, *concurrency)

	startTime := time.Now()
	for i := 0; i < *totalCount; i++ {
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := client.SubmitTransaction(ctx, *accountID, *value, "d", "load")
			switch status.Code(err) {
			case codes.OK:
				atomic.AddInt64(&ok, 1)
			case codes.FailedPrecondition:
				atomic.AddInt64(&rejected, 1)
			default:
				if atomic.AddInt64(&failed, 1) == 1 {
					log.Printf("debit %d failed: %v", idx, err)
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	fmt.Printf("Completed %d requests in %v\n", *totalCount, elapsed)
	fmt.Printf("TPS: %.2f\n", float64(*totalCount)/elapsed.Seconds())
	fmt.Printf("accepted=%d rejected=%d failed=%d expected_accepted=%d\n", ok, rejected, failed, expected)
	if failed == 0 && ok != expected {
		log.Fatalf("accepted %d debits, expected exactly %d", ok, expected)
	}
}
