package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

// ErrLedgerStopped 帳本已停止，不再接受請求
var ErrLedgerStopped = errors.New("ledger stopped")

// inboxSize 每個帳戶輸送帶的緩衝
const inboxSize = 256

type requestKind uint8

const (
	requestApply requestKind = iota
	requestSnapshot
)

// actorRequest 請求包裝 channel，讓呼叫端可以等待結果
type actorRequest struct {
	kind   requestKind
	tx     domain.TransactionRequest
	result chan actorResult
}

type actorResult struct {
	snap domain.Snapshot
	err  error
}

// accountActor 單一帳戶的單寫者：只有自己的 goroutine 會碰 ledger
type accountActor struct {
	ledger *domain.AccountLedger
	wal    *wal.WAL
	inbox  chan *actorRequest
	exited chan struct{}
}

// ActorLedger 每個帳戶一個 goroutine 的帳本 (LMAX 風格的單寫者，但以帳戶為單位)
//
// Apply(等待) -> 帳戶 Channel -> 帳戶 Run Loop -> WAL -> 更新記憶體 -> Result Channel -> Apply(收到結果)
type ActorLedger struct {
	actors map[int64]*accountActor
	now    func() time.Time
	// Pool 減少 GC 壓力
	requestPool sync.Pool
	startOnce   sync.Once
	wg          sync.WaitGroup
}

// NewActorLedger 建立一個新的 ActorLedger 實例，需呼叫 Start 後才會處理請求
//
// 參數:
//
//	registry: 帳戶表
//	opts: WithWALDir / WithClock
//
// 回傳:
//
//	*ActorLedger: ActorLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewActorLedger(registry *domain.AccountRegistry, opts ...Option) (*ActorLedger, error) {
	o := newOptions(opts)
	l := &ActorLedger{
		actors: make(map[int64]*accountActor, registry.Len()),
		now:    o.now,
		requestPool: sync.Pool{
			New: func() interface{} {
				return &actorRequest{
					result: make(chan actorResult, 1),
				}
			},
		},
	}
	for _, id := range registry.IDs() {
		limit, _ := registry.LimitFor(id)
		ledger, w, err := openAccount(o.walDir, id, limit)
		if err != nil {
			l.closeWALs()
			return nil, err
		}
		l.actors[id] = &accountActor{
			ledger: ledger,
			wal:    w,
			inbox:  make(chan *actorRequest, inboxSize),
			exited: make(chan struct{}),
		}
	}
	return l, nil
}

// Start 啟動每個帳戶的處理迴圈 (非同步)，ctx 結束時處理完剩餘請求後停止
func (l *ActorLedger) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		for _, a := range l.actors {
			l.wg.Add(1)
			go l.run(ctx, a)
		}
	})
}

// Wait 等待所有處理迴圈結束
func (l *ActorLedger) Wait() {
	l.wg.Wait()
}

func (l *ActorLedger) run(ctx context.Context, a *accountActor) {
	defer l.wg.Done()
	defer close(a.exited)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的請求處理完
			l.drain(a)
			return
		case req := <-a.inbox:
			l.process(a, req)
		}
	}
}

func (l *ActorLedger) drain(a *accountActor) {
	for {
		select {
		case req := <-a.inbox:
			l.process(a, req)
		default:
			return
		}
	}
}

// process 處理單筆請求並回傳結果
func (l *ActorLedger) process(a *accountActor, req *actorRequest) {
	switch req.kind {
	case requestApply:
		snap, err := a.ledger.TryApply(req.tx, l.now(), persistTo(a.wal))
		req.result <- actorResult{snap: snap, err: err}
	case requestSnapshot:
		req.result <- actorResult{snap: a.ledger.Snapshot(l.now())}
	}
}

// Apply 接收交易請求並等待帳戶迴圈處理完成
func (l *ActorLedger) Apply(ctx context.Context, accountID int64, req domain.TransactionRequest) (domain.Snapshot, error) {
	return l.send(ctx, accountID, requestApply, req)
}

// Snapshot 取得帳戶目前狀態 (同樣排隊，保證與交易序列化)
func (l *ActorLedger) Snapshot(ctx context.Context, accountID int64) (domain.Snapshot, error) {
	return l.send(ctx, accountID, requestSnapshot, domain.TransactionRequest{})
}

func (l *ActorLedger) send(ctx context.Context, accountID int64, kind requestKind, tx domain.TransactionRequest) (domain.Snapshot, error) {
	a, ok := l.actors[accountID]
	if !ok {
		return domain.Snapshot{}, domain.ErrAccountNotFound
	}

	// 1. 放入輸送帶 (使用 sync.Pool 減少 GC)
	req := l.requestPool.Get().(*actorRequest)
	req.kind = kind
	req.tx = tx

	select {
	case a.inbox <- req:
	case <-a.exited:
		l.requestPool.Put(req)
		return domain.Snapshot{}, ErrLedgerStopped
	case <-ctx.Done():
		l.requestPool.Put(req)
		return domain.Snapshot{}, ctx.Err()
	}

	// 2. 進了輸送帶就一定等結果，交易不可半途取消
	select {
	case res := <-req.result:
		l.requestPool.Put(req)
		return res.snap, res.err
	case <-a.exited:
		select {
		case res := <-req.result:
			l.requestPool.Put(req)
			return res.snap, res.err
		default:
			// 迴圈結束前沒處理到，帳本沒有任何變更
			return domain.Snapshot{}, ErrLedgerStopped
		}
	}
}

// Close 關閉所有帳戶的 WAL，應在處理迴圈結束 (Wait) 之後呼叫
func (l *ActorLedger) Close() error {
	return l.closeWALs()
}

func (l *ActorLedger) closeWALs() error {
	wals := make([]*wal.WAL, 0, len(l.actors))
	for _, a := range l.actors {
		wals = append(wals, a.wal)
	}
	return closeAll(wals)
}

var _ usecase.LedgerStore = (*ActorLedger)(nil)
