package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

// --- Mock LedgerStore ---
type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) Apply(ctx context.Context, accountID int64, req domain.TransactionRequest) (domain.Snapshot, error) {
	args := m.Called(ctx, accountID, req)
	return args.Get(0).(domain.Snapshot), args.Error(1)
}

func (m *MockLedgerStore) Snapshot(ctx context.Context, accountID int64) (domain.Snapshot, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(domain.Snapshot), args.Error(1)
}

var _ usecase.LedgerStore = (*MockLedgerStore)(nil)

// --- Mock EventPublisher ---
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event domain.TransactionCompleted) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var _ usecase.EventPublisher = (*MockPublisher)(nil)

type CoreUseCaseTestSuite struct {
	suite.Suite
	store     *MockLedgerStore
	publisher *MockPublisher
	core      *usecase.CoreUseCase
	ctx       context.Context
}

func (s *CoreUseCaseTestSuite) SetupTest() {
	registry, err := domain.NewAccountRegistry([]domain.Account{{ID: 1, Limit: 1000}})
	s.Require().NoError(err)
	s.store = new(MockLedgerStore)
	s.publisher = new(MockPublisher)
	s.core = usecase.NewCoreUseCase(registry, s.store, usecase.WithPublisher(s.publisher))
	s.ctx = context.Background()
}

func (s *CoreUseCaseTestSuite) TestSubmitTransaction_Success() {
	req := domain.TransactionRequest{Value: 100, Kind: domain.TransactionKindDebit, Description: "pix"}
	rec := domain.TransactionRecord{Value: 100, Kind: domain.TransactionKindDebit, Description: "pix", OccurredAt: time.Now()}
	snap := domain.Snapshot{Balance: -100, Limit: 1000, RecentHistory: []domain.TransactionRecord{rec}}

	s.store.On("Apply", s.ctx, int64(1), req).Return(snap, nil).Once()
	s.publisher.On("Publish", s.ctx, mock.MatchedBy(func(ev domain.TransactionCompleted) bool {
		return ev.AccountID == 1 && ev.Balance == -100 && ev.Value == 100
	})).Return(nil).Once()

	view, err := s.core.SubmitTransaction(s.ctx, 1, req)

	s.Require().NoError(err)
	s.Equal(domain.ClientView{ID: 1, Limit: 1000, Balance: -100}, view)
	s.store.AssertExpectations(s.T())
	s.publisher.AssertExpectations(s.T())
}

func (s *CoreUseCaseTestSuite) TestSubmitTransaction_MalformedNeverReachesStore() {
	bad := []domain.TransactionRequest{
		{Value: 0, Kind: domain.TransactionKindCredit, Description: "a"},
		{Value: 1, Kind: "x", Description: "a"},
		{Value: 1, Kind: domain.TransactionKindCredit, Description: ""},
		{Value: 1, Kind: domain.TransactionKindCredit, Description: "01234567890"},
	}
	for _, req := range bad {
		// 帳戶 99 不存在，格式錯誤仍然優先
		_, err := s.core.SubmitTransaction(s.ctx, 99, req)
		s.ErrorIs(err, domain.ErrMalformedRequest)
	}
	s.store.AssertNotCalled(s.T(), "Apply", mock.Anything, mock.Anything, mock.Anything)
	s.publisher.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything)
}

func (s *CoreUseCaseTestSuite) TestSubmitTransaction_UnknownAccount() {
	req := domain.TransactionRequest{Value: 1, Kind: domain.TransactionKindCredit, Description: "a"}

	_, err := s.core.SubmitTransaction(s.ctx, 42, req)

	s.ErrorIs(err, domain.ErrAccountNotFound)
	s.store.AssertNotCalled(s.T(), "Apply", mock.Anything, mock.Anything, mock.Anything)
}

func (s *CoreUseCaseTestSuite) TestSubmitTransaction_PropagatesStoreErrors() {
	req := domain.TransactionRequest{Value: 5000, Kind: domain.TransactionKindDebit, Description: "a"}
	for _, storeErr := range []error{domain.ErrInsufficientLimit, errors.Join(domain.ErrStorageFailure, errors.New("fsync"))} {
		s.store.On("Apply", s.ctx, int64(1), req).Return(domain.Snapshot{}, storeErr).Once()

		_, err := s.core.SubmitTransaction(s.ctx, 1, req)

		s.ErrorIs(err, storeErr)
	}
	s.publisher.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything)
}

func (s *CoreUseCaseTestSuite) TestSubmitTransaction_PublishFailureIsIgnored() {
	req := domain.TransactionRequest{Value: 10, Kind: domain.TransactionKindCredit, Description: "a"}
	snap := domain.Snapshot{Balance: 10, Limit: 1000, RecentHistory: []domain.TransactionRecord{{Value: 10, Kind: domain.TransactionKindCredit, Description: "a"}}}
	s.store.On("Apply", s.ctx, int64(1), req).Return(snap, nil).Once()
	s.publisher.On("Publish", s.ctx, mock.Anything).Return(errors.New("broker down")).Once()

	view, err := s.core.SubmitTransaction(s.ctx, 1, req)

	s.Require().NoError(err)
	s.Equal(int64(10), view.Balance)
}

func (s *CoreUseCaseTestSuite) TestGetExtract() {
	asOf := time.Now()
	s.store.On("Snapshot", s.ctx, int64(1)).Return(domain.Snapshot{Balance: 7, Limit: 1000, AsOf: asOf}, nil).Once()

	view, err := s.core.GetExtract(s.ctx, 1)

	s.Require().NoError(err)
	s.Equal(domain.BalanceView{Total: 7, Limit: 1000, AsOf: asOf}, view.Balance)
	s.NotNil(view.RecentHistory)
	s.Empty(view.RecentHistory)
}

func (s *CoreUseCaseTestSuite) TestGetExtract_UnknownAccount() {
	_, err := s.core.GetExtract(s.ctx, 6)
	s.ErrorIs(err, domain.ErrAccountNotFound)
	s.store.AssertNotCalled(s.T(), "Snapshot", mock.Anything, mock.Anything)
}

func TestCoreUseCaseTestSuite(t *testing.T) {
	suite.Run(t, new(CoreUseCaseTestSuite))
}

func TestNewCoreUseCaseWithoutPublisher(t *testing.T) {
	registry, err := domain.NewAccountRegistry([]domain.Account{{ID: 1, Limit: 0}})
	require.NoError(t, err)
	store := new(MockLedgerStore)
	req := domain.TransactionRequest{Value: 1, Kind: domain.TransactionKindCredit, Description: "a"}
	store.On("Apply", mock.Anything, int64(1), req).Return(domain.Snapshot{Balance: 1}, nil)

	core := usecase.NewCoreUseCase(registry, store)
	view, err := core.SubmitTransaction(context.Background(), 1, req)

	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Balance)
}
