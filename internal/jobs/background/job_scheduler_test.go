package background

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"stockledger/internal/caching"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MockDrainer struct {
	mock.Mock
}

func (m *MockDrainer) Drain(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// stubLocker reports busy when busy is set, otherwise runs fn
type stubLocker struct {
	busy bool
	keys []string
}

func (l *stubLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.busy {
		return caching.ErrLockBusy
	}
	return fn(ctx)
}

type JobSchedulerTestSuite struct {
	suite.Suite
	drainer    *MockDrainer
	reconciler *MockReconciler
	locker     *stubLocker
	js         *JobScheduler
	ctx        context.Context
}

func TestJobSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(JobSchedulerTestSuite))
}

func (suite *JobSchedulerTestSuite) SetupTest() {
	suite.drainer = &MockDrainer{}
	suite.reconciler = &MockReconciler{}
	suite.locker = &stubLocker{}
	suite.ctx = context.Background()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	js, err := NewJobScheduler(suite.drainer, suite.reconciler, suite.locker, Intervals{Outbox: time.Minute, Reconcile: time.Hour}, logger)
	suite.Require().NoError(err)
	suite.js = js
}

func (suite *JobSchedulerTestSuite) TearDownTest() {
	_ = suite.js.Stop()
}

func (suite *JobSchedulerTestSuite) TestRegistersJobs() {
	status := suite.js.GetJobStatus()
	assert.Equal(suite.T(), 2, status["total_jobs"])
}

func (suite *JobSchedulerTestSuite) TestDrainOutbox() {
	suite.drainer.On("Drain", suite.ctx).Return(3, nil).Once()
	assert.NoError(suite.T(), suite.js.drainOutbox(suite.ctx))

	suite.drainer.On("Drain", suite.ctx).Return(0, errors.New("conn refused")).Once()
	assert.Error(suite.T(), suite.js.drainOutbox(suite.ctx))
	suite.drainer.AssertExpectations(suite.T())
}

func (suite *JobSchedulerTestSuite) TestReconcileStock_HoldsLock() {
	suite.reconciler.On("Reconcile", suite.ctx).Return(2, nil).Once()

	require.NoError(suite.T(), suite.js.reconcileStock(suite.ctx))
	assert.Equal(suite.T(), []string{caching.ReconcileLockKey}, suite.locker.keys)
	suite.reconciler.AssertExpectations(suite.T())
}

func (suite *JobSchedulerTestSuite) TestReconcileStock_BusyLockSkips() {
	suite.locker.busy = true

	assert.NoError(suite.T(), suite.js.reconcileStock(suite.ctx))
	suite.reconciler.AssertNotCalled(suite.T(), "Reconcile", mock.Anything)
}

func (suite *JobSchedulerTestSuite) TestReconcileStock_Error() {
	suite.reconciler.On("Reconcile", suite.ctx).Return(0, errors.New("replay failed")).Once()
	assert.EqualError(suite.T(), suite.js.reconcileStock(suite.ctx), "replay failed")
}
