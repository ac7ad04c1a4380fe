package worker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-txscope/internal/pkg/metrics"
)

// MockStatsSource はStatsSourceのモック
type MockStatsSource struct {
	mock.Mock
}

func (m *MockStatsSource) Stats() sql.DBStats {
	args := m.Called()
	return args.Get(0).(sql.DBStats)
}

func TestNewPoolStatsCollector(t *testing.T) {
	source := new(MockStatsSource)
	interval := 15 * time.Second

	collector := NewPoolStatsCollector(source, metrics.NewDiscard(), interval)

	assert.NotNil(t, collector)
	assert.Equal(t, interval, collector.interval)
	assert.NotNil(t, collector.stopCh)
	assert.NotNil(t, collector.doneCh)
}

func TestPoolStatsCollector_Collect(t *testing.T) {
	source := new(MockStatsSource)
	source.On("Stats").Return(sql.DBStats{
		OpenConnections: 5,
		InUse:           2,
		Idle:            3,
		WaitCount:       7,
	})
	m := metrics.NewDiscard()
	collector := NewPoolStatsCollector(source, m, time.Minute)

	collector.collect()

	assert.Equal(t, 5.0, testutil.ToFloat64(m.PoolConnections.WithLabelValues(StateOpen)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PoolConnections.WithLabelValues(StateInUse)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PoolConnections.WithLabelValues(StateIdle)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.PoolConnections.WithLabelValues(StateWaiting)))
	source.AssertExpectations(t)
}

func TestPoolStatsCollector_StartStop(t *testing.T) {
	t.Run("開始と停止が正常に動作する", func(t *testing.T) {
		source := new(MockStatsSource)
		source.On("Stats").Return(sql.DBStats{OpenConnections: 1})

		collector := NewPoolStatsCollector(source, metrics.NewDiscard(), 20*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go collector.Start(ctx)
		time.Sleep(70 * time.Millisecond)
		collector.Stop()

		select {
		case <-collector.doneCh:
			// 正常に終了
		case <-time.After(1 * time.Second):
			t.Error("collector did not stop in time")
		}
		// 起動直後と定期実行で複数回呼ばれる
		assert.GreaterOrEqual(t, len(source.Calls), 2)
	})

	t.Run("コンテキストキャンセルで停止する", func(t *testing.T) {
		source := new(MockStatsSource)
		source.On("Stats").Return(sql.DBStats{}).Maybe()

		collector := NewPoolStatsCollector(source, metrics.NewDiscard(), 50*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan struct{})
		go func() {
			collector.Start(ctx)
			close(done)
		}()

		time.Sleep(30 * time.Millisecond)
		cancel()

		select {
		case <-done:
			// 正常に終了
		case <-time.After(1 * time.Second):
			t.Error("collector did not stop on context cancel")
		}
	})
}
