package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestExpirySweeper_RunOnce(t *testing.T) {
	repo := &mockAssetRepo{
		revokeExpiredFn: func(_ context.Context, now time.Time) (int, error) {
			if now.IsZero() {
				t.Error("RevokeExpired вызван с нулевым временем")
			}
			return 3, nil
		},
	}
	sw := NewExpirySweeper(repo, time.Minute, slog.Default())

	result := sw.RunOnce(context.Background())
	if result.RevokedCount != 3 {
		t.Errorf("RevokedCount = %d, ожидается 3", result.RevokedCount)
	}
	if result.Errors != 0 {
		t.Errorf("Errors = %d, ожидается 0", result.Errors)
	}
}

func TestExpirySweeper_RunOnceError(t *testing.T) {
	repo := &mockAssetRepo{
		revokeExpiredFn: func(_ context.Context, _ time.Time) (int, error) {
			return 0, errors.New("обрыв соединения")
		},
	}
	sw := NewExpirySweeper(repo, time.Minute, slog.Default())

	result := sw.RunOnce(context.Background())
	if result.Errors != 1 {
		t.Errorf("Errors = %d, ожидается 1", result.Errors)
	}
}

// TestExpirySweeper_StartStop: фоновая горутина выполняет проход
// сразу после старта и останавливается по Stop.
func TestExpirySweeper_StartStop(t *testing.T) {
	var runs atomic.Int32
	repo := &mockAssetRepo{
		revokeExpiredFn: func(_ context.Context, _ time.Time) (int, error) {
			runs.Add(1)
			return 0, nil
		},
	}
	sw := NewExpirySweeper(repo, time.Hour, slog.Default())

	sw.Start(context.Background())
	defer sw.Stop()

	// Первый проход выполняется сразу после старта
	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("первый проход не выполнен после старта")
		case <-time.After(10 * time.Millisecond):
		}
	}

	sw.Stop()
	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != after {
		t.Error("проходы продолжаются после Stop")
	}
}
