// Package cleanup は期限切れトークンの定期削除ジョブを提供する。
// PostgreSQLに保存したトークンは期限切れ後も行が残るため、
// ワーカーモードで一定間隔ごとに削除する。Redisに保存したトークンはTTLで失効するため対象外。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/shelf/internal/repository"
)

// DefaultInterval はクリーンアップの既定の実行間隔。
const DefaultInterval = time.Hour

// Recorder は削除件数を記録するインターフェース。
type Recorder interface {
	RecordTokensCleaned(count int64)
}

// TokenCleanupJob は期限切れトークンの削除ジョブ。
// 削除対象がない場合もエラーにならず、何度実行しても結果は変わらない。
type TokenCleanupJob struct {
	purger   repository.ExpiredTokenPurger
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewTokenCleanupJob は新しいTokenCleanupJobを生成する。recorderはnilでもよい。
func NewTokenCleanupJob(purger repository.ExpiredTokenPurger, recorder Recorder, logger *slog.Logger) *TokenCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenCleanupJob{
		purger:   purger,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Run は現在時刻までに期限切れとなったトークンを削除し、削除件数を返す。
func (j *TokenCleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	deleted, err := j.purger.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("トークンクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("トークンクリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordTokensCleaned(deleted)
	}

	j.logger.Info("トークンクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return deleted, nil
}

// Start は起動直後に1回実行し、以降interval間隔で実行する。
// ctxがキャンセルされるまでブロックする。実行エラーはログに記録して継続する。
func (j *TokenCleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *TokenCleanupJob) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// エラーはRun内でログ出力済み
	_, _ = j.Run(ctx)
}
