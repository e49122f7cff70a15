// Package filestore はアップロードされたファイルの監査記録を永続化する。
// 記録は追記専用で、MongoDBへの保存と任意のCloud Storageへの原本保管を並行して行う。
package filestore

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/signbridge/internal/metrics"
	"github.com/hitoshi/signbridge/internal/model"
	"github.com/hitoshi/signbridge/internal/repository"
)

// Archive はファイル原本の保管先。
type Archive interface {
	Put(ctx context.Context, object string, data []byte) error
}

// Service はアップロード記録を保存する。
type Service struct {
	repo    repository.UploadedFileRepository
	archive Archive // nilの場合は原本を保管しない
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
}

// NewService はServiceを生成する。archiveはnilでもよい。
func NewService(repo repository.UploadedFileRepository, archive Archive, mc metrics.MetricsCollector, logger *slog.Logger) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		repo:    repo,
		archive: archive,
		metrics: mc,
		logger:  logger,
		now:     time.Now,
	}
}

// Store はアクションを検証し、作成日時を設定して記録を保存する。
// 原本の保管が有効な場合は "<user_id>/<filename>" にMongoDBへの保存と並行して書き込む。
func (s *Service) Store(ctx context.Context, file *model.UploadedFile, raw []byte) error {
	if file == nil || file.UserID == "" {
		return model.NewInvalidInputError("Missing user data")
	}
	if !file.Action.Valid() {
		return model.NewInvalidInputError(fmt.Sprintf("invalid action: %q", file.Action))
	}
	if file.Filename == "" {
		return model.NewInvalidInputError("Missing file name")
	}
	file.CreatedAt = s.now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.repo.Insert(gctx, file); err != nil {
			return fmt.Errorf("failed to insert uploaded file: %w", err)
		}
		return nil
	})
	if s.archive != nil && len(raw) > 0 {
		object := path.Join(file.UserID, path.Base(file.Filename))
		g.Go(func() error {
			if err := s.archive.Put(gctx, object, raw); err != nil {
				return fmt.Errorf("failed to archive %s: %w", object, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.metrics.RecordUpload(string(file.Action))
	return nil
}

// Record はStoreを呼び出し、失敗をログに残すのみで呼び出し元には返さない。
// 監査記録はリクエストの成否に影響させない。
func (s *Service) Record(ctx context.Context, file *model.UploadedFile, raw []byte) {
	if file == nil {
		return
	}
	if err := s.Store(ctx, file, raw); err != nil {
		s.logger.ErrorContext(ctx, "failed to save uploaded file record",
			slog.String("user_id", file.UserID),
			slog.String("action", string(file.Action)),
			slog.String("filename", file.Filename),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "uploaded file recorded",
		slog.String("user_id", file.UserID),
		slog.String("action", string(file.Action)),
	)
}
