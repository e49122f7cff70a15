package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/hitoshi/signbridge/internal/metrics"
)

// archiveServiceName はメトリクスで使用するサービス名。
const archiveServiceName = "gcs"

// GCSArchive はアップロードされたファイルの原本をCloud Storageに保管する。
// 同名オブジェクトが既に存在する場合は上書きせずスキップする。
type GCSArchive struct {
	bucket     *storage.BucketHandle
	bucketName string
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// NewGCSArchive はGCSArchiveを生成する。
func NewGCSArchive(client *storage.Client, bucketName string, mc metrics.MetricsCollector, logger *slog.Logger) *GCSArchive {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &GCSArchive{
		bucket:     client.Bucket(bucketName),
		bucketName: bucketName,
		metrics:    mc,
		logger:     logger,
	}
}

// Put はオブジェクトが存在しない場合のみ書き込む。
func (a *GCSArchive) Put(ctx context.Context, object string, data []byte) error {
	start := time.Now()
	writer := a.bucket.Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = http.DetectContentType(data)

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return a.finish(ctx, object, start, fmt.Errorf("failed to write to GCS: %w", err))
	}
	if err := writer.Close(); err != nil {
		return a.finish(ctx, object, start, fmt.Errorf("failed to finalize GCS write: %w", err))
	}
	return a.finish(ctx, object, start, nil)
}

// finish は書き込み結果を記録し、既存オブジェクトによる412は成功として扱う。
func (a *GCSArchive) finish(ctx context.Context, object string, start time.Time, err error) error {
	if isPreconditionFailed(err) {
		a.logger.InfoContext(ctx, "archive object already exists, skipping",
			slog.String("bucket", a.bucketName),
			slog.String("object", object),
		)
		err = nil
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	a.metrics.RecordUpstream(archiveServiceName, outcome, time.Since(start))
	return err
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
