package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "liqflow/config"
	"liqflow/internal/models"
	"liqflow/logger"
)

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, io.EOF }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

// liquidationRecord defines the schema for liquidation events stored in parquet.
type liquidationRecord struct {
	Exchange   string  `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol     string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side       string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price      float64 `parquet:"name=price, type=DOUBLE"`
	Quantity   float64 `parquet:"name=quantity, type=DOUBLE"`
	USDValue   float64 `parquet:"name=usd_value, type=DOUBLE"`
	PriceLevel int64   `parquet:"name=price_level, type=INT64"`
	EventTime  int64   `parquet:"name=event_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	HourBucket int64   `parquet:"name=hour_bucket, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// S3Sink archives flushed liquidation batches to S3 as snappy-compressed
// parquet files, one object per batch.
type S3Sink struct {
	client *s3.Client
	bucket string
	log    *logger.Log
}

// NewS3Sink builds the sink using S3 credentials from config.
func NewS3Sink(cfg appconfig.S3Config) (*S3Sink, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("s3 storage is disabled")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket not configured")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	log := logger.GetLogger()
	log.WithComponent("s3_sink").WithFields(logger.Fields{
		"bucket":     bucket,
		"region":     cfg.Region,
		"endpoint":   cfg.Endpoint,
		"path_style": cfg.PathStyle,
	}).Info("s3 liquidation sink initialized")

	return &S3Sink{client: client, bucket: bucket, log: log}, nil
}

// Flush serializes the batch to parquet and uploads it.
func (s *S3Sink) Flush(ctx context.Context, events []models.LiquidationEvent) error {
	if len(events) == 0 {
		return nil
	}

	data, err := createParquet(events)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}

	key := objectKey(events)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	s.log.WithComponent("s3_sink").WithFields(logger.Fields{
		"s3_key":  key,
		"records": len(events),
		"bytes":   len(data),
	}).Info("liquidation batch uploaded")
	return nil
}

func createParquet(events []models.LiquidationEvent) ([]byte, error) {
	mf := newMemFile()
	pw, err := writer.NewParquetWriter(mf, new(liquidationRecord), 1)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, ev := range events {
		rec := liquidationRecord{
			Exchange:   strings.ToLower(ev.Exchange),
			Symbol:     strings.ToUpper(ev.Symbol),
			Side:       string(ev.Side),
			Price:      ev.Price,
			Quantity:   ev.Quantity,
			USDValue:   ev.USDValue,
			PriceLevel: int64(ev.PriceLevel),
			EventTime:  ev.Timestamp.UTC().UnixMilli(),
			HourBucket: ev.HourBucket.UTC().UnixMilli(),
		}
		if err := pw.Write(rec); err != nil {
			return nil, err
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	return mf.Bytes(), nil
}

// objectKey partitions batches by date and hour of the newest event.
func objectKey(events []models.LiquidationEvent) string {
	var newest time.Time
	for _, ev := range events {
		if ev.Timestamp.After(newest) {
			newest = ev.Timestamp
		}
	}
	if newest.IsZero() {
		newest = time.Now()
	}
	ts := newest.UTC()

	filename := fmt.Sprintf("liq_%s_%s.parquet", ts.Format("20060102150405"), uuid.NewString()[:8])
	return filepath.ToSlash(filepath.Join(
		"liquidations",
		fmt.Sprintf("date=%s", ts.Format("2006-01-02")),
		fmt.Sprintf("hour=%02d", ts.Hour()),
		filename,
	))
}
