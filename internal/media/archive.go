package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by Archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Bill is an inbound bill attachment plus the text read from it.
type Bill struct {
	LeadPhone   string
	MessageID   string
	Data        []byte
	ContentType string
	OCRText     string
	ReceivedAt  time.Time
}

// ManifestEntry is one line of the monthly JSONL manifest.
type ManifestEntry struct {
	PhoneHash   string  `json:"phone_hash"`
	MediaKey    string  `json:"media_key"`
	TextKey     string  `json:"text_key,omitempty"`
	ContentType string  `json:"content_type"`
	Provider    string  `json:"provider,omitempty"`
	Confidence  float64 `json:"confidence"`
	IsQualified bool    `json:"is_qualified"`
	ArchivedAt  string  `json:"archived_at"`
}

// Archive keeps bill images and their scrubbed OCR text in S3.
type Archive struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

// NewArchive creates an Archive. If bucket is empty, all operations are no-ops.
func NewArchive(s3Client S3API, bucket string, logger *logging.Logger) *Archive {
	if logger == nil {
		logger = logging.Default()
	}
	return &Archive{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled returns true if archival is configured (bucket is set).
func (a *Archive) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil
}

// SaveBill stores the attachment and its scrubbed text, returning the media key.
func (a *Archive) SaveBill(ctx context.Context, bill Bill) (ManifestEntry, error) {
	if !a.Enabled() {
		return ManifestEntry{}, nil
	}
	if len(bill.Data) == 0 {
		return ManifestEntry{}, errors.New("media: bill data required")
	}
	at := bill.ReceivedAt
	if at.IsZero() {
		at = a.now()
	}
	at = at.UTC()
	name := bill.MessageID
	if name == "" {
		name = uuid.NewString()
	}
	phoneHash := HashPhone(bill.LeadPhone)
	prefix := fmt.Sprintf("bills/v1/by-date/%d/%02d/%02d/%s/%s", at.Year(), at.Month(), at.Day(), phoneHash[:16], name)

	entry := ManifestEntry{
		PhoneHash:   phoneHash,
		MediaKey:    prefix + extensionFor(bill.ContentType),
		ContentType: bill.ContentType,
		ArchivedAt:  at.Format(time.RFC3339),
	}
	if err := a.put(ctx, entry.MediaKey, bill.Data, bill.ContentType); err != nil {
		return ManifestEntry{}, err
	}
	if bill.OCRText != "" {
		entry.TextKey = prefix + ".txt"
		if err := a.put(ctx, entry.TextKey, []byte(ScrubPII(bill.OCRText)), "text/plain; charset=utf-8"); err != nil {
			return ManifestEntry{}, err
		}
	}
	a.logger.Info("archived bill to S3", "media_key", entry.MediaKey, "bytes", len(bill.Data))
	return entry, nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// Uses read-modify-write since S3 doesn't support append.
func (a *Archive) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !a.Enabled() {
		return nil
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("media: marshal manifest entry: %w", err)
	}
	now := a.now().UTC()
	manifestKey := fmt.Sprintf("bills/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	existing, err := a.get(ctx, manifestKey)
	if err != nil && !isNotFound(err) {
		return err
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')
	return a.put(ctx, manifestKey, buf.Bytes(), "application/x-ndjson")
}

func (a *Archive) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("media: s3 put %s: %w", key, err)
	}
	return nil
}

func (a *Archive) get(ctx context.Context, key string) ([]byte, error) {
	out, err := a.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("media: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("media: read %s: %w", key, err)
	}
	return data, nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	}
	if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
