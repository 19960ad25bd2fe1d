package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/CloudShare/config"
	"github.com/sifan077/CloudShare/internal/app/model"
	"github.com/sifan077/CloudShare/internal/app/store"
	appmetrics "github.com/sifan077/CloudShare/internal/infra/prometheus"
	"go.uber.org/zap"
)

// maxExpiresInHours is the largest expiry whose duration fits in time.Duration.
const maxExpiresInHours = math.MaxInt64 / int64(time.Hour)

// ShareService implements the lifecycle of shared content: create, gated
// retrieval, and metadata lookup.
type ShareService interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	Resolve(ctx context.Context, id string, access AccessInfo) (*Resolved, error)
	ResolveSubscription(ctx context.Context, id string, access AccessInfo) (*SubscriptionResult, error)
	Metadata(ctx context.Context, id string) (*model.Record, error)
}

// EventPublisher receives an event for every successful retrieval.
type EventPublisher interface {
	Publish(ctx context.Context, event model.AccessEvent) error
}

// Scanner inspects file uploads before they are stored.
type Scanner interface {
	Scan(ctx context.Context, data []byte) error
}

// ShareDeps groups collaborators of the share service.
type ShareDeps struct {
	Logger         *zap.Logger
	Store          store.Store
	Fetcher        SubscriptionFetcher
	Publisher      EventPublisher
	Scanner        Scanner
	MaxUploadBytes int64
	Now            func() time.Time
}

// CreateInput captures one upload.
type CreateInput struct {
	Type        model.RecordType
	Filename    string
	ContentType string
	// Data holds raw bytes for file uploads.
	Data []byte
	// Text holds the payload for text uploads and the upstream URL for subscriptions.
	Text string

	ExpiresInHours   int
	MaxDownloads     int
	CustomSlug       string
	BurnAfterRead    bool
	SubscriptionInfo *model.SubscriptionInfo
}

// CreateResult is returned to the uploader.
type CreateResult struct {
	ID     string
	URL    string
	Record *model.Record
}

// AccessInfo describes who is retrieving content.
type AccessInfo struct {
	IP        string
	UserAgent string
	Country   string
	City      string
}

// Resolved carries the content served by one successful retrieval together
// with the record as it stood after the counter increment.
type Resolved struct {
	Record *model.Record
	// Content is the stored blob: text, base64 or a subscription URL.
	Content string
	// Burned is set when this access deleted the record.
	Burned bool
}

// Bytes returns the payload, decoding base64 for file records.
func (r *Resolved) Bytes() ([]byte, error) {
	if !r.Record.Base64Encoded() {
		return []byte(r.Content), nil
	}
	data, err := base64.StdEncoding.DecodeString(r.Content)
	if err != nil {
		return nil, fmt.Errorf("decode content %s: %w", r.Record.ID, err)
	}
	return data, nil
}

// SubscriptionResult is what /sub serves.
type SubscriptionResult struct {
	Record *model.Record
	Body   []byte
	// UserInfo is the subscription-userinfo header value, empty when unset.
	UserInfo string
}

type shareService struct {
	logger         *zap.Logger
	store          store.Store
	fetcher        SubscriptionFetcher
	publisher      EventPublisher
	scanner        Scanner
	maxUploadBytes int64
	now            func() time.Time
}

// NewShareService returns a ShareService over the given store.
func NewShareService(deps ShareDeps) ShareService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = config.DefaultMaxUploadBytes
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &shareService{
		logger:         logger,
		store:          deps.Store,
		fetcher:        deps.Fetcher,
		publisher:      deps.Publisher,
		scanner:        deps.Scanner,
		maxUploadBytes: maxUpload,
		now:            now,
	}
}

// IsBlockedMIME reports whether mime belongs to the media categories this
// service refuses to host as files.
func IsBlockedMIME(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	return strings.HasPrefix(mime, "image/") ||
		strings.HasPrefix(mime, "video/") ||
		strings.HasPrefix(mime, "audio/")
}

func (s *shareService) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.Type == "" {
		input.Type = model.TypeText
	}
	if !input.Type.Valid() {
		return nil, invalidf("Unknown type %q", input.Type)
	}
	if input.ExpiresInHours < 0 {
		return nil, invalidf("expiresIn must not be negative")
	}
	if int64(input.ExpiresInHours) > maxExpiresInHours {
		return nil, invalidf("expiresIn must be at most %d hours", maxExpiresInHours)
	}
	if input.MaxDownloads < 0 {
		return nil, invalidf("maxDownloads must be a positive integer")
	}

	rec := &model.Record{
		Type:          input.Type,
		Filename:      input.Filename,
		ContentType:   input.ContentType,
		BurnAfterRead: input.BurnAfterRead,
	}

	blob, err := s.prepareContent(ctx, rec, input)
	if err != nil {
		return nil, err
	}

	if input.Type == model.TypeSubscription && input.SubscriptionInfo != nil {
		info := *input.SubscriptionInfo
		rec.SubscriptionInfo = &info
	}

	id, err := s.allocateID(ctx, input.CustomSlug)
	if err != nil {
		return nil, err
	}
	rec.ID = id

	now := s.now().UTC()
	rec.CreatedAt = now
	if input.ExpiresInHours > 0 {
		expires := now.Add(time.Duration(input.ExpiresInHours) * time.Hour)
		rec.ExpiresAt = &expires
	}
	if input.MaxDownloads > 0 {
		limit := input.MaxDownloads
		rec.MaxDownloads = &limit
	}

	if err := s.store.PutContent(ctx, id, blob); err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}
	if err := s.store.PutMeta(ctx, id, rec); err != nil {
		if delErr := s.store.DeleteContent(ctx, id); delErr != nil {
			s.logger.Warn("failed to clean up orphaned content", zap.String("id", id), zap.Error(delErr))
		}
		return nil, fmt.Errorf("store meta: %w", err)
	}

	appmetrics.SharesCreated.WithLabelValues(string(rec.Type)).Inc()
	s.logger.Info("share created",
		zap.String("id", id),
		zap.String("type", string(rec.Type)),
		zap.Int64("size", rec.Size),
		zap.Bool("burn_after_read", rec.BurnAfterRead),
	)

	return &CreateResult{ID: id, URL: AccessPath(rec), Record: rec}, nil
}

// AccessPath returns the public retrieval path for a record.
func AccessPath(rec *model.Record) string {
	if rec.Type == model.TypeSubscription {
		return "/sub/" + rec.ID
	}
	return "/raw/" + rec.ID
}

func (s *shareService) prepareContent(ctx context.Context, rec *model.Record, input CreateInput) (string, error) {
	switch input.Type {
	case model.TypeFile:
		if len(input.Data) == 0 {
			return "", invalidf("No file")
		}
		if int64(len(input.Data)) > s.maxUploadBytes {
			return "", invalidf("Too large")
		}
		if rec.ContentType == "" {
			rec.ContentType = "application/octet-stream"
		}
		if IsBlockedMIME(rec.ContentType) {
			return "", invalidf("File type blocked")
		}
		if rec.Filename == "" {
			rec.Filename = "file"
		}
		if s.scanner != nil {
			if err := s.scanner.Scan(ctx, input.Data); err != nil {
				return "", err
			}
		}
		rec.Size = int64(len(input.Data))
		return base64.StdEncoding.EncodeToString(input.Data), nil

	case model.TypeSubscription:
		target := strings.TrimSpace(input.Text)
		u, err := url.Parse(target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", invalidf("Subscription content must be an http(s) URL")
		}
		if rec.Filename == "" {
			rec.Filename = "subscription.txt"
		}
		rec.ContentType = "text/plain"
		rec.Size = int64(len(target))
		return target, nil

	default:
		if input.Text == "" {
			return "", invalidf("No content")
		}
		if int64(len(input.Text)) > s.maxUploadBytes {
			return "", invalidf("Too large")
		}
		if rec.Filename == "" {
			rec.Filename = "text.txt"
		}
		if rec.ContentType == "" {
			rec.ContentType = "text/plain"
		}
		rec.Size = int64(len(input.Text))
		return input.Text, nil
	}
}

func (s *shareService) allocateID(ctx context.Context, slug string) (string, error) {
	if slug == "" {
		id, err := GenerateID()
		if err != nil {
			return "", fmt.Errorf("generate id: %w", err)
		}
		return id, nil
	}

	if err := ValidateSlug(slug); err != nil {
		return "", err
	}
	existing, err := s.store.GetMeta(ctx, slug)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return slug, nil
	case err != nil:
		return "", fmt.Errorf("check slug: %w", err)
	case existing.IsExpired(s.now()):
		// The expired holder is overwritten by the new record.
		return slug, nil
	default:
		return "", &ValidationError{Message: "Custom slug already exists", Err: ErrSlugTaken}
	}
}

func (s *shareService) Resolve(ctx context.Context, id string, access AccessInfo) (*Resolved, error) {
	res, err := s.resolve(ctx, id, access)
	appmetrics.Resolves.WithLabelValues(outcome(err)).Inc()
	return res, err
}

func (s *shareService) resolve(ctx context.Context, id string, access AccessInfo) (*Resolved, error) {
	rec, err := s.store.GetMeta(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load meta: %w", err)
	}

	now := s.now()
	if rec.IsExpired(now) {
		if err := s.purge(ctx, id); err != nil {
			s.logger.Warn("failed to delete expired record", zap.String("id", id), zap.Error(err))
		}
		return nil, ErrExpired
	}
	if rec.LimitReached() {
		return nil, ErrLimitReached
	}

	content, err := s.store.GetContent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("metadata without content", zap.String("id", id))
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load content: %w", err)
	}

	rec.DownloadCount++
	rec.AppendAccess(model.AccessLog{
		Timestamp: now.UTC(),
		IP:        access.IP,
		UserAgent: access.UserAgent,
		Country:   access.Country,
		City:      access.City,
	})

	if rec.BurnAfterRead {
		if err := s.purge(ctx, id); err != nil {
			return nil, fmt.Errorf("burn record: %w", err)
		}
	} else if err := s.store.PutMeta(ctx, id, rec); err != nil {
		return nil, fmt.Errorf("persist meta: %w", err)
	}

	s.publish(ctx, rec, access, now)

	s.logger.Debug("content resolved",
		zap.String("id", id),
		zap.Int("download_count", rec.DownloadCount),
		zap.Bool("burned", rec.BurnAfterRead),
	)
	return &Resolved{Record: rec, Content: content, Burned: rec.BurnAfterRead}, nil
}

func (s *shareService) ResolveSubscription(ctx context.Context, id string, access AccessInfo) (*SubscriptionResult, error) {
	res, err := s.Resolve(ctx, id, access)
	if err != nil {
		return nil, err
	}

	if res.Record.Type != model.TypeSubscription || !strings.HasPrefix(res.Content, "http") {
		body, err := res.Bytes()
		if err != nil {
			return nil, err
		}
		return &SubscriptionResult{Record: res.Record, Body: body}, nil
	}

	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher configured", ErrUpstreamUnavailable)
	}
	body, err := s.fetcher.Fetch(ctx, res.Content)
	if err != nil {
		appmetrics.UpstreamFailures.Inc()
		s.logger.Warn("subscription fetch failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return &SubscriptionResult{
		Record:   res.Record,
		Body:     body,
		UserInfo: res.Record.SubscriptionInfo.UserInfoHeader(),
	}, nil
}

func (s *shareService) Metadata(ctx context.Context, id string) (*model.Record, error) {
	rec, err := s.store.GetMeta(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load meta: %w", err)
	}
	return rec, nil
}

// purge removes both keys, attempting the second even if the first fails.
func (s *shareService) purge(ctx context.Context, id string) error {
	return deleteRecord(ctx, s.store, id)
}

func deleteRecord(ctx context.Context, st store.Store, id string) error {
	metaErr := st.DeleteMeta(ctx, id)
	contentErr := st.DeleteContent(ctx, id)
	return errors.Join(metaErr, contentErr)
}

func (s *shareService) publish(ctx context.Context, rec *model.Record, access AccessInfo, at time.Time) {
	if s.publisher == nil {
		return
	}
	event := model.AccessEvent{
		ID:         uuid.New().String(),
		RecordID:   rec.ID,
		RecordType: rec.Type,
		IP:         access.IP,
		UserAgent:  access.UserAgent,
		Country:    access.Country,
		Burned:     rec.BurnAfterRead,
		Timestamp:  at.UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish access event", zap.String("id", rec.ID), zap.Error(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrLimitReached):
		return "limit_reached"
	default:
		return "error"
	}
}
