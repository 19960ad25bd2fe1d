package model

import (
	"strings"
	"time"
)

// RecordType identifies what a record's content holds.
type RecordType string

const (
	TypeFile         RecordType = "file"
	TypeText         RecordType = "text"
	TypeSubscription RecordType = "subscription"
)

// Valid reports whether t is one of the known record types.
func (t RecordType) Valid() bool {
	switch t {
	case TypeFile, TypeText, TypeSubscription:
		return true
	}
	return false
}

// MaxAccessLogs bounds the access history kept on a record.
const MaxAccessLogs = 50

// SubscriptionInfo carries client-display traffic data for subscription shares.
type SubscriptionInfo struct {
	Name     string `json:"name,omitempty"`
	Expire   string `json:"expire,omitempty"`
	Upload   string `json:"upload,omitempty"`
	Download string `json:"download,omitempty"`
	Total    string `json:"total,omitempty"`
}

// UserInfoHeader renders the subscription-userinfo header value, or "" when
// no traffic field is set.
func (s *SubscriptionInfo) UserInfoHeader() string {
	if s == nil {
		return ""
	}
	parts := make([]string, 0, 4)
	if s.Upload != "" {
		parts = append(parts, "upload="+s.Upload)
	}
	if s.Download != "" {
		parts = append(parts, "download="+s.Download)
	}
	if s.Total != "" {
		parts = append(parts, "total="+s.Total)
	}
	if s.Expire != "" {
		parts = append(parts, "expire="+s.Expire)
	}
	return strings.Join(parts, "; ")
}

// AccessLog is one entry of a record's display-only access history.
type AccessLog struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
}

// Record is the metadata document stored under meta:<id>.
type Record struct {
	ID               string            `json:"id"`
	Type             RecordType        `json:"type"`
	Filename         string            `json:"filename"`
	ContentType      string            `json:"contentType"`
	Size             int64             `json:"size"`
	CreatedAt        time.Time         `json:"createdAt"`
	ExpiresAt        *time.Time        `json:"expiresAt"`
	MaxDownloads     *int              `json:"maxDownloads"`
	DownloadCount    int               `json:"downloadCount"`
	BurnAfterRead    bool              `json:"burnAfterRead"`
	SubscriptionInfo *SubscriptionInfo `json:"subscriptionInfo"`
	AccessLogs       []AccessLog       `json:"accessLogs,omitempty"`
}

// IsExpired reports whether the record's expiry lies strictly before now.
func (r *Record) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// LimitReached reports whether the download allowance is used up.
func (r *Record) LimitReached() bool {
	return r.MaxDownloads != nil && r.DownloadCount >= *r.MaxDownloads
}

// Base64Encoded reports whether the stored content is base64 rather than plain UTF-8.
func (r *Record) Base64Encoded() bool {
	return r.Type == TypeFile
}

// AppendAccess records an access, keeping only the most recent MaxAccessLogs.
func (r *Record) AppendAccess(entry AccessLog) {
	r.AccessLogs = append(r.AccessLogs, entry)
	if over := len(r.AccessLogs) - MaxAccessLogs; over > 0 {
		r.AccessLogs = append([]AccessLog(nil), r.AccessLogs[over:]...)
	}
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		c.ExpiresAt = &t
	}
	if r.MaxDownloads != nil {
		n := *r.MaxDownloads
		c.MaxDownloads = &n
	}
	if r.SubscriptionInfo != nil {
		s := *r.SubscriptionInfo
		c.SubscriptionInfo = &s
	}
	if r.AccessLogs != nil {
		c.AccessLogs = append([]AccessLog(nil), r.AccessLogs...)
	}
	return &c
}
