// Package qiniu uploads files to a Qiniu Kodo bucket.
package qiniu

import (
	"context"
	"errors"
	"fmt"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"
)

// codeNoSuchEntry is the Kodo status for a missing key.
const codeNoSuchEntry = 612

// Store is what the action needs from a bucket.
type Store interface {
	Upload(ctx context.Context, localPath, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Bucket is a Store backed by the Qiniu SDK.
type Bucket struct {
	name     string
	mac      *qbox.Mac
	uploader *storage.FormUploader
	manager  *storage.BucketManager
}

// NewBucket returns a Bucket authenticated with accessKey and secretKey.
func NewBucket(accessKey, secretKey, bucket string) *Bucket {
	mac := qbox.NewMac(accessKey, secretKey)
	cfg := &storage.Config{UseHTTPS: true}
	return &Bucket{
		name:     bucket,
		mac:      mac,
		uploader: storage.NewFormUploader(cfg),
		manager:  storage.NewBucketManager(mac, cfg),
	}
}

// Upload puts localPath at key with a token scoped to that key.
func (b *Bucket) Upload(ctx context.Context, localPath, key string) error {
	policy := storage.PutPolicy{Scope: b.name + ":" + key}
	token := policy.UploadToken(b.mac)

	var ret storage.PutRet
	if err := b.uploader.PutFile(ctx, &ret, token, key, localPath, &storage.PutExtra{}); err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is already present in the bucket.
func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.manager.Stat(b.name, key)
	if err == nil {
		return true, nil
	}
	var coded interface{ HttpCode() int }
	if errors.As(err, &coded) && coded.HttpCode() == codeNoSuchEntry {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}
