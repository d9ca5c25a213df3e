package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// ErrFileNotFound は指定されたファイルIDが存在しない場合に返される
var ErrFileNotFound = errors.New("Invalid or missing file")

// StoredFile はアップロード済みファイルのメタデータ
type StoredFile struct {
	ID         string
	FileName   string
	UserID     string
	UploadedAt time.Time
	Size       int
}

type storedEntry struct {
	meta       StoredFile
	compressed []byte
}

// UploadStore はアップロードされたファイルをsnappy圧縮してメモリに保持する
type UploadStore struct {
	mu        sync.RWMutex
	files     map[string]*storedEntry
	ttl       time.Duration
	now       func() time.Time
	scheduler *gocron.Scheduler
}

// NewUploadStore は新しいUploadStoreを生成します。ttlが0以下の場合は期限切れ削除を行いません。
func NewUploadStore(ttl time.Duration) *UploadStore {
	return &UploadStore{
		files: make(map[string]*storedEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Save はファイルを保存し、新しいファイルIDを返す
func (s *UploadStore) Save(fileName, userID string, data []byte) StoredFile {
	meta := StoredFile{
		ID:         uuid.New().String(),
		FileName:   fileName,
		UserID:     userID,
		UploadedAt: s.now(),
		Size:       len(data),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[meta.ID] = &storedEntry{
		meta:       meta,
		compressed: snappy.Encode(nil, data),
	}
	return meta
}

// Get はファイルIDからメタデータと元のバイト列を取り出す
func (s *UploadStore) Get(id string) (StoredFile, []byte, error) {
	s.mu.RLock()
	entry, ok := s.files[id]
	s.mu.RUnlock()
	if !ok {
		return StoredFile{}, nil, ErrFileNotFound
	}

	data, err := snappy.Decode(nil, entry.compressed)
	if err != nil {
		return StoredFile{}, nil, fmt.Errorf("保存済みファイルの展開に失敗: %w", err)
	}
	return entry.meta, data, nil
}

// Delete はファイルを削除する
func (s *UploadStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
}

// Len は保持しているファイル数を返す
func (s *UploadStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// PurgeExpired はTTLを超えたファイルを削除し、削除件数を返す
func (s *UploadStore) PurgeExpired() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.files {
		if entry.meta.UploadedAt.Before(cutoff) {
			delete(s.files, id)
			removed++
		}
	}
	return removed
}

// StartCleanup は期限切れファイルの定期削除を開始する
func (s *UploadStore) StartCleanup(interval time.Duration) error {
	if s.ttl <= 0 {
		return nil
	}
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(interval).Do(func() {
		if n := s.PurgeExpired(); n > 0 {
			log.Printf("🧹 [upload] 期限切れファイルを%d件削除しました", n)
		}
	})
	if err != nil {
		return fmt.Errorf("クリーンアップジョブの登録に失敗: %w", err)
	}
	scheduler.StartAsync()

	s.mu.Lock()
	s.scheduler = scheduler
	s.mu.Unlock()
	return nil
}

// StopCleanup は定期削除を停止する
func (s *UploadStore) StopCleanup() {
	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()
	if scheduler != nil {
		scheduler.Stop()
	}
}
