package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"cockpit/internal/types"
)

var (
	bucketThreadMeta    = []byte("thread_meta")
	bucketApprovalRules = []byte("approval_rules")
	bucketBookmarks     = []byte("bookmarks")
	bucketLastActive    = []byte("last_active")
)

// BoltRepository stores overlays in a single bbolt file. Keys are
// "<workspaceID>/<threadID>" (plus "/<itemID>" for bookmarks and a rule
// counter suffix for approval rules); values are JSON.
type BoltRepository struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create overlay dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open overlay db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketThreadMeta, bucketApprovalRules, bucketBookmarks, bucketLastActive} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init overlay buckets: %w", err)
	}
	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *BoltRepository) SaveThreadMeta(meta *types.ThreadMeta) error {
	if meta == nil || meta.ThreadID == "" {
		return fmt.Errorf("thread meta requires a thread id")
	}
	key := scopedKey(meta.WorkspaceID, meta.ThreadID)
	return r.put(bucketThreadMeta, key, meta)
}

func (r *BoltRepository) LoadThreadMeta(workspaceID string) ([]*types.ThreadMeta, error) {
	var out []*types.ThreadMeta
	err := r.scan(bucketThreadMeta, workspaceID, func(value []byte) error {
		meta := &types.ThreadMeta{}
		if err := json.Unmarshal(value, meta); err != nil {
			return nil // skip corrupt entries
		}
		out = append(out, meta)
		return nil
	})
	return out, err
}

func (r *BoltRepository) DeleteThreadMeta(workspaceID, threadID string) error {
	return r.delete(bucketThreadMeta, scopedKey(workspaceID, threadID))
}

func (r *BoltRepository) SaveApprovalRule(rule *types.ApprovalRule) error {
	if rule == nil || len(rule.Tokens) == 0 {
		return fmt.Errorf("approval rule requires tokens")
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketApprovalRules)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := scopedKey(rule.WorkspaceID, fmt.Sprintf("rule-%08d", seq))
		value, err := json.Marshal(rule)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), value)
	})
}

func (r *BoltRepository) LoadApprovalRules(workspaceID string) ([]*types.ApprovalRule, error) {
	var out []*types.ApprovalRule
	err := r.scan(bucketApprovalRules, workspaceID, func(value []byte) error {
		rule := &types.ApprovalRule{}
		if err := json.Unmarshal(value, rule); err != nil {
			return nil
		}
		out = append(out, rule)
		return nil
	})
	return out, err
}

func (r *BoltRepository) DeleteApprovalRules(workspaceID string) error {
	prefix := []byte(workspaceID + "/")
	return r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketApprovalRules)
		cursor := bucket.Cursor()
		var keys [][]byte
		for k, _ := cursor.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = cursor.Next() {
			keys = append(keys, append([]byte{}, k...))
		}
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BoltRepository) SaveBookmark(bookmark *types.Bookmark) error {
	if bookmark == nil || bookmark.ThreadID == "" || bookmark.ItemID == "" {
		return fmt.Errorf("bookmark requires thread and item ids")
	}
	key := scopedKey(bookmark.WorkspaceID, bookmark.ThreadID) + "/" + bookmark.ItemID
	return r.put(bucketBookmarks, key, bookmark)
}

func (r *BoltRepository) LoadBookmarks(workspaceID string) ([]*types.Bookmark, error) {
	var out []*types.Bookmark
	err := r.scan(bucketBookmarks, workspaceID, func(value []byte) error {
		bookmark := &types.Bookmark{}
		if err := json.Unmarshal(value, bookmark); err != nil {
			return nil
		}
		out = append(out, bookmark)
		return nil
	})
	return out, err
}

func (r *BoltRepository) DeleteBookmark(workspaceID, threadID, itemID string) error {
	return r.delete(bucketBookmarks, scopedKey(workspaceID, threadID)+"/"+itemID)
}

func (r *BoltRepository) SaveLastActiveThread(workspaceID, threadID string) error {
	if workspaceID == "" {
		return fmt.Errorf("last-active requires a workspace id")
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketLastActive)
		if threadID == "" {
			return bucket.Delete([]byte(workspaceID))
		}
		return bucket.Put([]byte(workspaceID), []byte(threadID))
	})
}

func (r *BoltRepository) LoadLastActiveThread(workspaceID string) (string, error) {
	var threadID string
	err := r.db.View(func(tx *bolt.Tx) error {
		threadID = string(tx.Bucket(bucketLastActive).Get([]byte(workspaceID)))
		return nil
	})
	return threadID, err
}

func (r *BoltRepository) put(bucket []byte, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), encoded)
	})
}

func (r *BoltRepository) delete(bucket []byte, key string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// scan visits every value under workspaceID's key prefix. An empty
// workspace id visits the whole bucket.
func (r *BoltRepository) scan(bucket []byte, workspaceID string, visit func(value []byte) error) error {
	return r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if workspaceID == "" {
			return b.ForEach(func(_, v []byte) error { return visit(v) })
		}
		prefix := []byte(workspaceID + "/")
		cursor := b.Cursor()
		for k, v := cursor.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = cursor.Next() {
			if err := visit(v); err != nil {
				return err
			}
		}
		return nil
	})
}

func scopedKey(workspaceID, id string) string {
	return workspaceID + "/" + id
}
