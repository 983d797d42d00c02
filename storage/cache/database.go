// Copyright 2021 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorse-io/cinecluster/storage"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

// Database caches serialized recommendation results.
type Database interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Purge(ctx context.Context) error
	Close() error
}

// RecommendKey is the cache key of the top n recommendations of a user computed
// by the model identified by version.
func RecommendKey(version string, userId int64, n int) string {
	return fmt.Sprintf("recommend/%s/%d/%d", version, userId, n)
}

// Open a cache. An empty path opens an in-process cache holding at most size
// entries; redis:// and rediss:// open a Redis cache. Entries expire after ttl.
func Open(path string, size int, ttl time.Duration) (Database, error) {
	if path == "" {
		return NewLocal(size, ttl), nil
	}
	if strings.HasPrefix(path, storage.RedisPrefix) || strings.HasPrefix(path, storage.RedissPrefix) {
		opt, err := redis.ParseURL(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return &Redis{client: redis.NewClient(opt), ttl: ttl, prefix: "cinecluster/"}, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
