// Copyright 2025 gorse Project Authors
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
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Local is an in-process cache with capacity and expiration.
type Local struct {
	cache *ttlcache.Cache[string, []byte]
}

func NewLocal(size int, ttl time.Duration) *Local {
	options := []ttlcache.Option[string, []byte]{
		ttlcache.WithTTL[string, []byte](ttl),
	}
	if size > 0 {
		options = append(options, ttlcache.WithCapacity[string, []byte](uint64(size)))
	}
	c := ttlcache.New[string, []byte](options...)
	go c.Start()
	return &Local{cache: c}
}

func (l *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := l.cache.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (l *Local) Set(_ context.Context, key string, value []byte) error {
	l.cache.Set(key, value, ttlcache.DefaultTTL)
	return nil
}

func (l *Local) Purge(_ context.Context) error {
	l.cache.DeleteAll()
	return nil
}

func (l *Local) Close() error {
	l.cache.Stop()
	return nil
}
