package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/config"
)

// captureWriter tees the response body, up to limit bytes, while forwarding
// it to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
		cw.buf.Write(b)
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// cachedResponse is the Redis value of one cached GET.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// responseKey hashes method, path and query under prefix.
func responseKey(prefix string, c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%x", prefix, sum[:])
}

// Catalog is a Redis response cache for catalog reads. The responses are the
// same for every caller, so entries are keyed by request line only.
type Catalog struct {
	cfg config.CacheConfig
	rdb *redis.Client
	log *zap.Logger
}

// NewCatalogCache returns a cache that is inert when cfg disables it or rdb
// is nil.
func NewCatalogCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *Catalog {
	return &Catalog{cfg: cfg, rdb: rdb, log: log}
}

func (cc *Catalog) enabled() bool { return cc.cfg.Enabled && cc.rdb != nil }

// Read serves cached 200 responses for GET requests and stores misses.
func (cc *Catalog) Read() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !cc.enabled() {
			return next
		}
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			key := responseKey(cc.cfg.Prefix, c)

			if raw, err := cc.rdb.Get(ctx, key).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(raw, &hit) == nil {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(hit.Status, hit.ContentType, hit.Body)
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cc.cfg.MaxBodyBytes)}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || (cw.limit > 0 && cw.size > cw.limit) {
				return nil
			}
			payload, err := json.Marshal(cachedResponse{
				Status:      cw.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        cw.buf.Bytes(),
			})
			if err == nil {
				_ = cc.rdb.Set(context.Background(), key, payload, cc.cfg.TTL).Err()
			}
			return nil
		}
	}
}

// Invalidate drops every cached catalog response after a successful
// mutation so the next read sees the change.
func (cc *Catalog) Invalidate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !cc.enabled() {
			return next
		}
		return func(c echo.Context) error {
			err := next(c)
			if c.Request().Method == http.MethodGet || err != nil || c.Response().Status >= 400 {
				return err
			}
			cc.Flush(context.Background())
			return nil
		}
	}
}

// Flush deletes all keys under the cache prefix.
func (cc *Catalog) Flush(ctx context.Context) {
	if !cc.enabled() {
		return
	}
	iter := cc.rdb.Scan(ctx, 0, cc.cfg.Prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		cc.log.Warn("catalog cache scan failed", zap.Error(err))
		return
	}
	if len(keys) > 0 {
		if err := cc.rdb.Del(ctx, keys...).Err(); err != nil {
			cc.log.Warn("catalog cache flush failed", zap.Error(err))
		}
	}
}
