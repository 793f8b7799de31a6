package middleware

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/url"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/desk-booking/internal/config"
    "github.com/iliyamo/desk-booking/internal/logger"
)

// cachedResponse is what a cache entry holds.
type cachedResponse struct {
    Status      int    `json:"status"`
    ContentType string `json:"content_type"`
    Body        []byte `json:"body"`
}

// captureWriter copies the response body while forwarding it.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    limit  int
    over   bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.over {
        if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
            cw.over = true
            cw.buf.Reset()
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}

// LayoutCache caches GET responses of a unit-scoped route in Redis, keyed
// by the :unit path parameter.  Purge drops a unit's entry after its
// tables change.
type LayoutCache struct {
    cfg config.CacheConfig
    rdb *redis.Client
    log *logger.Logger
}

// NewLayoutCache returns a cache; a nil client or disabled config turns
// every operation into a no-op.
func NewLayoutCache(cfg config.CacheConfig, rdb *redis.Client, log *logger.Logger) *LayoutCache {
    if cfg.TTL <= 0 {
        cfg.TTL = 5 * time.Minute
    }
    return &LayoutCache{cfg: cfg, rdb: rdb, log: log}
}

func (lc *LayoutCache) enabled() bool { return lc != nil && lc.cfg.Enabled && lc.rdb != nil }

func (lc *LayoutCache) key(unit string) string {
    return fmt.Sprintf("%s:unit:%s", lc.cfg.Prefix, url.PathEscape(unit))
}

// Middleware serves hits from Redis and stores successful misses.
func (lc *LayoutCache) Middleware() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        if !lc.enabled() {
            return next
        }
        return func(c echo.Context) error {
            if c.Request().Method != http.MethodGet {
                return next(c)
            }
            ctx := c.Request().Context()
            key := lc.key(c.Param("unit"))

            if raw, err := lc.rdb.Get(ctx, key).Bytes(); err == nil {
                var hit cachedResponse
                if json.Unmarshal(raw, &hit) == nil {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(hit.Status, hit.ContentType, hit.Body)
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: lc.cfg.MaxBodyBytes}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.over {
                return nil
            }
            entry, err := json.Marshal(cachedResponse{
                Status:      cw.status,
                ContentType: c.Response().Header().Get(echo.HeaderContentType),
                Body:        cw.buf.Bytes(),
            })
            if err != nil {
                return nil
            }
            if err := lc.rdb.Set(context.WithoutCancel(ctx), key, entry, lc.cfg.TTL).Err(); err != nil {
                lc.log.Warn("CACHE", fmt.Sprintf("store %s failed: %v", key, err))
            }
            return nil
        }
    }
}

// Purge removes the cached layout of unit.
func (lc *LayoutCache) Purge(ctx context.Context, unit string) {
    if !lc.enabled() {
        return
    }
    if err := lc.rdb.Del(ctx, lc.key(unit)).Err(); err != nil {
        lc.log.Warn("CACHE", fmt.Sprintf("purge unit %s failed: %v", unit, err))
    }
}

// PurgeAll removes every cached layout.  Used when a table is removed by
// id and its unit is not known to the caller.
func (lc *LayoutCache) PurgeAll(ctx context.Context) {
    if !lc.enabled() {
        return
    }
    iter := lc.rdb.Scan(ctx, 0, lc.cfg.Prefix+":unit:*", 100).Iterator()
    var keys []string
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
    }
    if err := iter.Err(); err != nil {
        lc.log.Warn("CACHE", fmt.Sprintf("scan layouts failed: %v", err))
        return
    }
    if len(keys) > 0 {
        _ = lc.rdb.Del(ctx, keys...).Err()
    }
}
