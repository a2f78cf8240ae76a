package collyfetcher

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// Robots modes.
const (
	RobotsModeCoarse = "coarse"
	RobotsModePath   = "path"
)

const (
	defaultRobotsTimeout = 5 * time.Second
	defaultRobotsTTL     = time.Hour
	robotsBodyLimit      = 1 << 20
	botToken             = "protecliter"
)

// RobotsConfig controls robots.txt checking.
type RobotsConfig struct {
	UserAgent string
	Timeout   time.Duration
	CacheTTL  time.Duration
	Mode      string
}

// RobotsChecker answers whether an origin may be crawled.
type RobotsChecker struct {
	cfg    RobotsConfig
	client *http.Client
	cache  *gocache.Cache
	logger *zap.Logger
}

type robotsEntry struct {
	// blocked is the coarse verdict for the whole origin.
	blocked bool
	data    *robotstxt.RobotsData
}

// NewRobotsChecker builds a checker with a per-origin verdict cache.
func NewRobotsChecker(cfg RobotsConfig, logger *zap.Logger) *RobotsChecker {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRobotsTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultRobotsTTL
	}
	if cfg.Mode == "" {
		cfg.Mode = RobotsModeCoarse
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsChecker{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger: logger.Named("robots"),
	}
}

// Allowed reports whether pageURL may be fetched. Any failure to obtain
// robots.txt allows the fetch.
func (r *RobotsChecker) Allowed(ctx context.Context, pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return true
	}
	origin := parsed.Scheme + "://" + parsed.Host
	entry := r.load(ctx, origin)
	if r.cfg.Mode == RobotsModePath && entry.data != nil {
		group := entry.data.FindGroup(r.cfg.UserAgent)
		if group == nil {
			return true
		}
		path := parsed.EscapedPath()
		if path == "" {
			path = "/"
		}
		return group.Test(path)
	}
	return !entry.blocked
}

// CheckOrigin reports whether origin as a whole may be crawled.
func (r *RobotsChecker) CheckOrigin(ctx context.Context, origin string) bool {
	return !r.load(ctx, strings.TrimRight(origin, "/")).blocked
}

func (r *RobotsChecker) load(ctx context.Context, origin string) robotsEntry {
	key := strings.ToLower(origin)
	if cached, ok := r.cache.Get(key); ok {
		if entry, ok := cached.(robotsEntry); ok {
			return entry
		}
	}
	body, err := r.fetch(ctx, origin)
	if err != nil {
		// Transient failures are not cached.
		r.logger.Debug("robots fetch failed; allowing", zap.String("origin", origin), zap.Error(err))
		return robotsEntry{}
	}
	entry := robotsEntry{}
	if body != nil {
		entry.blocked = !CoarseAllowed(body)
		if r.cfg.Mode == RobotsModePath {
			data, perr := robotstxt.FromBytes(body)
			if perr != nil {
				r.logger.Debug("robots parse failed", zap.String("origin", origin), zap.Error(perr))
			} else {
				entry.data = data
			}
		}
	}
	r.cache.SetDefault(key, entry)
	return entry
}

// fetch returns nil body without error for non-success statuses.
func (r *RobotsChecker) fetch(ctx context.Context, origin string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	return body, nil
}

// CoarseAllowed applies the origin-wide policy: a Disallow of "/" or "/*"
// inside a block for "*" or this crawler denies the whole origin.
func CoarseAllowed(body []byte) bool {
	ours := false
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if agent, ok := strings.CutPrefix(line, "user-agent:"); ok {
			agent = strings.TrimSpace(agent)
			ours = agent == "*" || strings.Contains(agent, botToken)
		}
		if !ours {
			continue
		}
		if path, ok := strings.CutPrefix(line, "disallow:"); ok {
			if path = strings.TrimSpace(path); path == "/" || path == "/*" {
				return false
			}
		}
	}
	return true
}
