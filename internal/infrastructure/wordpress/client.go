package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ZipPicks/internal/config"
	"ZipPicks/internal/domain"
	"ZipPicks/internal/ports"
	"ZipPicks/internal/retry"
)

const (
	masterCriticPath = "/master_critic_list"
	postsPath        = "/posts"
	lookupPath       = "/wp-json/zippicks/v1/vibes/lookup"
)

// Client publishes validated drafts to a WordPress backend and resolves
// vibe slugs to taxonomy-term IDs. All outbound calls share one rate
// limiter and one retry policy, both injected at construction.
type Client struct {
	siteURL       string
	apiEndpoint   string
	defaultStatus string
	authUser      string
	authPass      string
	httpClient    *http.Client
	limiter       *rate.Limiter
	policy        retry.Policy
	logger        *slog.Logger
}

var _ ports.Publisher = (*Client)(nil)

// NewClient validates the site URL and wires auth from configuration.
// Auth type "basic" uses username/password; "application" sends the API
// key as an application password.
func NewClient(cfg config.WordPressConfig, logger *slog.Logger) (*Client, error) {
	siteURL, err := sanitizeSiteURL(cfg.SiteURL)
	if err != nil {
		return nil, err
	}

	user, pass := "", ""
	switch cfg.AuthType {
	case "basic":
		user, pass = cfg.Username, cfg.Password
	default:
		user, pass = "api", cfg.APIKey
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	callsPerSecond := cfg.CallsPerSecond
	if callsPerSecond <= 0 {
		callsPerSecond = 10
	}

	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	baseDelay := time.Duration(cfg.RetryDelayMS) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	return &Client{
		siteURL:       siteURL,
		apiEndpoint:   cfg.APIEndpoint,
		defaultStatus: defaultString(cfg.DefaultStatus, "draft"),
		authUser:      user,
		authPass:      pass,
		httpClient:    &http.Client{Timeout: timeout},
		limiter:       rate.NewLimiter(rate.Limit(callsPerSecond), 1),
		policy:        retry.Policy{MaxAttempts: attempts, BaseDelay: baseDelay},
		logger:        logger,
	}, nil
}

// Publish posts one validated draft and returns the created post ID.
// A missing custom post type endpoint falls back to the regular posts
// endpoint. Failures come back as PublishError.
func (c *Client) Publish(ctx context.Context, draft domain.ValidatedDraft) (int64, error) {
	vibeIDs, missing, err := c.LookupVibeIDs(ctx, draft.VibeSlugs)
	if err != nil {
		// A backend that rejects the lookup outright is fatal; mere
		// transport trouble downgrades to publishing without term links.
		var pubErr *domain.PublishError
		if errors.As(err, &pubErr) {
			return 0, err
		}
		c.warn("vibe lookup unreachable, publishing without vibe terms", "error", err)
		vibeIDs = nil
	}
	if len(missing) > 0 {
		c.warn("vibe slugs unknown to backend", "missing", missing)
	}

	payload, err := json.Marshal(c.postPayload(draft, vibeIDs))
	if err != nil {
		return 0, &domain.PublishError{Reason: "marshal post payload", Err: err}
	}

	var postID int64
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		id, callErr := c.createPost(ctx, payload)
		if callErr != nil {
			return callErr
		}
		postID = id
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.info("published draft", "task", draft.Key.String(), "post_id", postID, "vibe_ids", len(vibeIDs))
	return postID, nil
}

func (c *Client) createPost(ctx context.Context, payload []byte) (int64, error) {
	resp, err := c.post(ctx, c.siteURL+c.apiEndpoint+masterCriticPath, payload)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		c.info("master critic endpoint absent, using posts endpoint")
		resp, err = c.post(ctx, c.siteURL+c.apiEndpoint+postsPath, payload)
		if err != nil {
			return 0, err
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		pubErr := &domain.PublishError{StatusCode: resp.StatusCode, Reason: strings.TrimSpace(string(body))}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return 0, retry.Permanent(pubErr)
		}
		return 0, pubErr
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == 0 {
		return 0, retry.Permanent(&domain.PublishError{Reason: "response carries no post id", Err: err})
	}
	return created.ID, nil
}

// LookupVibeIDs resolves vibe slugs to taxonomy-term IDs via the
// companion endpoint, returning resolved IDs and any slugs not found.
func (c *Client) LookupVibeIDs(ctx context.Context, slugs []string) ([]int64, []string, error) {
	if len(slugs) == 0 {
		return nil, nil, nil
	}

	payload, err := json.Marshal(map[string]any{"slugs": slugs})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal lookup payload: %w", err)
	}

	var ids []int64
	var missing []string
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		resp, callErr := c.post(ctx, c.siteURL+lookupPath, payload)
		if callErr != nil {
			return callErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			lookupErr := fmt.Errorf("vibe lookup status %s: %s", resp.Status, strings.TrimSpace(string(body)))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(lookupErr)
			}
			return lookupErr
		}

		var parsed struct {
			Success bool `json:"success"`
			Data    struct {
				VibeIDs      []int64  `json:"vibe_ids"`
				MissingSlugs []string `json:"missing_slugs"`
			} `json:"data"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
			return retry.Permanent(&domain.PublishError{Reason: "undecodable vibe lookup response", Err: err})
		}
		if !parsed.Success {
			return retry.Permanent(&domain.PublishError{Reason: "vibe lookup rejected the request"})
		}

		ids = parsed.Data.VibeIDs
		missing = parsed.Data.MissingSlugs
		return nil
	})
	if err != nil {
		return nil, slugs, err
	}
	return ids, missing, nil
}

// post waits on the shared rate limiter, then issues one authenticated
// JSON request. Callers block when the limit is reached; calls are
// never dropped.
func (c *Client) post(ctx context.Context, endpoint string, payload []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authUser != "" || c.authPass != "" {
		req.SetBasicAuth(c.authUser, c.authPass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func (c *Client) postPayload(draft domain.ValidatedDraft, vibeIDs []int64) map[string]any {
	topic := draft.VibeTitle + " Restaurants"
	restaurantsJSON, _ := json.Marshal(draft.Entries)

	return map[string]any{
		"post_type":    "master_critic_list",
		"post_title":   Title(draft),
		"post_content": excerptHTML(draft),
		"post_status":  c.defaultStatus,
		"meta_input": map[string]any{
			"_mc_topic":           topic,
			"_mc_location":        draft.CityTitle,
			"_mc_restaurants":     string(restaurantsJSON),
			"_mc_vibe_ids":        vibeIDs,
			"_mc_category":        topic,
			"city_slug":           draft.Key.City,
			"dish_slug":           draft.Key.Vibe,
			"_mc_prompt_version":  draft.Key.PromptVersion,
			"_mc_generation_date": draft.ValidatedAt.Format(time.RFC3339),
		},
	}
}

// Title renders the canonical list headline.
func Title(draft domain.ValidatedDraft) string {
	return fmt.Sprintf("Top 10 %s Restaurants in %s", draft.VibeTitle, draft.CityTitle)
}

// excerptHTML builds a short ordered-list body; the backend enriches
// the full layout from the structured meta fields.
func excerptHTML(draft domain.ValidatedDraft) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<p>Discover the top 10 %s restaurants in %s, curated for quality, atmosphere, and local favor.</p>\n<ol>\n",
		html.EscapeString(strings.ToLower(draft.VibeTitle)), html.EscapeString(draft.CityTitle))
	for _, entry := range draft.Entries {
		fmt.Fprintf(&sb, "<li>%s</li>\n", html.EscapeString(entry.Name))
	}
	sb.WriteString("</ol>\n")
	return sb.String()
}

func sanitizeSiteURL(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "", fmt.Errorf("site URL cannot be empty")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", fmt.Errorf("site URL must start with http:// or https://")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid site URL %q", raw)
	}
	if strings.Contains(raw, "..") {
		return "", fmt.Errorf("site URL contains suspicious characters")
	}
	return raw, nil
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	_ = resp.Body.Close()
}

func (c *Client) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
