package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"a55pay-sdk/models"
	"a55pay-sdk/utils"
)

type RateLimiter struct {
	client *redis.Client
}

// RateLimitConfig representa a configuração de rate limiting
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Message  string
}

// Fluxos de pagamento são mais restritos que os relays de eventos
var defaultConfigs = map[string]RateLimitConfig{
	"/api/pay": {
		Requests: 10,
		Window:   time.Minute * 5,
		Message:  "Too many payment attempts. Please wait 5 minutes.",
	},
	"/api/pay-v2": {
		Requests: 10,
		Window:   time.Minute * 5,
		Message:  "Too many payment attempts. Please wait 5 minutes.",
	},
	"/api/checkout": {
		Requests: 20,
		Window:   time.Minute * 5,
		Message:  "Too many checkout attempts. Please wait 5 minutes.",
	},
	"/api/messages": {
		Requests: 300,
		Window:   time.Minute,
		Message:  "Too many relayed messages.",
	},
	"/api/provider-events": {
		Requests: 300,
		Window:   time.Minute,
		Message:  "Too many relayed provider events.",
	},
	"default": {
		Requests: 60,
		Window:   time.Minute,
		Message:  "Rate limit exceeded. Please slow down your requests.",
	},
}

const rateLimitScript = `
	local key = KEYS[1]
	local window_start = ARGV[1]
	local limit = tonumber(ARGV[2])
	local current_time = ARGV[3]
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start - 1)

	local current_count = redis.call('ZCARD', key)

	if current_count < limit then
		redis.call('ZADD', key, current_time, member)
		redis.call('EXPIRE', key, 3600)
		return {1, limit - current_count - 1}
	else
		return {0, 0}
	end
`

func NewRateLimiter(redisURL string) (*RateLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL for rate limiter: %v", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis for rate limiting: %v", err)
	}

	return &RateLimiter{client: client}, nil
}

// NewRateLimiterWithClient shares an existing Redis client.
func NewRateLimiterWithClient(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

func (rl *RateLimiter) RateLimitMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			config := ConfigForEndpoint(r.URL.Path)
			key := RateLimitKey(r)

			allowed, remaining, resetTime, err := rl.checkRateLimit(r.Context(), key, config)
			if err != nil {
				// Em caso de erro, permitir o request mas logar
				log.Printf("Rate limit check error: %v", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				log.Printf("Rate limit exceeded for key: %s, endpoint: %s", key, r.URL.Path)
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(resetTime).Seconds()), 10))
				utils.SendJSON(w, http.StatusTooManyRequests, models.APIResponse{
					Status:  "error",
					Message: config.Message,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ConfigForEndpoint returns the limit that applies to path.
func ConfigForEndpoint(path string) RateLimitConfig {
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	if config, exists := defaultConfigs[path]; exists {
		return config
	}

	if strings.HasPrefix(path, "/api/flows/") && strings.HasSuffix(path, "/start-payment") {
		return defaultConfigs["/api/checkout"]
	}

	if strings.HasPrefix(path, "/api/flows/") || path == "/api/document" {
		// polling do shim
		return RateLimitConfig{
			Requests: 600,
			Window:   time.Minute,
			Message:  "Too many polling requests. Please slow down.",
		}
	}

	return defaultConfigs["default"]
}

// RateLimitKey identifies the caller: relays by their token, everything
// else by client IP and path.
func RateLimitKey(r *http.Request) string {
	ip := ClientIP(r)
	endpoint := r.URL.Path

	if endpoint == "/api/messages" || endpoint == "/api/provider-events" || endpoint == "/api/surfaces/close" {
		authHeader := r.Header.Get("Authorization")
		if len(authHeader) > 20 {
			return fmt.Sprintf("rate_limit:relay:%s:%s", ip, authHeader[len(authHeader)-10:])
		}
	}

	return fmt.Sprintf("rate_limit:default:%s:%s", ip, endpoint)
}

// ClientIP extrai o IP real do cliente
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		return strings.TrimSpace(ips[0])
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" { // Cloudflare
		return ip
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func (rl *RateLimiter) checkRateLimit(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, resetTime time.Time, err error) {
	now := time.Now()
	windowStart := now.Truncate(config.Window)
	windowEnd := windowStart.Add(config.Window)

	result, err := rl.client.Eval(ctx, rateLimitScript, []string{key},
		windowStart.Unix(), config.Requests, now.Unix(), now.UnixNano()).Result()
	if err != nil {
		return false, 0, time.Time{}, err
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 2 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected redis result format")
	}

	allowedInt, ok1 := resultSlice[0].(int64)
	remainingInt, ok2 := resultSlice[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, time.Time{}, fmt.Errorf("failed to parse redis result")
	}

	return allowedInt == 1, int(remainingInt), windowEnd, nil
}

// SecurityHeadersMiddleware adiciona headers de segurança
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) Close() error {
	return rl.client.Close()
}
