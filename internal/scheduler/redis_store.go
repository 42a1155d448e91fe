package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared backend for multi-worker deployments (spec.md
// §4.3: "a shared store keyed by host in an external cache"). All state
// mutation happens inside a single Lua script so the read-modify-write is
// atomic across concurrent callers — the same EVAL-script idiom the
// etalazz-vsa ratelimiter persistence package uses for its idempotent
// counter updates, adapted here from a commit-marker shape to a bucket
// shape (rate, failure streak, success streak, last-acquire timestamp).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func bucketKey(host string) string {
	return fmt.Sprintf("foiacquire:scheduler:%s", host)
}

// nextDelayScript reads the bucket hash, computes the delay the way
// LocalStore.NextDelay does, and atomically advances last_acquire by that
// delay so concurrent callers against the same host serialize through
// Redis rather than through a local mutex.
const nextDelayScript = `
local key = KEYS[1]
local base_rate = tonumber(ARGV[1])
local max_delay_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

local rate = tonumber(redis.call('HGET', key, 'rate'))
if not rate then rate = base_rate end
local failures = tonumber(redis.call('HGET', key, 'failures')) or 0
local last_acquire = tonumber(redis.call('HGET', key, 'last_acquire')) or 0

local min_interval_ms = 1000.0 / rate
local elapsed = now_ms - last_acquire
local delay = min_interval_ms - elapsed
if delay < 0 then delay = 0 end

if failures > 0 then
  local backoff = min_interval_ms * math.pow(2, failures - 1)
  if backoff > max_delay_ms then backoff = max_delay_ms end
  delay = delay + backoff
end
if delay > max_delay_ms then delay = max_delay_ms end

redis.call('HSET', key, 'last_acquire', now_ms + delay)
redis.call('HSETNX', key, 'rate', base_rate)
redis.call('EXPIRE', key, 86400)
return tostring(delay)
`

// NextDelay evaluates nextDelayScript against host's bucket hash.
func (r *RedisStore) NextDelay(ctx context.Context, host string, cfg Config) (time.Duration, error) {
	now := time.Now().UnixMilli()
	res, err := r.client.Eval(ctx, nextDelayScript, []string{bucketKey(host)},
		cfg.BaseRate, cfg.MaxDelay.Milliseconds(), now).Result()
	if err != nil {
		return 0, fmt.Errorf("scheduler: redis next delay: %w", err)
	}
	var ms float64
	if _, err := fmt.Sscanf(fmt.Sprint(res), "%f", &ms); err != nil {
		return 0, fmt.Errorf("scheduler: parse redis delay %v: %w", res, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// reportOutcomeScript applies the additive-increase / multiplicative-
// decrease rule atomically, mirroring LocalStore.ReportOutcome: the
// failure streak only clears once three consecutive successes land.
const reportOutcomeScript = `
local key = KEYS[1]
local outcome = ARGV[1]
local base_rate = tonumber(ARGV[2])

local rate = tonumber(redis.call('HGET', key, 'rate'))
if not rate then rate = base_rate end

if outcome == 'success' then
  local successes = (tonumber(redis.call('HGET', key, 'successes')) or 0) + 1
  redis.call('HSET', key, 'successes', successes)
  if successes >= 3 then
    redis.call('HSET', key, 'failures', 0)
  end
  local new_rate = rate + rate * 0.1 + 0.01
  if new_rate > base_rate then new_rate = base_rate end
  redis.call('HSET', key, 'rate', new_rate)
elseif outcome == 'failure' then
  redis.call('HSET', key, 'successes', 0)
  local failures = (tonumber(redis.call('HGET', key, 'failures')) or 0) + 1
  redis.call('HSET', key, 'failures', failures)
  local new_rate = rate / 2
  if new_rate < 0.01 then new_rate = 0.01 end
  redis.call('HSET', key, 'rate', new_rate)
end
redis.call('EXPIRE', key, 86400)
return 1
`

// ReportOutcome evaluates reportOutcomeScript against host's bucket hash.
func (r *RedisStore) ReportOutcome(ctx context.Context, host string, outcome Outcome, cfg Config) error {
	var outcomeArg string
	switch outcome {
	case OutcomeSuccess:
		outcomeArg = "success"
	case OutcomeRetryableFailure:
		outcomeArg = "failure"
	default:
		outcomeArg = "neutral"
	}
	if err := r.client.Eval(ctx, reportOutcomeScript, []string{bucketKey(host)}, outcomeArg, cfg.BaseRate).Err(); err != nil {
		return fmt.Errorf("scheduler: redis report outcome: %w", err)
	}
	return nil
}

// retryAfterScript floors a host's last_acquire field at now+retryAfter,
// mirroring LocalStore.ReportRetryAfter's max-with-existing-floor logic.
const retryAfterScript = `
local key = KEYS[1]
local floor_ms = tonumber(ARGV[1])

local last_acquire = tonumber(redis.call('HGET', key, 'last_acquire')) or 0
if floor_ms > last_acquire then
  redis.call('HSET', key, 'last_acquire', floor_ms)
end
redis.call('EXPIRE', key, 86400)
return 1
`

// ReportRetryAfter evaluates retryAfterScript against host's bucket hash.
func (r *RedisStore) ReportRetryAfter(ctx context.Context, host string, retryAfter time.Duration, _ Config) error {
	floorMs := time.Now().Add(retryAfter).UnixMilli()
	if err := r.client.Eval(ctx, retryAfterScript, []string{bucketKey(host)}, floorMs).Err(); err != nil {
		return fmt.Errorf("scheduler: redis report retry-after: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
var _ Store = (*LocalStore)(nil)
