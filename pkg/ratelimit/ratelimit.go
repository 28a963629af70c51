// Package ratelimit counts attempts per identity over fixed windows and
// answers whether a request must be turned away.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// KeyStrategy selects which parts of the caller identity a rule counts by.
type KeyStrategy int

const (
	ByIP KeyStrategy = iota + 1
	ByIPAndAgent
	ByField
)

func (k KeyStrategy) String() string {
	switch k {
	case ByIP:
		return "ip"
	case ByIPAndAgent:
		return "ipua"
	case ByField:
		return "field"
	default:
		return "unknown"
	}
}

type Rule struct {
	Name   string
	Key    KeyStrategy
	Limit  int
	Window time.Duration
}

// Identity is everything a rule may key on. Field usually holds the username.
type Identity struct {
	IP        string
	UserAgent string
	Field     string
}

type Result struct {
	Limited    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the remaining wait up to whole seconds.
func (r Result) RetryAfterSeconds() int {
	if !r.Limited || r.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(r.RetryAfter.Seconds()))
}

// Counter increments the fixed-window counter stored under key. The window
// starts on the first hit. It returns the post-increment count and the time
// left until the window resets.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type Limiter struct {
	name    string
	rules   []Rule
	counter Counter
}

func New(name string, counter Counter, rules ...Rule) *Limiter {
	return &Limiter{name: name, rules: rules, counter: counter}
}

func (l *Limiter) Name() string {
	return l.name
}

func (l *Limiter) Rules() []Rule {
	return append([]Rule(nil), l.rules...)
}

// Check records one attempt against every rule and reports whether any rule
// is now over its limit. RetryAfter is the soonest reset among the rules that
// are over.
func (l *Limiter) Check(ctx context.Context, id Identity) (Result, error) {
	var result Result
	for _, rule := range l.rules {
		count, ttl, err := l.counter.Increment(ctx, l.key(rule, id), rule.Window)
		if err != nil {
			return Result{}, fmt.Errorf("rate limiter %s/%s: %w", l.name, rule.Name, err)
		}
		if count <= int64(rule.Limit) {
			continue
		}
		if ttl <= 0 {
			ttl = rule.Window
		}
		if !result.Limited || ttl < result.RetryAfter {
			result.RetryAfter = ttl
		}
		result.Limited = true
	}
	return result, nil
}

func (l *Limiter) key(rule Rule, id Identity) string {
	parts := []string{l.name, rule.Name}
	switch rule.Key {
	case ByIP:
		parts = append(parts, id.IP)
	case ByIPAndAgent:
		parts = append(parts, id.IP, id.UserAgent)
	case ByField:
		parts = append(parts, id.Field)
	}
	return strings.Join(parts, "|")
}

// ParseRule reads a "limit/window" pair such as "5/15m".
func ParseRule(name string, key KeyStrategy, value string) (Rule, error) {
	limit, window, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok {
		return Rule{}, fmt.Errorf("rate rule %s: expected limit/window, got %q", name, value)
	}
	n, err := strconv.Atoi(limit)
	if err != nil || n < 1 {
		return Rule{}, fmt.Errorf("rate rule %s: invalid limit %q", name, limit)
	}
	d, err := time.ParseDuration(window)
	if err != nil || d <= 0 {
		return Rule{}, fmt.Errorf("rate rule %s: invalid window %q", name, window)
	}
	return Rule{Name: name, Key: key, Limit: n, Window: d}, nil
}

// MustParseRule is ParseRule for compile time constants.
func MustParseRule(name string, key KeyStrategy, value string) Rule {
	rule, err := ParseRule(name, key, value)
	if err != nil {
		panic(err)
	}
	return rule
}
