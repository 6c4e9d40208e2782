package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateWordPress(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	w := c.Workflow
	switch {
	case w.PollIntervalSeconds < 0:
		return errors.New("workflow.poll_interval_seconds must be >= 0")
	case w.PollMaxAttempts < 1:
		return errors.New("workflow.poll_max_attempts must be >= 1")
	case w.BatchConcurrency < 1:
		return errors.New("workflow.batch_concurrency must be >= 1")
	case w.ApprovalTimeoutHours < 0:
		return errors.New("workflow.approval_timeout_hours must be >= 0")
	case w.MaxRevisions < 0:
		return errors.New("workflow.max_revisions must be >= 0")
	case w.SchedulerIntervalSeconds < 1:
		return errors.New("workflow.scheduler_interval_seconds must be >= 1")
	case w.SEOMinScore < 0 || w.SEOMinScore > 100:
		return errors.New("workflow.seo_min_score must be between 0 and 100")
	case w.SEOLimit < 1:
		return errors.New("workflow.seo_limit must be >= 1")
	case w.HealerRecentLimit < 1:
		return errors.New("workflow.healer_recent_limit must be >= 1")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if _, err := ParseWeekdays(c.Schedule.HealerDays); err != nil {
		return fmt.Errorf("schedule.healer_days: %w", err)
	}
	return nil
}

func (c *Config) validateWordPress() error {
	if c.WordPress.BaseURL != "" {
		parsed, err := url.Parse(c.WordPress.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("wordpress.base_url %q must be an absolute URL", c.WordPress.BaseURL)
		}
	}
	switch c.WordPress.DefaultStatus {
	case "draft", "pending", "publish", "private":
	default:
		return fmt.Errorf("wordpress.default_status %q must be one of draft, pending, publish, private", c.WordPress.DefaultStatus)
	}
	return nil
}

// validateAPI refuses to expose an unauthenticated approval webhook beyond
// the local machine.
func (c *Config) validateAPI() error {
	if c.API.Bind == "" || !c.Slack.ApprovalsEnabled || isLoopbackBind(c.API.Bind) {
		return nil
	}
	if strings.TrimSpace(c.Slack.SigningSecret) == "" && strings.TrimSpace(c.API.Token) == "" {
		return fmt.Errorf("api.bind %q is reachable from other hosts: set slack.signing_secret or api.token so approval events are authenticated", c.API.Bind)
	}
	return nil
}

// SlackEventsUnreachable reports whether approval events require the bearer
// token, which Slack cannot send.
func (c *Config) SlackEventsUnreachable() bool {
	return c.Slack.ApprovalsEnabled && strings.TrimSpace(c.API.Token) != "" && strings.TrimSpace(c.Slack.SigningSecret) == ""
}

func isLoopbackBind(bind string) bool {
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		host = bind
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	for key, level := range c.Logging.WorkerOverrides {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.worker_overrides.%s: unsupported level %q", key, level)
		}
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekdays converts lowercase English weekday names (or three-letter
// abbreviations) into time.Weekday values.
func ParseWeekdays(days []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(days))
	for _, day := range days {
		day = strings.ToLower(strings.TrimSpace(day))
		if day == "" {
			continue
		}
		if wd, ok := weekdayNames[day]; ok {
			out = append(out, wd)
			continue
		}
		matched := false
		for name, wd := range weekdayNames {
			if len(day) == 3 && strings.HasPrefix(name, day) {
				out = append(out, wd)
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("unknown weekday %q", day)
		}
	}
	return out, nil
}
