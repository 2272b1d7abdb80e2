// Package healthcheck polls Tomcat over HTTP from the controller until it answers.
package healthcheck

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/taskutil"
	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
)

const (
	Name                  = "health_check"
	DefaultScheme         = "http"
	DefaultPort           = 8080
	DefaultPath           = "/"
	DefaultTimeout        = 30 * time.Second
	DefaultInterval       = 2 * time.Second
	DefaultRequestTimeout = 3 * time.Second
	DefaultExpectStatus   = "200-499"

	maxBodyBytes = 1 << 20
)

// HealthCheck is stateless apart from its injectable transport and timer.
type HealthCheck struct {
	client *http.Client
	timer  backoff.Timer
}

func New() task.Tool { return &HealthCheck{} }

// NewWithClient returns a HealthCheck using client for requests and timer
// between attempts. Either may be nil.
func NewWithClient(client *http.Client, timer backoff.Timer) *HealthCheck {
	return &HealthCheck{client: client, timer: timer}
}

func (*HealthCheck) Name() string            { return Name }
func (*HealthCheck) Category() task.Category { return task.CategoryValidate }
func (*HealthCheck) Description() string {
	return "Poll the Tomcat HTTP endpoint until it answers with an expected status"
}

func (*HealthCheck) Params() []task.Param {
	return []task.Param{
		{Name: "host", Type: task.TypeString, Description: "Host to poll; defaults to the target address"},
		{Name: "url", Type: task.TypeString, Description: "Full URL; overrides scheme, host, port and path"},
		{Name: "scheme", Type: task.TypeString, Default: DefaultScheme},
		{Name: "port", Type: task.TypeInt, Default: DefaultPort},
		{Name: "path", Type: task.TypeString, Default: DefaultPath},
		{Name: "timeout", Type: task.TypeDuration, Default: DefaultTimeout, Description: "Polling window"},
		{Name: "interval", Type: task.TypeDuration, Default: DefaultInterval, Description: "Delay between attempts"},
		{Name: "request_timeout", Type: task.TypeDuration, Default: DefaultRequestTimeout, Description: "Timeout of a single request"},
		{Name: "expect_status", Type: task.TypeIntList, Default: DefaultExpectStatus, Description: "Accepted status codes; any answer below 500 means tomcat is serving"},
		{Name: "json_path", Type: task.TypeString, Description: "gjson path that must exist in the response body"},
		{Name: "json_value", Type: task.TypeString, Description: "Expected string value at json_path"},
		{Name: "insecure_skip_verify", Type: task.TypeBool, Default: false, Description: "Skip TLS certificate verification"},
	}
}

type poll struct {
	url            string
	expect         []int
	jsonPath       string
	jsonValue      string
	requestTimeout time.Duration
}

func (h *HealthCheck) Execute(ctx context.Context, _ server.Connection, p task.Params) task.Result {
	url, err := targetURL(p)
	if err != nil {
		return task.Failure("invalid health check target", err, nil)
	}

	pr := poll{
		url:            url,
		expect:         p.IntList("expect_status"),
		jsonPath:       p.String("json_path"),
		jsonValue:      p.String("json_value"),
		requestTimeout: p.Duration("request_timeout"),
	}
	timeout := p.Duration("timeout")
	interval := p.Duration("interval")
	attempts := taskutil.Attempts(timeout, interval)

	budgetCtx, cancel := context.WithTimeout(ctx, timeout+pr.requestTimeout)
	defer cancel()

	client := h.httpClient(p.Bool("insecure_skip_verify"))
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)), budgetCtx)

	var (
		made       int
		lastStatus int
		lastErr    error
	)
	start := time.Now()
	err = backoff.RetryNotifyWithTimer(func() error {
		made++
		status, pollErr := pr.do(budgetCtx, client)
		lastStatus, lastErr = status, pollErr
		var perm *backoff.PermanentError
		if errors.As(pollErr, &perm) {
			lastErr = perm.Err
		}
		return pollErr
	}, b, nil, h.timer)
	elapsed := time.Since(start)

	details := map[string]any{
		"url":      url,
		"attempts": made,
	}
	if err == nil {
		details["status"] = lastStatus
		return task.Success(fmt.Sprintf("%s answered HTTP %d after %d attempt(s)", url, lastStatus, made), details)
	}

	if lastStatus != 0 {
		details["last_status"] = lastStatus
	}
	if lastErr != nil {
		details["last_error"] = lastErr.Error()
	}
	return task.Failure(fmt.Sprintf("%s not healthy after %d attempt(s)", url, made), &task.ValidationTimeout{
		Target:     url,
		Attempts:   made,
		Elapsed:    elapsed,
		LastStatus: lastStatus,
		LastErr:    lastErr,
	}, details)
}

func (pr poll) do(ctx context.Context, client *http.Client) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, pr.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pr.url, nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if !slices.Contains(pr.expect, resp.StatusCode) {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := pr.checkBody(body); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

func (pr poll) checkBody(body []byte) error {
	if pr.jsonPath == "" {
		return nil
	}
	if !gjson.ValidBytes(body) {
		return errors.New("response body is not valid JSON")
	}
	value := gjson.GetBytes(body, pr.jsonPath)
	if !value.Exists() {
		return fmt.Errorf("json path %q not found", pr.jsonPath)
	}
	if pr.jsonValue != "" && value.String() != pr.jsonValue {
		return fmt.Errorf("json path %q is %q, want %q", pr.jsonPath, value.String(), pr.jsonValue)
	}
	return nil
}

func (h *HealthCheck) httpClient(insecure bool) *http.Client {
	if h.client != nil {
		return h.client
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Transport: transport}
}

func targetURL(p task.Params) (string, error) {
	if url := p.String("url"); url != "" {
		return url, nil
	}
	host := p.String("host")
	if host == "" {
		return "", task.Configf(Name, "either url or host is required")
	}
	path := p.String("path")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return p.String("scheme") + "://" + net.JoinHostPort(host, strconv.Itoa(p.Int("port"))) + path, nil
}
