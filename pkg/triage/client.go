// Package triage is the bridge to the external triage engine. A session
// is a bearer token plus a survey id; every call is a single blocking
// round trip with a fixed timeout and no retries, because the engine
// advances survey state on each message it receives.
package triage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/outshift/triagent/pkg/config"
	"github.com/outshift/triagent/pkg/httpclient"
)

// DefaultFirstReply is returned when the engine opens a session without
// an assistant message.
const DefaultFirstReply = "Medical triage session started. Please describe your symptoms."

// Session identifies one open survey on the triage engine. Both values
// are cached on the task and live for the task's lifetime.
type Session struct {
	Token    string
	SurveyID string
}

// Summary is the final assessment fetched once a survey presents its
// result.
type Summary struct {
	UrgencyLevel string
	DoctorType   string
	Notes        string
}

// Client talks to the triage engine.
type Client struct {
	cfg  config.TriageConfig
	http *httpclient.Client
}

// NewClient creates a bridge client. Calls never retry and are bounded by
// the configured timeout.
func NewClient(cfg config.TriageConfig) *Client {
	return &Client{
		cfg: cfg,
		http: httpclient.New(
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithRetryStrategy(httpclient.NeverRetry),
		),
	}
}

// StartSession acquires a token, opens a survey for the given
// demographics, and sends the complaint as the first turn.
func (c *Client) StartSession(ctx context.Context, age int, sex, complaint string) (Session, string, error) {
	token, err := c.fetchToken(ctx)
	if err != nil {
		return Session{}, "", err
	}

	surveyID, err := c.createSurvey(ctx, token, age, sex)
	if err != nil {
		return Session{}, "", err
	}

	session := Session{Token: token, SurveyID: surveyID}
	reply, _, err := c.Continue(ctx, session, complaint)
	if err != nil {
		return Session{}, "", err
	}
	if reply == "" {
		reply = DefaultFirstReply
	}
	return session, reply, nil
}

// Continue sends one caller turn and returns the assistant reply and the
// raw survey state. A missing state defaults to in_progress.
func (c *Client) Continue(ctx context.Context, session Session, text string) (string, string, error) {
	payload := map[string]any{"user_message": text}
	var result struct {
		AssistantMessage string `json:"assistant_message"`
		SurveyState      string `json:"survey_state"`
	}

	url := fmt.Sprintf("%s/surveys/%s/messages", c.cfg.BaseURL, session.SurveyID)
	if err := c.post(ctx, "send message", url, bearerHeaders(session.Token), payload, &result); err != nil {
		return "", "", err
	}

	state := result.SurveyState
	if state == "" {
		state = "in_progress"
	}
	slog.Debug("Triage turn processed", "survey_id", session.SurveyID, "survey_state", state)
	return result.AssistantMessage, state, nil
}

// Summary fetches the final assessment. Missing fields fall back to
// neutral defaults.
func (c *Client) Summary(ctx context.Context, session Session) (Summary, error) {
	url := fmt.Sprintf("%s/surveys/%s/summary", c.cfg.BaseURL, session.SurveyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("build summary request: %w", err)
	}
	for k, v := range bearerHeaders(session.Token) {
		req.Header.Set(k, v)
	}

	var result struct {
		Urgency    string `json:"urgency"`
		DoctorType string `json:"doctor_type"`
		Notes      string `json:"notes"`
	}
	if err := c.do(req, "get summary", &result); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		UrgencyLevel: result.Urgency,
		DoctorType:   result.DoctorType,
		Notes:        result.Notes,
	}
	if summary.UrgencyLevel == "" {
		summary.UrgencyLevel = "standard"
	}
	if summary.DoctorType == "" {
		summary.DoctorType = "general practitioner"
	}
	if summary.Notes == "" {
		summary.Notes = "Assessment completed"
	}
	return summary, nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	creds := base64.StdEncoding.EncodeToString([]byte(c.cfg.AppID + ":" + c.cfg.AppKey))
	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Basic " + creds,
		"instance-id":   c.cfg.InstanceID,
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	payload := map[string]any{"grant_type": "client_credentials"}
	if err := c.post(ctx, "get token", c.cfg.TokenURL, headers, payload, &result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", &APIError{Operation: "get token", Message: "token response missing access_token"}
	}
	return result.AccessToken, nil
}

func (c *Client) createSurvey(ctx context.Context, token string, age int, sex string) (string, error) {
	payload := map[string]any{
		"sex": strings.ToLower(sex),
		"age": map[string]any{"value": age, "unit": "year"},
	}

	var result struct {
		SurveyID string `json:"survey_id"`
	}
	url := c.cfg.BaseURL + "/surveys"
	if err := c.post(ctx, "create survey", url, bearerHeaders(token), payload, &result); err != nil {
		return "", err
	}
	if result.SurveyID == "" {
		return "", &APIError{Operation: "create survey", Message: "survey response missing survey_id"}
	}
	slog.Info("Created triage survey", "survey_id", result.SurveyID)
	return result.SurveyID, nil
}

func (c *Client) post(ctx context.Context, operation, url string, headers map[string]string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.do(req, operation, result)
}

func (c *Client) do(req *http.Request, operation string, result any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &APIError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(body)),
			}
		}
		return &APIError{Operation: operation, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &APIError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Message:    "malformed response body",
			Err:        err,
		}
	}
	return nil
}

func bearerHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/json",
	}
}
