package racing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client talks to the race platform's REST API using the bot's OAuth2
// client credentials.
type Client struct {
	http     *http.Client
	log      *logrus.Logger
	host     string
	category string
	clientID string
	secret   string

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(httpClient *http.Client, log *logrus.Logger, host, category, clientID, secret string) *Client {
	return &Client{
		http:     httpClient,
		log:      log,
		host:     host,
		category: category,
		clientID: clientID,
		secret:   secret,
	}
}

// Host returns the platform hostname.
func (c *Client) Host() string { return c.host }

// Category returns the category slug the bot operates in.
func (c *Client) Category() string { return c.category }

// AccessToken returns a valid OAuth token, refreshing it when within a
// minute of expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.accessToken != "" && time.Now().Add(time.Minute).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.secret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("https://%s/o/token", c.host), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", errors.Errorf("token request returned HTTP %d: %s", resp.StatusCode, body)
	}
	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", err
	}
	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func (s StartRace) form() url.Values {
	form := url.Values{}
	if s.CustomGoal {
		form.Set("custom_goal", s.Goal)
	} else {
		form.Set("goal", s.Goal)
	}
	form.Set("invitational", boolField(s.Invitational))
	form.Set("unlisted", boolField(s.Unlisted))
	form.Set("info_user", s.InfoUser)
	form.Set("info_bot", s.InfoBot)
	form.Set("start_delay", strconv.Itoa(s.StartDelay))
	form.Set("time_limit", strconv.Itoa(s.TimeLimit))
	form.Set("streaming_required", boolField(s.StreamingRequired))
	form.Set("auto_start", boolField(s.AutoStart))
	form.Set("allow_comments", boolField(s.AllowComments))
	form.Set("allow_prerace_chat", boolField(s.AllowPreraceChat))
	form.Set("allow_midrace_chat", boolField(s.AllowMidraceChat))
	form.Set("allow_non_entrant_chat", boolField(s.AllowNonEntrantChat))
	form.Set("chat_message_delay", strconv.Itoa(s.ChatMessageDelay))
	form.Set("team_race", boolField(s.TeamRace))
	return form
}

func boolField(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// StartRace opens a new race room and returns its name, e.g.
// "ootr/dazzling-wolf-1234".
func (c *Client) StartRace(ctx context.Context, cfg StartRace) (string, error) {
	resp, err := c.postForm(ctx, fmt.Sprintf("https://%s/o/%s/startrace", c.host, c.category), cfg.form())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", errors.Errorf("startrace returned HTTP %d: %s", resp.StatusCode, body)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", errors.New("startrace response had no Location header")
	}
	return strings.Trim(location, "/"), nil
}

// EditRace updates an open race room's configuration.
func (c *Client) EditRace(ctx context.Context, raceName string, cfg StartRace) error {
	resp, err := c.postForm(ctx, fmt.Sprintf("https://%s/o/%s/edit", c.host, raceName), cfg.form())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Errorf("edit race returned HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	return c.http.Do(req)
}

// RaceData fetches the current snapshot of a race room.
func (c *Client) RaceData(ctx context.Context, raceName string) (*RaceData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("https://%s/%s/data", c.host, raceName), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("race data returned HTTP %d", resp.StatusCode)
	}
	var data RaceData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SearchUsers finds platform users by name, used to resolve restreamers
// and monitors named in chat commands.
func (c *Client) SearchUsers(ctx context.Context, name string) ([]User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("https://%s/user/search?%s", c.host, url.Values{"name": {name}}.Encode()), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("user search returned HTTP %d", resp.StatusCode)
	}
	var result struct {
		Results []User `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Results, nil
}
