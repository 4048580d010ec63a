package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sariahouse/racebot/internal/goal"
)

// Rolling a multiworld seed costs the web generator much more than a solo
// seed, so those requests are spaced further apart.
const (
	requestSpacing   = 500 * time.Millisecond
	multiworldLimit  = 20 * time.Second
	statusPollPeriod = time.Second
	maxWorldsOnWeb   = 3
	minRollAttempts  = 3
)

var (
	attachmentRe = regexp.MustCompile(`^attachment; filename=(.+)$`)
	patchStemRe  = regexp.MustCompile(`^(.+)\.zpfz?$`)
)

var errPatchHeader = errors.New("web generator did not respond with expected patch file header")

// Versions the web generator is known to serve even when its version
// endpoint claims otherwise.
var knownGoodWebVersions = []goal.Version{
	{Branch: goal.BranchDev, Major: 6, Minor: 2, Patch: 205},
	{Branch: goal.BranchDev, Major: 7, Minor: 1, Patch: 143},
	{Branch: goal.BranchDev, Major: 8, Minor: 1, Patch: 0},
}

// WebClient talks to the web generator's API. All requests share one
// rate-limit clock; at most two multiworld seeds roll at a time, with
// further rolls waiting in a FIFO queue.
type WebClient struct {
	http          *http.Client
	log           *logrus.Logger
	baseURL       string
	apiKey        string
	encryptionKey string
	seedDir       string

	clockMu     sync.Mutex
	nextRequest time.Time

	queue *RollerQueue
}

// NewWebClient builds a client for the web generator. The initial rate
// limit window is the long one so a restart can't burst requests.
func NewWebClient(httpClient *http.Client, log *logrus.Logger, baseURL, apiKey, encryptionKey, seedDir string) *WebClient {
	return &WebClient{
		http:          httpClient,
		log:           log,
		baseURL:       baseURL,
		apiKey:        apiKey,
		encryptionKey: encryptionKey,
		seedDir:       seedDir,
		nextRequest:   time.Now().Add(multiworldLimit),
		queue:         NewRollerQueue(2),
	}
}

// do sends a request once the rate-limit clock allows it, then advances the
// clock by spacing.
func (c *WebClient) do(ctx context.Context, req *http.Request, spacing time.Duration) (*http.Response, error) {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	if wait := time.Until(c.nextRequest); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
	resp, err := c.http.Do(req.WithContext(ctx))
	c.nextRequest = time.Now().Add(spacing)
	return resp, err
}

func (c *WebClient) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req, requestSpacing)
}

func (c *WebClient) head(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodHead, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req, requestSpacing)
}

func (c *WebClient) post(ctx context.Context, path string, query url.Values, body any, spacing time.Duration) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path+"?"+query.Encode(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(ctx, req, spacing)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Errorf("web generator returned HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

type versionsResponse struct {
	CurrentlyActiveVersion *goal.Version
	AvailableVersions      []goal.Version
}

// versions queries which builds of a branch the web generator serves.
// Individual malformed version strings are skipped since the endpoint
// sometimes mixes formats.
func (c *WebClient) versions(ctx context.Context, branch goal.Branch) (*versionsResponse, error) {
	var raw struct {
		CurrentlyActiveVersion string   `json:"currentlyActiveVersion"`
		AvailableVersions      []string `json:"availableVersions"`
	}
	resp, err := c.get(ctx, "/api/version", url.Values{"key": {c.apiKey}, "branch": {string(branch)}})
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(resp, &raw); err != nil {
		return nil, err
	}
	out := &versionsResponse{}
	if v, err := goal.ParseVersion(branch, raw.CurrentlyActiveVersion); err == nil {
		out.CurrentlyActiveVersion = &v
	}
	for _, s := range raw.AvailableVersions {
		if v, err := goal.ParseVersion(branch, s); err == nil {
			out.AvailableVersions = append(out.AvailableVersions, v)
		}
	}
	return out, nil
}

// CanRollOnWeb checks whether the web generator can roll this seed, and if
// so, which exact version to request. The version endpoint sometimes
// returns HTML instead of JSON; those errors mean "roll locally instead".
func (c *WebClient) CanRollOnWeb(ctx context.Context, version goal.RandoVersion, worldCount int, policy goal.UnlockPolicy) *goal.Version {
	if worldCount > maxWorldsOnWeb {
		return nil
	}
	if version.Pinned != nil {
		for _, known := range knownGoodWebVersions {
			if *version.Pinned == known {
				return version.Pinned
			}
		}
		resp, err := c.versions(ctx, version.Branch)
		if err != nil {
			c.log.WithError(err).Warn("version endpoint unavailable, falling back to local generator")
			return nil
		}
		for _, available := range resp.AvailableVersions {
			if available == *version.Pinned {
				return version.Pinned
			}
		}
		return nil
	}
	resp, err := c.versions(ctx, version.Branch)
	if err != nil {
		c.log.WithError(err).Warn("version endpoint unavailable, falling back to local generator")
		return nil
	}
	return resp.CurrentlyActiveVersion
}

func send(ctx context.Context, updates chan<- SeedRollUpdate, u SeedRollUpdate) {
	select {
	case updates <- u:
	case <-ctx.Done():
	}
}

// RollSeedWeb rolls a seed on the web generator: submit, poll the status
// endpoint every second, then fetch details and the patch file. Failed
// generations are resubmitted; after three attempts the roll only keeps
// retrying while the scheduled deadline is still ahead.
func (c *WebClient) RollSeedWeb(ctx context.Context, updates chan<- SeedRollUpdate, delayUntil time.Time, version goal.Version, policy goal.UnlockPolicy, settings map[string]any) (*SeedInfo, error) {
	isMW := worldCount(settings) > 1
	if isMW {
		queued := false
		err := c.queue.Acquire(ctx, func(pos int) {
			kind := UpdateMovedForward
			if !queued {
				kind = UpdateQueued
				queued = true
			}
			send(ctx, updates, SeedRollUpdate{Kind: kind, Position: pos})
		})
		if err != nil {
			return nil, err
		}
	}
	release := func() {
		if isMW {
			c.queue.Release()
		}
	}

	encrypt := policy == goal.UnlockNever
	apiKey := c.apiKey
	if encrypt {
		apiKey = c.encryptionKey
	}

	var lastID int64
	for attempt := 0; ; attempt++ {
		if attempt >= minRollAttempts && (delayUntil.IsZero() || !time.Now().Before(delayUntil)) {
			release()
			e := &RetriesExceededError{Attempts: attempt}
			if lastID != 0 {
				e.LastError = fmt.Sprintf("https://ootrandomizer.com/seed/get?id=%d", lastID)
			}
			return nil, e
		}
		if attempt == 0 {
			send(ctx, updates, SeedRollUpdate{Kind: UpdateStarted})
		}

		query := url.Values{"key": {apiKey}, "version": {webVersionName(version)}}
		if encrypt {
			query.Set("encrypt", "true")
		} else if policy == goal.UnlockNow {
			query.Set("locked", "false")
		} else {
			query.Set("locked", "true")
		}
		spacing := requestSpacing
		if isMW {
			spacing = multiworldLimit
		}
		resp, err := c.post(ctx, "/api/v2/seed/create", query, settings, spacing)
		if err != nil {
			release()
			return nil, err
		}
		var created struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &created); err != nil {
			release()
			return nil, err
		}
		if _, err := fmt.Sscanf(created.ID, "%d", &lastID); err != nil {
			release()
			return nil, errors.Wrap(err, "unexpected seed id in create response")
		}

		status, err := c.pollStatus(ctx, apiKey, lastID)
		if err != nil {
			release()
			return nil, err
		}
		switch status {
		case 1:
			release()
			return c.fetchSeed(ctx, apiKey, lastID)
		case 3:
			// Generation failed, resubmit.
			continue
		default:
			release()
			return nil, &UnexpectedStatusError{Status: status}
		}
	}
}

// pollStatus polls until the seed either generates (1), fails (3), or the
// endpoint reports something unexpected.
func (c *WebClient) pollStatus(ctx context.Context, apiKey string, id int64) (int, error) {
	query := url.Values{"key": {apiKey}, "id": {fmt.Sprint(id)}}
	for {
		select {
		case <-time.After(statusPollPeriod):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		resp, err := c.get(ctx, "/api/v2/seed/status", query)
		if err != nil {
			return 0, err
		}
		if resp.StatusCode == http.StatusNoContent {
			resp.Body.Close()
			continue
		}
		var status struct {
			Status int `json:"status"`
		}
		if err := decodeJSON(resp, &status); err != nil {
			return 0, err
		}
		if status.Status == 0 {
			continue // still generating
		}
		return status.Status, nil
	}
}

func (c *WebClient) fetchSeed(ctx context.Context, apiKey string, id int64) (*SeedInfo, error) {
	query := url.Values{"key": {apiKey}, "id": {fmt.Sprint(id)}}
	var details struct {
		CreationTimestamp time.Time `json:"creationTimestamp"`
		SettingsLog       string    `json:"settingsLog"`
	}
	resp, err := c.get(ctx, "/api/v2/seed/details", query)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(resp, &details); err != nil {
		return nil, err
	}
	var settingsLog struct {
		FileHash []string `json:"file_hash"`
	}
	if err := json.Unmarshal([]byte(details.SettingsLog), &settingsLog); err != nil {
		return nil, errors.Wrap(err, "malformed settings log in details response")
	}

	patchResp, err := c.get(ctx, "/api/v2/seed/patch", query)
	if err != nil {
		return nil, err
	}
	defer patchResp.Body.Close()
	if err := checkStatus(patchResp); err != nil {
		return nil, err
	}
	m := attachmentRe.FindStringSubmatch(patchResp.Header.Get("Content-Disposition"))
	if m == nil {
		return nil, errPatchHeader
	}
	fileName := m[1]
	stem := patchStemRe.FindStringSubmatch(fileName)
	if stem == nil {
		return nil, errPatchHeader
	}
	path := filepath.Join(c.seedDir, fileName)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, patchResp.Body); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "downloading patch file to %s", path)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return &SeedInfo{
		WebID:     id,
		GenTime:   details.CreationTimestamp,
		FileStem:  stem[1],
		HashIcons: settingsLog.FileHash,
	}, nil
}

// PatchFileStem recovers the patch file stem for an already rolled seed.
func (c *WebClient) PatchFileStem(ctx context.Context, id int64) (string, error) {
	resp, err := c.head(ctx, "/api/v2/seed/patch", url.Values{"key": {c.apiKey}, "id": {fmt.Sprint(id)}})
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}
	m := attachmentRe.FindStringSubmatch(resp.Header.Get("Content-Disposition"))
	if m == nil {
		return "", errPatchHeader
	}
	stem := patchStemRe.FindStringSubmatch(m[1])
	if stem == nil {
		return "", errPatchHeader
	}
	return stem[1], nil
}

// UnlockSpoilerLog makes a seed's spoiler log publicly visible.
func (c *WebClient) UnlockSpoilerLog(ctx context.Context, id int64) error {
	resp, err := c.post(ctx, "/api/v2/seed/unlock", url.Values{"key": {c.apiKey}, "id": {fmt.Sprint(id)}}, nil, requestSpacing)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// SpoilerLog fetches a seed's spoiler log text.
func (c *WebClient) SpoilerLog(ctx context.Context, id int64) (string, error) {
	var details struct {
		SpoilerLog string `json:"spoilerLog"`
	}
	resp, err := c.get(ctx, "/api/v2/seed/details", url.Values{"key": {c.apiKey}, "id": {fmt.Sprint(id)}})
	if err != nil {
		return "", err
	}
	if err := decodeJSON(resp, &details); err != nil {
		return "", err
	}
	return details.SpoilerLog, nil
}

func webVersionName(v goal.Version) string {
	return fmt.Sprintf("%s_%s", v.Branch, v.String())
}

func worldCount(settings map[string]any) int {
	switch n := settings["world_count"].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 1
}
