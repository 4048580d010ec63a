package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sariahouse/racebot/internal/goal"
)

func testWebClient(t *testing.T, handler http.Handler) *WebClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewWebClient(srv.Client(), logrus.New(), srv.URL, "test-key", "test-key-enc", t.TempDir())
	// Tests shouldn't wait out the initial rate limit window.
	c.nextRequest = time.Now()
	return c
}

func drain(updates chan SeedRollUpdate) []SeedRollUpdate {
	close(updates)
	var out []SeedRollUpdate
	for u := range updates {
		out = append(out, u)
	}
	return out
}

func TestRollSeedWebSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/seed/create", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "true", r.URL.Query().Get("locked"))
		var settings map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&settings))
		assert.Equal(t, "closed", settings["zora_fountain"])
		fmt.Fprint(w, `{"id": "4242"}`)
	})
	mux.HandleFunc("/api/v2/seed/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4242", r.URL.Query().Get("id"))
		fmt.Fprint(w, `{"status": 1}`)
	})
	mux.HandleFunc("/api/v2/seed/details", func(w http.ResponseWriter, r *http.Request) {
		settingsLog, _ := json.Marshal(map[string]any{
			"file_hash": []string{"Deku Stick", "Bow", "Slingshot", "Fairy Ocarina", "Hover Boots"},
		})
		json.NewEncoder(w).Encode(map[string]any{
			"creationTimestamp": "2026-08-01T12:00:00Z",
			"settingsLog":       string(settingsLog),
		})
	})
	mux.HandleFunc("/api/v2/seed/patch", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", "attachment; filename=OoTR_4242_TESTWORD.zpf")
		fmt.Fprint(w, "patch-bytes")
	})

	c := testWebClient(t, mux)
	updates := make(chan SeedRollUpdate, updateBuffer)
	version := goal.Version{Branch: goal.BranchDev, Major: 8, Minor: 1}
	seed, err := c.RollSeedWeb(context.Background(), updates, time.Time{}, version, goal.UnlockAfter,
		map[string]any{"zora_fountain": "closed"})
	require.NoError(t, err)

	assert.Equal(t, int64(4242), seed.WebID)
	assert.Equal(t, "OoTR_4242_TESTWORD", seed.FileStem)
	assert.Len(t, seed.HashIcons, 5)
	assert.Equal(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), seed.GenTime)

	patch, err := os.ReadFile(filepath.Join(c.seedDir, "OoTR_4242_TESTWORD.zpf"))
	require.NoError(t, err)
	assert.Equal(t, "patch-bytes", string(patch))

	sent := drain(updates)
	require.NotEmpty(t, sent)
	assert.Equal(t, UpdateStarted, sent[0].Kind)
}

func TestRollSeedWebRetriesExhausted(t *testing.T) {
	var creates int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/seed/create", func(w http.ResponseWriter, r *http.Request) {
		creates++
		fmt.Fprintf(w, `{"id": "%d"}`, creates)
	})
	mux.HandleFunc("/api/v2/seed/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 3}`)
	})

	c := testWebClient(t, mux)
	updates := make(chan SeedRollUpdate, updateBuffer)
	version := goal.Version{Branch: goal.BranchDev, Major: 8, Minor: 1}
	_, err := c.RollSeedWeb(context.Background(), updates, time.Time{}, version, goal.UnlockAfter, map[string]any{})

	var retries *RetriesExceededError
	require.ErrorAs(t, err, &retries)
	assert.Equal(t, minRollAttempts, retries.Attempts)
	assert.Equal(t, minRollAttempts, creates)
	assert.Contains(t, retries.LastError, "id=3")
}

func TestRollSeedWebUnexpectedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/seed/create", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "7"}`)
	})
	mux.HandleFunc("/api/v2/seed/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 9}`)
	})

	c := testWebClient(t, mux)
	updates := make(chan SeedRollUpdate, updateBuffer)
	version := goal.Version{Branch: goal.BranchDev, Major: 8, Minor: 1}
	_, err := c.RollSeedWeb(context.Background(), updates, time.Time{}, version, goal.UnlockAfter, map[string]any{})

	var unexpected *UnexpectedStatusError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, 9, unexpected.Status)
}

func TestCanRollOnWeb(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"currentlyActiveVersion": "8.2.50",
			"availableVersions":      []string{"8.2.50", "8.2.46", "not-a-version"},
		})
	})
	c := testWebClient(t, mux)
	ctx := context.Background()

	// Too many worlds never rolls on web.
	v := c.CanRollOnWeb(ctx, goal.RandoVersion{Branch: goal.BranchDev, Pinned: &goal.Version{Branch: goal.BranchDev, Major: 8, Minor: 2, Patch: 50}}, 4, goal.UnlockAfter)
	assert.Nil(t, v)

	// Known-good versions skip the endpoint entirely.
	pinned := goal.Version{Branch: goal.BranchDev, Major: 6, Minor: 2, Patch: 205}
	v = c.CanRollOnWeb(ctx, goal.RandoVersion{Branch: goal.BranchDev, Pinned: &pinned}, 3, goal.UnlockAfter)
	require.NotNil(t, v)
	assert.Equal(t, pinned, *v)

	// Other pinned versions are checked against the available list.
	listed := goal.Version{Branch: goal.BranchDev, Major: 8, Minor: 2, Patch: 46}
	v = c.CanRollOnWeb(ctx, goal.RandoVersion{Branch: goal.BranchDev, Pinned: &listed}, 1, goal.UnlockAfter)
	require.NotNil(t, v)
	assert.Equal(t, listed, *v)

	missing := goal.Version{Branch: goal.BranchDev, Major: 5, Minor: 0, Patch: 0}
	assert.Nil(t, c.CanRollOnWeb(ctx, goal.RandoVersion{Branch: goal.BranchDev, Pinned: &missing}, 1, goal.UnlockAfter))

	// Latest resolves to the currently active version.
	v = c.CanRollOnWeb(ctx, goal.RandoVersion{Branch: goal.BranchDev}, 1, goal.UnlockAfter)
	require.NotNil(t, v)
	assert.Equal(t, goal.Version{Branch: goal.BranchDev, Major: 8, Minor: 2, Patch: 50}, *v)
}

func TestCanRollOnWebMalformedEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	})
	c := testWebClient(t, mux)

	missing := goal.Version{Branch: goal.BranchDev, Major: 5, Minor: 0, Patch: 0}
	assert.Nil(t, c.CanRollOnWeb(context.Background(), goal.RandoVersion{Branch: goal.BranchDev, Pinned: &missing}, 1, goal.UnlockAfter))
	assert.Nil(t, c.CanRollOnWeb(context.Background(), goal.RandoVersion{Branch: goal.BranchDev}, 1, goal.UnlockAfter))
}

func TestScrapeHashIcons(t *testing.T) {
	page := `<html><body>
		<div class="seed card">
			<ul class="hash-icons">
				<li title="Deku Stick"></li>
				<li title="Bow"></li>
				<li title="Slingshot"></li>
				<li title="Fairy Ocarina"></li>
				<li title="Hover Boots"></li>
			</ul>
		</div>
	</body></html>`
	icons, err := scrapeHashIcons(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, []string{"Deku Stick", "Bow", "Slingshot", "Fairy Ocarina", "Hover Boots"}, icons)

	_, err = scrapeHashIcons(strings.NewReader("<html><body></body></html>"))
	assert.Error(t, err)
}

func TestScanGeneratorOutput(t *testing.T) {
	out := bytes.NewBufferString(strings.Join([]string{
		"Patching ROM",
		"Creating Patch File: OoTR_1_AAAAA.zpf",
		"Created spoiler log at: OoTR_1_AAAAA_Spoiler.json",
	}, "\n"))

	patch, spoiler := scanGeneratorOutput(out, patchFilePrefix)
	assert.Equal(t, "OoTR_1_AAAAA.zpf", patch)
	assert.Equal(t, "OoTR_1_AAAAA_Spoiler.json", spoiler)

	// Multiworld seeds report the archive line instead.
	mwOut := bytes.NewBufferString("Created patch file archive at: OoTR_2_BBBBB.zpfz\n")
	patch, spoiler = scanGeneratorOutput(mwOut, patchArchivePrefix)
	assert.Equal(t, "OoTR_2_BBBBB.zpfz", patch)
	assert.Empty(t, spoiler)
}
