package gen

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sariahouse/racebot/internal/goal"
)

const (
	patchFilePrefix    = "Creating Patch File: "
	patchArchivePrefix = "Created patch file archive at: "
	spoilerLogPrefix   = "Created spoiler log at: "

	// The generator exits with this code for transient failures such as
	// unbeatable seeds, which are worth retrying.
	retryableExitCode = 2
)

// LocalRoller rolls seeds by running the randomizer as a subprocess, used
// when the web generator can't serve the wanted version or settings.
type LocalRoller struct {
	log           *logrus.Logger
	randomizerDir string
	seedDir       string
}

// NewLocalRoller points at an installed randomizer checkout.
func NewLocalRoller(log *logrus.Logger, randomizerDir, seedDir string) *LocalRoller {
	return &LocalRoller{log: log, randomizerDir: randomizerDir, seedDir: seedDir}
}

// RollSeed runs the generator with the settings passed as JSON on stdin and
// scans its output for the produced file paths. Retryable failures are
// retried at least three times, then until the deadline passes.
func (r *LocalRoller) RollSeed(ctx context.Context, updates chan<- SeedRollUpdate, delayUntil time.Time, policy goal.UnlockPolicy, settings map[string]any) (*SeedInfo, error) {
	settings = cloneSettings(settings)
	settings["create_patch_file"] = true
	settings["create_compressed_rom"] = false
	settings["create_spoiler"] = policy != goal.UnlockNever

	input, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	patchPrefix := patchFilePrefix
	if worldCount(settings) > 1 {
		patchPrefix = patchArchivePrefix
	}

	var lastError string
	for attempt := 0; ; attempt++ {
		if attempt >= minRollAttempts && (delayUntil.IsZero() || !time.Now().Before(delayUntil)) {
			return nil, &RetriesExceededError{Attempts: attempt, LastError: lastError}
		}
		if attempt == 0 {
			send(ctx, updates, SeedRollUpdate{Kind: UpdateStarted})
		}

		cmd := exec.CommandContext(ctx, "python3", "OoTRandomizer.py", "--no_log", "--settings=-")
		cmd.Dir = r.randomizerDir
		cmd.Stdin = bytes.NewReader(input)
		var output bytes.Buffer
		cmd.Stdout = &output
		cmd.Stderr = &output

		err := cmd.Run()
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() == retryableExitCode {
				lastError = output.String()
				r.log.WithField("attempt", attempt).Warn("generator failed with retryable error")
				continue
			}
			return nil, errors.Wrapf(err, "generator failed: %s", output.String())
		}

		patchPath, spoilerPath := scanGeneratorOutput(&output, patchPrefix)
		if patchPath == "" {
			return nil, errors.New("generator output did not name a patch file")
		}
		patchPath = filepath.Join(r.randomizerDir, "Output", patchPath)
		fileName := filepath.Base(patchPath)
		if err := os.Rename(patchPath, filepath.Join(r.seedDir, fileName)); err != nil {
			return nil, err
		}

		seed := &SeedInfo{
			GenTime:  time.Now(),
			FileStem: strings.TrimSuffix(strings.TrimSuffix(fileName, ".zpfz"), ".zpf"),
		}
		if spoilerPath != "" {
			seed.SpoilerPath = filepath.Join(r.randomizerDir, "Output", spoilerPath)
			icons, err := hashIconsFromSpoiler(seed.SpoilerPath)
			if err != nil {
				r.log.WithError(err).Warn("could not read hash icons from spoiler log")
			} else {
				seed.HashIcons = icons
			}
		}
		return seed, nil
	}
}

// scanGeneratorOutput finds the last patch file and spoiler log lines in
// the generator's combined output.
func scanGeneratorOutput(output *bytes.Buffer, patchPrefix string) (patchPath, spoilerPath string) {
	scanner := bufio.NewScanner(bytes.NewReader(output.Bytes()))
	for scanner.Scan() {
		line := scanner.Text()
		if rest, ok := strings.CutPrefix(line, patchPrefix); ok {
			patchPath = rest
		}
		if rest, ok := strings.CutPrefix(line, spoilerLogPrefix); ok {
			spoilerPath = rest
		}
	}
	return patchPath, spoilerPath
}

func hashIconsFromSpoiler(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spoiler struct {
		FileHash []string `json:"file_hash"`
	}
	if err := json.Unmarshal(data, &spoiler); err != nil {
		return nil, err
	}
	return spoiler.FileHash, nil
}

func cloneSettings(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings)+3)
	for k, v := range settings {
		out[k] = v
	}
	return out
}
