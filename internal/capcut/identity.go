package capcut

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
)

// defaultPlatform is the stanza used when no existing installation can be
// read. The editor only displays these values; nothing validates them.
func defaultPlatform() Platform {
	osName := "windows"
	osVersion := "10.0.19045"
	if runtime.GOOS == "darwin" {
		osName = "mac"
		osVersion = "14.5"
	}
	return Platform{
		AppID:      359289,
		AppSource:  "cc",
		AppVersion: "5.9.0",
		DeviceID:   "00000000000000000000000000000000",
		HardDiskID: "00000000000000000000000000000000",
		MacAddress: "000000000000",
		OS:         osName,
		OSVersion:  osVersion,
	}
}

// sniffPlatform best-effort-recovers the identity stanza from an existing
// installation under rootDir: the registry names the most recent draft, and
// that draft's content file carries the platform the app itself wrote.
// Every failure falls back to the default stanza; this never blocks a build.
func sniffPlatform(logger zerolog.Logger, rootDir string) Platform {
	raw, err := os.ReadFile(filepath.Join(rootDir, registryFileName))
	if err != nil {
		return defaultPlatform()
	}
	var root RootMetaInfo
	if err := json.Unmarshal(raw, &root); err != nil {
		logger.Debug().Err(err).Msg("registry unreadable, using default identity")
		return defaultPlatform()
	}

	for _, entry := range root.AllDraftStore {
		p, err := readDraftPlatform(entry.DraftFoldPath)
		if err != nil {
			continue
		}
		if p.DeviceID != "" {
			logger.Debug().Str("draft", entry.DraftName).Msg("recovered identity from existing draft")
			return p
		}
	}
	return defaultPlatform()
}

func readDraftPlatform(draftDir string) (Platform, error) {
	raw, err := os.ReadFile(filepath.Join(draftDir, contentFileName))
	if err != nil {
		return Platform{}, err
	}
	var content struct {
		Platform Platform `json:"platform"`
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return Platform{}, err
	}
	return content.Platform, nil
}
