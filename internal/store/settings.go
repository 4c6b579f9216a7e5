package store

import (
	"fmt"
	"path/filepath"
	"time"

	"dtg-replicator/internal/model"
)

func settingsPath(dir, id string) string {
	return filepath.Join(dir, "set-"+id+".xml")
}

// LoadSettings reads set-<id>.xml, applying the legacy single-LastUpdate
// back-compat rule from spec §6: if LastUpdateSCM/LastUpdateDTS are both
// empty and a legacy LastUpdate is present, both watermarks adopt it.
func LoadSettings(dir, id string) (*model.DTGSettings, error) {
	path := settingsPath(dir, id)
	var f settingsFile
	if err := readXML(path, &f); err != nil {
		return nil, fmt.Errorf("store: load settings %s: %w", id, err)
	}

	scm, dts := f.LastUpdateSCM, f.LastUpdateDTS
	if scm == "" && dts == "" && f.LastUpdate != "" {
		scm, dts = f.LastUpdate, f.LastUpdate
	}

	return &model.DTGSettings{
		ID:            f.ID,
		StartingDate:  parseTime(f.StartingDate),
		LastUpdateSCM: parseTime(scm),
		LastUpdateDTS: parseTime(dts),
		Force:         f.Force,
	}, nil
}

// SaveSettings writes set-<id>.xml under dir, backup-first, dropping the
// legacy LastUpdate field (spec §6: "copy the legacy value into both, then
// drop it" — every write is in the post-migration shape).
func SaveSettings(dir string, s *model.DTGSettings, now func() time.Time) error {
	path := settingsPath(dir, s.ID)
	f := &settingsFile{
		Version:       schemaVersion,
		Updated:       formatTime(now()),
		ID:            s.ID,
		StartingDate:  formatTime(s.StartingDate),
		LastUpdateSCM: formatTime(s.LastUpdateSCM),
		LastUpdateDTS: formatTime(s.LastUpdateDTS),
		Force:         s.Force,
	}
	return writeBackupFirst(path, f)
}

// SaveSettingsLocked acquires the per-file advisory lock around the write,
// as spec §4.2 requires for every watermark save.
func SaveSettingsLocked(dir string, s *model.DTGSettings, now func() time.Time) error {
	path := settingsPath(dir, s.ID)
	lock, err := Lock(path)
	if err != nil {
		return err
	}
	defer lock.Unlock()
	return SaveSettings(dir, s, now)
}
