package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ProfilesFile holds named profiles and tracks which one is active.
type ProfilesFile struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile is a named set of settings. Empty fields fall through to the
// defaults.
type Profile struct {
	UserID      string `toml:"user_id,omitempty"`
	Backend     string `toml:"backend,omitempty"`
	DatabaseURL string `toml:"database_url,omitempty"`
	RESTURL     string `toml:"rest_url,omitempty"`
	APIKey      string `toml:"api_key,omitempty"`
	Token       string `toml:"token,omitempty"`
	Feed        string `toml:"feed,omitempty"`
	NATSURL     string `toml:"nats_url,omitempty"`
	RedisURL    string `toml:"redis_url,omitempty"`

	ReminderInterval string `toml:"reminder_interval,omitempty"`
	ReminderCommand  string `toml:"reminder_command,omitempty"`

	ExportS3Bucket   string `toml:"export_s3_bucket,omitempty"`
	ExportS3Key      string `toml:"export_s3_key,omitempty"`
	ExportS3Region   string `toml:"export_s3_region,omitempty"`
	ExportS3Endpoint string `toml:"export_s3_endpoint,omitempty"`
	ExportInterval   string `toml:"export_interval,omitempty"`
}

// LoadProfiles reads the profile file at path. A missing file yields an
// empty set.
func LoadProfiles(path string) (ProfilesFile, error) {
	var pf ProfilesFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		if os.IsNotExist(err) {
			return ProfilesFile{Profiles: map[string]Profile{}}, nil
		}
		return ProfilesFile{}, err
	}
	if pf.Profiles == nil {
		pf.Profiles = map[string]Profile{}
	}
	return pf, nil
}

// SaveProfiles writes pf to path, readable by the owner only since profiles
// may carry tokens.
func SaveProfiles(path string, pf ProfilesFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(pf)
}
