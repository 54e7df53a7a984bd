package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Empty(t, cfg.WatchDir)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "rfind.log", filepath.Base(cfg.LogFile))
}

func TestConfigSaveLoad(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	watchDir := t.TempDir()

	cfg := &Config{
		APIURL:   "https://resumes.example.com",
		WatchDir: watchDir,
		LogFile:  filepath.Join(home, "custom.log"),
		Debug:    true,
	}
	require.NoError(t, cfg.Save())

	path, err := ConfigPath()
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "rfind.json")
	require.NoError(t, (&Config{APIURL: "http://file.example.com"}).SaveTo(path))
	t.Setenv("RFIND_API_URL", "http://env.example.com:9000")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.example.com:9000", cfg.APIURL)
}

func TestLoad_ExplicitValueWins(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	v := viper.New()
	v.Set("api_url", "http://flag.example.com")

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "http://flag.example.com", cfg.APIURL)
}

func TestLoad_MalformedFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Load(viper.New(), path)
	assert.Error(t, err)
}

func TestConfigDefaultsApplied(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.NotEmpty(t, cfg.LogFile)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&Config{APIURL: "http://localhost:8000"}).Validate())
	assert.Error(t, (&Config{APIURL: "localhost:8000"}).Validate())
	assert.Error(t, (&Config{APIURL: "ftp://example.com"}).Validate())

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0600))
	assert.Error(t, (&Config{APIURL: "http://localhost:8000", WatchDir: file}).Validate())
	assert.Error(t, (&Config{APIURL: "http://localhost:8000", WatchDir: "/does/not/exist"}).Validate())
}
