package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/autotrade/config"
	"gopkg.in/yaml.v3"
)

func TestBuildConfig(t *testing.T) {
	a := DefaultAnswers()
	a.DecisionTimes = " 09:00, 21:00 ,"

	c := BuildConfig(a)
	assert.Equal(t, "BTC_KRW", c.Pair)
	assert.True(t, c.DryRun)
	assert.Equal(t, []string{"09:00", "21:00"}, c.Schedule.DecisionTimes)
	assert.Equal(t, "1000000", c.Execution.SimulateKRW)

	a.DryRun = false
	assert.Empty(t, BuildConfig(a).Execution.SimulateKRW)
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("TELEGRAM_BOT_TOKEN=abc\n"), 0o600))

	a := DefaultAnswers()
	a.OpenAIAPIKey = "sk-test"
	require.NoError(t, Save(a, cfgPath, envPath))

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	var tmp config.ConfigTmp
	require.NoError(t, yaml.Unmarshal(data, &tmp))
	cfg, err := config.FromTmp(tmp)
	require.NoError(t, err)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "o3-mini", cfg.LLM.Model)
	assert.NotContains(t, string(data), "sk-test")

	env, err := godotenv.Read(envPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", env["OPENAI_API_KEY"])
	assert.Equal(t, "abc", env["TELEGRAM_BOT_TOKEN"])
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) error
		in      string
		wantErr bool
	}{
		{name: "times ok", fn: validateTimes, in: "00:30,12:30"},
		{name: "times bad", fn: validateTimes, in: "25:00", wantErr: true},
		{name: "times empty", fn: validateTimes, in: " , ", wantErr: true},
		{name: "positive", fn: validatePositive, in: "500000"},
		{name: "zero", fn: validatePositive, in: "0", wantErr: true},
		{name: "addr", fn: validateAddr, in: ":8080"},
		{name: "addr no port", fn: validateAddr, in: "localhost", wantErr: true},
		{name: "empty", fn: notEmpty, in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
