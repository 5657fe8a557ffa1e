//go:build integration

package test_test

import (
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

var (
	testBinary string
	toneWAV    string
)

func TestMain(m *testing.M) {
	testBinary = os.Getenv("MURMUR_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "MURMUR_TEST_BIN not set; build murmur and point it at the binary")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "murmur-integration")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	toneWAV = filepath.Join(dir, "tone.wav")
	if err := generateToneWAV(toneWAV, 16000, 1.0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func generateToneWAV(path string, sampleRate int, durationS float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n := int(float64(sampleRate) * durationS)
	data := make([]int, n)
	for i := range data {
		data[i] = int(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		return err
	}
	return enc.Close()
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

// runMurmur runs the binary in test mode with an empty config file and
// returns its stdout and log directory.
func runMurmur(t *testing.T, stdin string, args ...string) (out, logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0644))

	cmdArgs := append([]string{"-test", "-logpath", logDir, "-config", cfgPath, "-autopaste=false", "-nobeep"}, args...)
	cmdArgs = append(cmdArgs, toneWAV)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	b, err := cmd.CombinedOutput()
	require.NoError(t, err, "murmur exited with error\noutput: %s", b)
	return string(b), logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestHoldToTalk(t *testing.T) {
	out, logDir := runMurmur(t, cmds("WAIT_MODEL", "KEYDOWN", "SLEEP 800", "KEYUP", "WAIT", "QUIT"))

	require.Contains(t, out, "MODE recording_hold")
	require.Contains(t, out, "MODE transcribing")
	require.Contains(t, out, "TEXT ")
	require.NotEmpty(t, strings.TrimSpace(readLog(t, logDir, "transcribe_log.txt")))

	diag := readLog(t, logDir, "diagnostics_log.txt")
	require.Contains(t, diag, "session_start")
	require.Contains(t, diag, "transcription")
}

func TestTapLocksUntilSecondTap(t *testing.T) {
	out, _ := runMurmur(t, cmds(
		"WAIT_MODEL",
		"KEYDOWN", "SLEEP 50", "KEYUP",
		"SLEEP 600",
		"KEYDOWN", "KEYUP",
		"WAIT", "QUIT",
	))

	lock := strings.Index(out, "MODE recording_locked")
	busy := strings.Index(out, "MODE transcribing")
	require.GreaterOrEqual(t, lock, 0, out)
	require.Greater(t, busy, lock, out)
}

func TestTwoSessions(t *testing.T) {
	out, logDir := runMurmur(t, cmds(
		"WAIT_MODEL",
		"KEYDOWN", "SLEEP 600", "KEYUP", "WAIT",
		"KEYDOWN", "SLEEP 600", "KEYUP", "WAIT",
		"QUIT",
	))

	require.Equal(t, 2, strings.Count(out, "TEXT "), out)
	lines := strings.Split(strings.TrimSpace(readLog(t, logDir, "transcribe_log.txt")), "\n")
	require.Len(t, lines, 2)
}

func TestArchiveKeepsAudio(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf("[output]\narchive_dir = %q\n", dir)), 0644))

	cmd := exec.Command(testBinary, "-test", "-logpath", t.TempDir(), "-config", cfgPath,
		"-autopaste=false", "-nobeep", "-keepaudio", toneWAV)
	cmd.Stdin = strings.NewReader(cmds("WAIT_MODEL", "KEYDOWN", "SLEEP 600", "KEYUP", "WAIT", "SLEEP 200", "QUIT"))
	b, err := cmd.CombinedOutput()
	require.NoError(t, err, "output: %s", b)

	matches, err := filepath.Glob(filepath.Join(dir, "murmur-*.flac"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}
