package captcha

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// apiKeyLookup is the line in the solver extension that reads the key from
// extension storage. It is replaced by a literal so no manual setup in the
// extension popup is needed.
const apiKeyLookup = `var apiKey = localStorage.getItem("sadCaptchaKey");`

// PrepareExtension copies the unpacked extension at srcDir to dstDir and,
// when apiKey is set, writes the key into its scripts. dstDir is replaced.
// It returns how many scripts were patched.
func PrepareExtension(fs afero.Fs, srcDir, dstDir, apiKey string) (int, error) {
	if ok, err := afero.Exists(fs, filepath.Join(srcDir, "manifest.json")); err != nil || !ok {
		return 0, fmt.Errorf("no extension manifest in %s", srcDir)
	}
	if err := fs.RemoveAll(dstDir); err != nil {
		return 0, fmt.Errorf("clear %s: %w", dstDir, err)
	}

	replacement := "var apiKey = " + strconv.Quote(apiKey) + ";"
	patched := 0

	err := afero.Walk(fs, srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dstDir, rel)

		if info.IsDir() {
			return fs.MkdirAll(target, 0o755)
		}

		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}
		if apiKey != "" && strings.HasSuffix(path, ".js") && strings.Contains(string(data), apiKeyLookup) {
			data = []byte(strings.ReplaceAll(string(data), apiKeyLookup, replacement))
			patched++
		}
		return afero.WriteFile(fs, target, data, info.Mode().Perm()|0o600)
	})
	if err != nil {
		return patched, fmt.Errorf("copy extension: %w", err)
	}

	if apiKey != "" && patched == 0 {
		slog.Warn("captcha API key set but no extension script reads it", "dir", srcDir)
	}
	return patched, nil
}
