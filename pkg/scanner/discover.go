package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"github.com/user/complyscan/pkg/engine"
)

var skipDirs = map[string]bool{
	".git":         true,
	".github":      true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	"vendor":       true,
}

// Discover enumerates scannable files under the given roots (or the
// current directory when none are given). Files in unsupported languages,
// gitignored paths, and files over maxBytes are skipped; oversized files
// would blow the prompt budget for no gain.
func Discover(roots []string, maxBytes int64, log *zap.SugaredLogger) ([]string, error) {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var files []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if engine.DetectLanguage(root) != "" {
				files = append(files, root)
			}
			continue
		}

		ignore := loadIgnore(root)
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			if d.IsDir() {
				if skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				if ignore != nil && rel != "." && ignore.MatchesPath(rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if engine.DetectLanguage(path) == "" {
				return nil
			}
			if ignore != nil && ignore.MatchesPath(rel) {
				return nil
			}
			if fi, err := d.Info(); err == nil && maxBytes > 0 && fi.Size() > maxBytes {
				log.Debugw("skipping oversized file", "path", path, "bytes", fi.Size())
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func loadIgnore(root string) *gitignore.GitIgnore {
	ign, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return ign
}
