package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscoverFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.tf":                 "resource {}",
		"a.py":                 "print()",
		"README.md":            "docs",
		"deploy/app.yaml":      "apiVersion: v1",
		".git/config.tf":       "not scanned",
		"node_modules/x.js":    "not scanned",
		"vendor/dep.go":        "not scanned",
		"__pycache__/cache.py": "not scanned",
	})

	files, err := Discover([]string{root}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		filepath.Join(root, "a.py"),
		filepath.Join(root, "b.tf"),
		filepath.Join(root, "deploy", "app.yaml"),
	}
	if len(files) != len(want) {
		t.Fatalf("Discover = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestDiscoverHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":      "generated/\nsecrets.tfvars\n",
		"main.tf":         "resource {}",
		"secrets.tfvars":  "password = \"x\"",
		"generated/g.tf":  "resource {}",
		"generated/g2.py": "print()",
	})

	files, err := Discover([]string{root}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != filepath.Join(root, "main.tf") {
		t.Errorf("Discover = %v, want only main.tf", files)
	}
}

func TestDiscoverSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'a'
	}
	writeTree(t, root, map[string]string{"small.tf": "resource {}"})
	if err := os.WriteFile(filepath.Join(root, "big.tf"), big, 0644); err != nil {
		t.Fatal(err)
	}

	files, err := Discover([]string{root}, 1024, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "small.tf" {
		t.Errorf("Discover = %v, want only small.tf", files)
	}
}

func TestDiscoverSingleFileRoot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"one.tf": "resource {}", "two.md": "docs"})

	files, err := Discover([]string{filepath.Join(root, "one.tf")}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("Discover = %v, want the single file", files)
	}

	files, err = Discover([]string{filepath.Join(root, "two.md")}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("unsupported single file must be dropped, got %v", files)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	if _, err := Discover([]string{filepath.Join(t.TempDir(), "nope")}, 0, nil); err == nil {
		t.Fatal("expected error for missing root")
	}
}
