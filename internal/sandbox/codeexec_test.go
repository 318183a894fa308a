package sandbox

import "testing"

func TestHarmonizeImportsFixesMoviepyEditTypo(t *testing.T) {
	in := "from moviepy.edit import VideoFileClip\nimport moviepy.edit as mpy\n"
	out := HarmonizeImports(in)
	if want := "from moviepy.editor import VideoFileClip\n"; !contains(out, want) {
		t.Fatalf("expected %q in output, got %q", want, out)
	}
	if want := "import moviepy.editor as mpy"; !contains(out, want) {
		t.Fatalf("expected %q in output, got %q", want, out)
	}
}

func TestSanitizeCodePathsStripsDirectories(t *testing.T) {
	in := `os.makedirs('outputs/charts', exist_ok=True)
plt.savefig('outputs/charts/fig.png')
df.to_excel('./out/data.xlsx')
img.save('/tmp/abs/image.png')
open('a/b/notes.txt', 'w')
Path('x').mkdir(parents=True)
`
	out := SanitizeCodePaths(in)
	for _, bad := range []string{"outputs/charts/fig.png", "./out/data.xlsx", "/tmp/abs/image.png", "a/b/notes.txt", "os.makedirs(", "Path('x').mkdir("} {
		if contains(out, bad) {
			t.Fatalf("did not expect %q in sanitized output:\n%s", bad, out)
		}
	}
	for _, want := range []string{"savefig('fig.png')", "to_excel('data.xlsx'", "save('image.png'", "open('notes.txt', 'w'"} {
		if !contains(out, want) {
			t.Fatalf("expected %q in sanitized output:\n%s", want, out)
		}
	}
}

func TestSanitizeCodePathsLeavesReadModeAlone(t *testing.T) {
	in := `open('data/input.csv', 'r')`
	out := SanitizeCodePaths(in)
	if !contains(out, "data/input.csv") {
		t.Fatalf("read-mode open should be left untouched, got %q", out)
	}
}

func TestRunCodeRejectsMissingWorkDir(t *testing.T) {
	_, err := RunCode(nil, CodeExecRequest{Code: "print(1)"})
	if err != ErrNoWorkDir {
		t.Fatalf("expected ErrNoWorkDir, got %v", err)
	}
}

func TestRunCodeRejectsBothModes(t *testing.T) {
	_, err := RunCode(nil, CodeExecRequest{Code: "print(1)", ScriptFile: "a.py", WorkDir: t.TempDir()})
	if err != ErrBothModes {
		t.Fatalf("expected ErrBothModes, got %v", err)
	}
}

func TestRunCodeRejectsNoCode(t *testing.T) {
	_, err := RunCode(nil, CodeExecRequest{WorkDir: t.TempDir()})
	if err != ErrNoCode {
		t.Fatalf("expected ErrNoCode, got %v", err)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	if sub == "" {
		return 0
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
