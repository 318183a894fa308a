package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"manifold/internal/llm"
)

var imageMIMETypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

func mimeTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if m, ok := imageMIMETypes[ext]; ok {
		return m
	}
	return "application/octet-stream"
}

// BuildImageInjectionMessage turns a materialized pending-image queue into a
// single user message carrying the queued images read from workDir, ready to
// be appended to the history passed to the next LLM call. It returns ok=false
// if images is empty. Files that no longer exist on disk are skipped and
// noted in the message text rather than aborting the whole injection.
func BuildImageInjectionMessage(images []PendingImage, workDir string) (llm.Message, bool, error) {
	if len(images) == 0 {
		return llm.Message{}, false, nil
	}

	var loaded []llm.GeneratedImage
	var missing []string
	for _, img := range images {
		full := filepath.Join(workDir, img.Path)
		data, err := os.ReadFile(full)
		if err != nil {
			missing = append(missing, img.Path)
			continue
		}
		encoded, mimeType, err := reencodeForInjection(data, img.Detail)
		if err != nil {
			// Not a decodable image (or an already-tiny/unsupported format):
			// fall back to the raw bytes rather than dropping it entirely.
			encoded, mimeType = data, mimeTypeForPath(img.Path)
		}
		loaded = append(loaded, llm.GeneratedImage{Data: encoded, MIMEType: mimeType})
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%d image(s) attached for review]", len(loaded)))
	if len(missing) > 0 {
		b.WriteString(fmt.Sprintf(" (skipped, not found: %s)", strings.Join(missing, ", ")))
	}

	return llm.Message{Role: RoleUser, Content: b.String(), Images: loaded}, len(loaded) > 0 || len(missing) > 0, nil
}
