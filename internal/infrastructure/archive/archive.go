// Package archive writes the on-disk paper trail of a generation run.
//
// Layout under the output root:
//
//	drafts/<city>/<vibe>/prompt_v<version>_<date>.txt
//	drafts/<city>/<vibe>/response_v<version>_<date>.txt
//	validated/<city>/<vibe>/top10_v<version>_<date>.json
//	failed/<city>/<vibe>/rejected_v<version>_<date>.json
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ZipPicks/internal/domain"
	"ZipPicks/internal/ports"
)

type Dir struct {
	root string
}

var _ ports.Archive = (*Dir)(nil)

func New(root string) *Dir {
	return &Dir{root: root}
}

// SavePrompt stores the composed prompt with a small header recording
// the task identity, so a prompt file is self-describing when inspected
// outside the pipeline.
func (d *Dir) SavePrompt(key domain.TaskKey, prompt string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "---\ncity: %s\nvibe: %s\ndate: %s\nprompt_version: %s\n---\n\n",
		key.City, key.Vibe, key.Date, key.PromptVersion)
	sb.WriteString(prompt)
	return d.writeFile(key, "drafts", d.fileName(key, "prompt", "txt"), []byte(sb.String()))
}

func (d *Dir) SaveResponse(key domain.TaskKey, response string) (string, error) {
	return d.writeFile(key, "drafts", d.fileName(key, "response", "txt"), []byte(response))
}

// LoadResponse reads back a previously archived generator response,
// used when re-validating drafted tasks without a fresh generation.
func (d *Dir) LoadResponse(key domain.TaskKey) (string, error) {
	path := filepath.Join(d.root, "drafts", key.City, key.Vibe, d.fileName(key, "response", "txt"))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read archived response: %w", err)
	}
	return string(data), nil
}

func (d *Dir) SaveValidated(draft domain.ValidatedDraft) (string, error) {
	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode validated draft: %w", err)
	}
	return d.writeFile(draft.Key, "validated", d.fileName(draft.Key, "top10", "json"), data)
}

// SaveFailed records a rejected draft with every validation problem so
// a reviewer can see what the generator got wrong.
func (d *Dir) SaveFailed(key domain.TaskKey, response string, reasons []string) (string, error) {
	record := struct {
		Key      domain.TaskKey `json:"key"`
		FailedAt time.Time      `json:"failed_at"`
		Reasons  []string       `json:"reasons"`
		Response string         `json:"response"`
	}{
		Key:      key,
		FailedAt: time.Now().UTC(),
		Reasons:  reasons,
		Response: response,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode rejected draft: %w", err)
	}
	return d.writeFile(key, "failed", d.fileName(key, "rejected", "json"), data)
}

// ListValidated walks the validated tree and decodes every draft.
// Files that fail to decode are skipped; a partial archive should not
// block publishing the rest.
func (d *Dir) ListValidated() ([]domain.ValidatedDraft, error) {
	root := filepath.Join(d.root, "validated")
	var drafts []domain.ValidatedDraft

	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		var draft domain.ValidatedDraft
		if jsonErr := json.Unmarshal(data, &draft); jsonErr != nil {
			return nil
		}
		drafts = append(drafts, draft)
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walk validated archive: %w", err)
	}
	return drafts, nil
}

func (d *Dir) writeFile(key domain.TaskKey, kind, name string, data []byte) (string, error) {
	dir := filepath.Join(d.root, kind, key.City, key.Vibe)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return path, nil
}

func (d *Dir) fileName(key domain.TaskKey, prefix, ext string) string {
	return fmt.Sprintf("%s_v%s_%s.%s", prefix, key.PromptVersion, key.Date, ext)
}
