package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"agentdesk/internal/core"
)

const quickTasksFileName = "quick_tasks.toml"

type quickTaskFile struct {
	Tasks []core.QuickTask `toml:"task"`
}

// LoadQuickTasks reads quick_tasks.toml from dir. A missing file yields the
// built-in catalog.
func LoadQuickTasks(dir string) ([]core.QuickTask, error) {
	path := filepath.Join(dir, quickTasksFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return core.DefaultQuickTasks(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseQuickTasks(data)
}

// ParseQuickTasks decodes a TOML quick task catalog. Entries without text are
// dropped; missing ids and labels are derived from their position and text.
func ParseQuickTasks(data []byte) ([]core.QuickTask, error) {
	var file quickTaskFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse quick tasks: %w", err)
	}
	tasks := make([]core.QuickTask, 0, len(file.Tasks))
	seen := make(map[string]bool)
	for i, qt := range file.Tasks {
		qt.Text = strings.TrimSpace(qt.Text)
		if qt.Text == "" {
			continue
		}
		qt.ID = strings.TrimSpace(qt.ID)
		if qt.ID == "" {
			qt.ID = fmt.Sprintf("task-%d", i+1)
		}
		if seen[qt.ID] {
			return nil, fmt.Errorf("duplicate quick task id %q", qt.ID)
		}
		seen[qt.ID] = true
		if strings.TrimSpace(qt.Label) == "" {
			qt.Label = qt.Text
		}
		tasks = append(tasks, qt)
	}
	if len(tasks) == 0 {
		return core.DefaultQuickTasks(), nil
	}
	return tasks, nil
}
