package content

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"docentgo/pkg/model"
)

//go:embed local/dataset.yaml
var localDatasetYAML []byte

// Dataset is the offline content bundled with the binary.
type Dataset struct {
	Themes  []map[string]any            `yaml:"themes"`
	Items   map[string][]map[string]any `yaml:"items"`
	Quizzes map[string][]map[string]any `yaml:"quizzes"`
}

// LoadDataset parses a dataset document in the bundled YAML layout.
func LoadDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse local dataset: %w", err)
	}
	return &ds, nil
}

// DefaultDataset returns the dataset embedded at build time.
func DefaultDataset() *Dataset {
	ds, err := LoadDataset(localDatasetYAML)
	if err != nil {
		panic(err)
	}
	return ds
}

func (d *Dataset) themes() []model.Theme {
	out := make([]model.Theme, 0, len(d.Themes))
	for _, raw := range d.Themes {
		out = append(out, NormalizeTheme(raw))
	}
	return out
}

func (d *Dataset) items(themeID string) []model.Item {
	raws := d.Items[themeID]
	out := make([]model.Item, 0, len(raws))
	for i, raw := range raws {
		it := NormalizeItem(raw, i)
		if firstString(raw, itemIDKeys...) == "" {
			it.ID = fmt.Sprintf("itm_local_%d", i)
		}
		out = append(out, it)
	}
	return out
}

func (d *Dataset) quizzes(themeID string) []model.Quiz {
	raws := d.Quizzes[themeID]
	out := make([]model.Quiz, 0, len(raws))
	for i, raw := range raws {
		out = append(out, NormalizeQuiz(raw, i))
	}
	return out
}
