package maintenance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"docentgo/pkg/store"
)

const overridesStateKey = "video_overrides_csv_mtime"

// Pruner drops cache rows older than a cutoff.
type Pruner interface {
	PruneCache(olderThan time.Duration) (int64, error)
}

// Run executes the startup tasks: the override seed import and cache pruning.
// Failures are logged; startup continues.
func Run(ctx context.Context, s store.Store, p Pruner, csvPath string, cacheTTL time.Duration) error {
	slog.Info("Starting database maintenance...")

	if n, err := ImportOverrides(ctx, s, csvPath, false); err != nil {
		slog.Error("Override import failed", "path", csvPath, "error", err)
	} else if n > 0 {
		slog.Info("Video overrides imported", "path", csvPath, "count", n)
	}

	if cacheTTL > 0 {
		n, err := p.PruneCache(cacheTTL)
		if err != nil {
			slog.Error("Cache pruning failed", "error", err)
		} else {
			slog.Info("Cache pruning completed", "removed", n)
		}
	}
	return nil
}

// ImportOverrides loads item_id,url rows from csvPath into the override map.
// The file is skipped when its modification time matches the last import,
// unless force is set. A missing file is not an error.
func ImportOverrides(ctx context.Context, s store.Store, csvPath string, force bool) (int, error) {
	if csvPath == "" {
		return 0, nil
	}
	info, err := os.Stat(csvPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat csv: %w", err)
	}

	mtime := info.ModTime().UTC().Format(time.RFC3339)
	if stored, found := s.GetState(ctx, overridesStateKey); found && stored == mtime && !force {
		return 0, nil
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	n, err := readOverrides(ctx, s, f)
	if err != nil {
		return n, err
	}
	if err := s.SetState(ctx, overridesStateKey, mtime); err != nil {
		return n, fmt.Errorf("failed to update state: %w", err)
	}
	return n, nil
}

func readOverrides(ctx context.Context, s store.OverrideStore, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	// Spreadsheet exports often carry a UTF-8 BOM.
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	idx := make(map[string]int)
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	itemCol, ok1 := idx["item_id"]
	urlCol, ok2 := idx["url"]
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("csv needs item_id and url columns, got %v", headers)
	}

	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("csv read error: %w", err)
		}
		if itemCol >= len(record) || urlCol >= len(record) {
			continue
		}
		item := strings.TrimSpace(record[itemCol])
		url := strings.TrimSpace(record[urlCol])
		if item == "" {
			continue
		}
		if url == "" {
			err = s.DeleteOverride(ctx, item)
		} else {
			err = s.SetOverride(ctx, item, url)
		}
		if err != nil {
			return count, fmt.Errorf("failed to save row %d: %w", count+1, err)
		}
		count++
	}
	return count, nil
}
