// Package archive answers read-only questions about the storage tree
// written by the storage writer: which days of a month hold data, and which
// files a day holds.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xtxerr/saga/internal/errors"
)

// Monthly returns one flag per day of the given month, true when that day's
// directory exists. Index 0 is a placeholder so that the index of a flag is
// its day of month.
func Monthly(root string, year, month int) ([]bool, error) {
	if year <= 0 || month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %04d-%02d", errors.ErrInvalidDate, year, month)
	}

	// Day arithmetic at noon UTC is immune to daylight saving changes.
	first := time.Date(year, time.Month(month), 1, 12, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()

	flags := make([]bool, days+1)
	monthDir := filepath.Join(root, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month))
	for day := 1; day <= days; day++ {
		info, err := os.Stat(filepath.Join(monthDir, fmt.Sprintf("%02d", day)))
		flags[day] = err == nil && info.IsDir()
	}
	return flags, nil
}

// Daily lists the files stored for the given day as paths relative to root,
// in the form "YYYY/MM/DD/name". Hidden entries are skipped.
func Daily(root string, year, month, day int) ([]string, error) {
	if year <= 0 || month < 1 || month > 12 || day < 1 || day > 31 {
		return nil, fmt.Errorf("%w: %04d-%02d-%02d", errors.ErrInvalidDate, year, month, day)
	}

	rel := fmt.Sprintf("%04d/%02d/%02d", year, month, day)
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrNotFound, rel)
		}
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, rel+"/"+e.Name())
	}
	sort.Strings(files)
	return files, nil
}
