package jobs

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/hirely/hirely-cli/internal/model"
)

// dedupeKey identifies a listing across providers.
func dedupeKey(j model.Job) string {
	fold := cases.Fold()
	return fold.String(strings.Join(strings.Fields(j.Title), " ")) + "\x00" +
		fold.String(strings.Join(strings.Fields(j.Company), " "))
}

// Dedupe drops listings whose (title, company) was already seen. The first
// occurrence wins and order is preserved.
func Dedupe(jobs []model.Job) []model.Job {
	seen := make(map[string]struct{}, len(jobs))
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		k := dedupeKey(j)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, j)
	}
	return out
}
