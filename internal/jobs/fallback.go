package jobs

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/hirely/hirely-cli/internal/model"
)

//go:embed fallback.yaml
var fallbackYAML []byte

var fallbackJobs = mustLoadFallback(fallbackYAML)

func mustLoadFallback(data []byte) []model.Job {
	jobs, err := loadFallback(data)
	if err != nil {
		panic(err)
	}
	return jobs
}

func loadFallback(data []byte) ([]model.Job, error) {
	var jobs []model.Job
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return nil, eris.Wrap(err, "jobs: decode fallback dataset")
	}
	if len(jobs) == 0 {
		return nil, eris.New("jobs: fallback dataset is empty")
	}
	for i := range jobs {
		jobs[i].Source = model.JobSourceFallback
	}
	return jobs, nil
}

// Fallback returns a copy of the static dataset served when every source fails.
func Fallback() []model.Job {
	out := make([]model.Job, len(fallbackJobs))
	copy(out, fallbackJobs)
	return out
}
