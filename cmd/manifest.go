package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/shared"
)

// Manifest is a TOML list of upload packets:
//
//	[[job]]
//	video_path = "clips/intro.mp4"
//	title = "Intro"
//	tags = "intro, channel trailer"
//	schedule_date = "2025-03-01"
//	schedule_time = "15:00"
type Manifest struct {
	Jobs []models.UploadPacket `toml:"job"`
}

// LoadManifest decodes path. Relative video and thumbnail paths resolve against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %v", shared.ErrInvalidInput, path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: manifest %s: unknown key %s", shared.ErrInvalidInput, path, undecoded[0])
	}
	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("%w: manifest %s has no [[job]] entries", shared.ErrInvalidInput, path)
	}

	base := filepath.Dir(path)
	for i := range m.Jobs {
		m.Jobs[i].VideoPath = resolve(base, m.Jobs[i].VideoPath)
		m.Jobs[i].ThumbnailPath = resolve(base, m.Jobs[i].ThumbnailPath)
	}
	return &m, nil
}

// UploadJobs converts every packet, resolving schedules in loc. The first invalid packet aborts the conversion.
func (m *Manifest) UploadJobs(loc *time.Location) ([]*models.UploadJob, error) {
	jobs := make([]*models.UploadJob, 0, len(m.Jobs))
	for i, p := range m.Jobs {
		job, err := models.NewUploadJob(p, loc)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
