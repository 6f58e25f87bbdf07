package forecast

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jasonlvhit/gocron"
	log "github.com/sirupsen/logrus"
)

// Provider serves reference wind from a directory of GRIB2 files named
// <refTime>.f<hour> (e.g. 2026071412.f003). Files are rescanned
// periodically so newly downloaded forecasts get picked up while the
// server runs.
type Provider struct {
	dir   string
	grids map[string]*Grid
	lock  sync.RWMutex
}

// NewProvider loads the forecast directory and schedules a rescan
// every 60 seconds.
func NewProvider(dir string) *Provider {
	p := &Provider{
		dir:   dir,
		grids: make(map[string]*Grid),
	}
	p.Rescan()

	s := gocron.NewScheduler()
	job := s.Every(60).Seconds()
	job.Do(p.Rescan)
	go s.Start()

	return p
}

// Rescan reloads the forecast directory, dropping grids whose files
// disappeared and loading files not seen before.
func (p *Provider) Rescan() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	var toRemove []string
	for k, g := range p.grids {
		if _, err := os.Stat(filepath.Join(p.dir, g.File)); os.IsNotExist(err) {
			toRemove = append(toRemove, k)
		}
	}
	for _, k := range toRemove {
		log.Infof("Remove forecast grid %s", k)
		delete(p.grids, k)
	}

	var files []string
	err := filepath.Walk(p.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.WithError(err).Errorf("Error walking file '%s'", path)
		} else if info.Mode().IsRegular() && !strings.HasSuffix(info.Name(), ".tmp") {
			files = append(files, info.Name())
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Error walking forecast files")
		return nil
	}

	sort.Strings(files)

	for _, file := range files {
		parts := strings.Split(file, ".")
		if len(parts) != 2 || len(parts[1]) < 2 {
			continue
		}

		h, err := strconv.Atoi(parts[1][1:])
		if err != nil {
			log.WithError(err).Errorf("Error getting hour from file '%s'", file)
			continue
		}
		t, err := time.Parse("2006010215", parts[0])
		if err != nil {
			log.WithError(err).Errorf("Error parsing date '%s'", parts[0])
			continue
		}

		date := t.Add(time.Hour * time.Duration(h))
		stamp := date.Format("2006010215")

		if g, found := p.grids[stamp]; found && g.File == file {
			continue
		}

		grid, err := Load(p.dir, date, file)
		if err != nil {
			log.WithError(err).Errorf("Error loading forecast file '%s'", file)
			continue
		}
		log.Debugf("Loaded forecast %s from %s", stamp, file)
		p.grids[stamp] = &grid
	}

	return nil
}

// findGrids returns the grids bracketing t and the blend fraction
// toward the second one.
func (p *Provider) findGrids(t time.Time) (*Grid, *Grid, float64) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if len(p.grids) == 0 {
		return nil, nil, 0
	}

	keys := make([]string, 0, len(p.grids))
	for k := range p.grids {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stamp := t.Format("2006010215")
	if keys[0] > stamp {
		return p.grids[keys[0]], nil, 0
	}
	for i := range keys {
		if keys[i] > stamp {
			h := t.Sub(p.grids[keys[i-1]].Date).Minutes()
			delta := p.grids[keys[i]].Date.Sub(p.grids[keys[i-1]].Date).Minutes()
			return p.grids[keys[i-1]], p.grids[keys[i]], h / delta
		}
	}
	return p.grids[keys[len(keys)-1]], nil, 0
}

// WindAt returns the forecast wind at a time and position: the
// direction the wind blows from and the speed in m/s. ok is false when
// no grid covers the position.
func (p *Provider) WindAt(t time.Time, lat, lon float64) (float64, float64, bool) {
	g1, g2, h := p.findGrids(t)
	if g1 == nil {
		return 0, 0, false
	}

	u, v, ok := g1.interpolate(lat, lon)
	if !ok {
		return 0, 0, false
	}
	if g2 != nil {
		u2, v2, ok := g2.interpolate(lat, lon)
		if ok {
			u = u2*h + u*(1-h)
			v = v2*h + v*(1-h)
		}
	}

	d := math.Sqrt(u*u + v*v)
	if d == 0 {
		return 0, 0, true
	}
	return vectorToDegrees(u, v, d), d, true
}
