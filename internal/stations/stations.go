// Package stations holds the stream directory loaded from configuration.
package stations

import (
	"github.com/sweeney/alarm-radio/internal/alarm"
	"github.com/sweeney/alarm-radio/internal/config"
)

// Directory is an immutable, index-addressed station list.
type Directory struct {
	list []alarm.Station
}

// New builds a directory from configured stations, in file order.
func New(entries []config.StationConfig) *Directory {
	d := &Directory{list: make([]alarm.Station, 0, len(entries))}
	for _, e := range entries {
		d.list = append(d.list, alarm.Station{Name: e.Name, URL: e.URL})
	}
	return d
}

// Count returns the number of stations.
func (d *Directory) Count() int { return len(d.list) }

// At returns station i. The caller bounds-checks i against Count.
func (d *Directory) At(i int) alarm.Station { return d.list[i] }

// Lookup returns station i and whether it exists.
func (d *Directory) Lookup(i int) (alarm.Station, bool) {
	if i < 0 || i >= len(d.list) {
		return alarm.Station{}, false
	}
	return d.list[i], true
}

// Names returns the station names, in order.
func (d *Directory) Names() []string {
	names := make([]string, len(d.list))
	for i, s := range d.list {
		names[i] = s.Name
	}
	return names
}
